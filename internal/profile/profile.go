// Package profile records nested wall-clock timings of a query run.
//
// Results have the shape
//
//	{"1:query": {"2:db::select": 0.004, "_total": 0.006}, "_total": 0.007}
//
// where a node without children is reported as its elapsed seconds and a
// node with children carries a "_total" entry. Labels are prefixed with a
// counter so repeated labels stay distinct.
//
// A nil *Profiler is valid and records nothing.
package profile

import (
	"strconv"
	"sync"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type node struct {
	label    string
	start    time.Time
	elapsed  time.Duration
	done     bool
	parent   *node
	children []*node
}

// Profiler collects timings. It is safe for concurrent use, although nodes
// begun from different goroutines share one nesting stack.
type Profiler struct {
	mu      sync.Mutex
	clock   Clock
	start   time.Time
	root    node
	current *node
	counter int
}

// New starts a profiler. A nil clock uses the system clock.
func New(clock Clock) *Profiler {
	if clock == nil {
		clock = systemClock{}
	}
	p := &Profiler{clock: clock}
	p.start = clock.Now()
	p.current = &p.root
	return p
}

// Begin opens a child node of the current node.
func (p *Profiler) Begin(label string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counter++
	n := &node{
		label:  strconv.Itoa(p.counter) + ":" + label,
		start:  p.clock.Now(),
		parent: p.current,
	}
	p.current.children = append(p.current.children, n)
	p.current = n
}

// End closes the current node. Calls without an open node are ignored.
func (p *Profiler) End() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == &p.root {
		return
	}
	p.current.elapsed = p.clock.Now().Sub(p.current.start)
	p.current.done = true
	p.current = p.current.parent
}

// Results returns the timing tree in seconds. Nodes still open report the
// time elapsed so far.
func (p *Profiler) Results() map[string]any {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	out := p.collect(&p.root, now)
	out["_total"] = now.Sub(p.start).Seconds()
	return out
}

func (p *Profiler) collect(n *node, now time.Time) map[string]any {
	out := make(map[string]any, len(n.children)+1)
	for _, c := range n.children {
		elapsed := c.elapsed
		if !c.done {
			elapsed = now.Sub(c.start)
		}
		if len(c.children) == 0 {
			out[c.label] = elapsed.Seconds()
			continue
		}
		sub := p.collect(c, now)
		sub["_total"] = elapsed.Seconds()
		out[c.label] = sub
	}
	return out
}
