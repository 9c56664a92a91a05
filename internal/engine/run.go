package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/wdiesveld/tinyqueries/internal/profile"
)

// run is the state of one invocation.
type run struct {
	ctx     context.Context
	id      string
	eng     *Engine
	globals Values
	prof    *profile.Profiler
	logger  *slog.Logger
}

func (e *Engine) newRun(ctx context.Context, env *Env) *run {
	r := &run{ctx: ctx, id: e.runIDs.Generate(), eng: e}
	if env != nil {
		r.globals = env.Globals
		r.prof = env.Profiler
	}
	if r.globals == nil {
		r.globals = e.Globals()
	}
	r.logger = e.logger.With("run_id", r.id)
	return r
}

// exec executes n and logs the outcome.
func (r *run) exec(n node, values Values) (data, error) {
	start := time.Now()
	d, err := n.execute(r, values)
	if err != nil {
		r.logger.Debug("node failed", "node", n.name(), "kind", n.kind(), "error", err)
		return d, err
	}
	r.logger.Debug("node executed",
		"node", n.name(),
		"kind", n.kind(),
		"rows", len(d.rows)+len(d.values),
		"duration", time.Since(start))
	return d, nil
}
