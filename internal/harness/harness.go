package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sort"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/compiler"
	"github.com/wdiesveld/tinyqueries/internal/engine"
	"github.com/wdiesveld/tinyqueries/internal/ir"
	"github.com/wdiesveld/tinyqueries/internal/store"
	"github.com/wdiesveld/tinyqueries/internal/testutil"
)

// Harness is the scenario execution environment: one database, one query
// catalog and one engine.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger
}

// Option configures a Run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger handed to the engine. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Create fresh in-memory database and run the schema statements
//  2. Compile the CUE sources and register the inline queries
//  3. Execute the flow steps with expect validation
//  4. Evaluate the assertions
//
// The returned error is reserved for setup failures; a failing step or
// assertion is reported in the result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := &runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(cfg)
	}

	st, err := store.Open(ctx, store.Config{Driver: "sqlite3", DSN: ":memory:"})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	for i, stmt := range scenario.Schema {
		if _, err := st.Exec(ctx, stmt, nil); err != nil {
			return nil, fmt.Errorf("schema[%d]: %w", i, err)
		}
	}

	mem, err := buildCatalog(scenario)
	if err != nil {
		return nil, err
	}

	engineOpts := []engine.Option{
		engine.WithLogger(cfg.logger),
		engine.WithRunIDGenerator(testutil.NewSequentialRunIDs(scenario.Name)),
		engine.WithGlobals(scenario.Globals),
	}
	if scenario.Nested != nil {
		engineOpts = append(engineOpts, engine.WithNested(*scenario.Nested))
	}

	h := &Harness{
		store:  st,
		engine: engine.New(mem, st, engineOpts...),
		logger: cfg.logger,
	}

	result := NewResult()
	h.executeFlow(ctx, scenario.Flow, result)

	actx := &AssertionContext{Store: h.store, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// buildCatalog compiles the scenario's CUE sources, if any, and then
// registers its inline queries, which win on id clashes.
func buildCatalog(scenario *Scenario) (*catalog.MemStore, error) {
	mem := catalog.NewMemStore()

	if scenario.Sources != "" {
		loaded, errs := compiler.LoadSources(scenario.Sources, compiler.LoadModeFailFast)
		if len(errs) > 0 {
			return nil, fmt.Errorf("failed to compile sources: %w", errs[0])
		}
		for _, e := range loaded.Entries {
			if err := mem.Put(e.ID, e.Interface, e.SQL); err != nil {
				return nil, fmt.Errorf("sources: %w", err)
			}
		}
	}

	ids := make([]string, 0, len(scenario.Queries))
	for id := range scenario.Queries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		def := scenario.Queries[id]
		iface, err := def.Compile()
		if err != nil {
			return nil, fmt.Errorf("queries.%s: %w", id, err)
		}
		if err := mem.Put(id, iface, def.SQL); err != nil {
			return nil, fmt.Errorf("queries.%s: %w", id, err)
		}
	}
	return mem, nil
}

// executeFlow runs all flow steps in order. A failing step is recorded and
// the flow continues, so one scenario reports every mismatch.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) {
	for i, step := range flow {
		event := TraceEvent{
			Seq:    int64(i + 1),
			Type:   stepType(step),
			Term:   step.Term,
			Params: step.Params,
		}

		out, err := h.execute(ctx, step)
		if err != nil {
			event.Error = errorCode(err)
		} else {
			event.Result = out
		}
		result.AddTrace(event)

		h.logger.Debug("scenario step",
			"seq", event.Seq,
			"term", step.Term,
			"error", event.Error,
		)

		for _, msg := range checkExpect(step, out, err) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Term, msg))
		}
	}
}

func (h *Harness) execute(ctx context.Context, step FlowStep) (any, error) {
	q, err := h.engine.Query(step.Term)
	if err != nil {
		return nil, err
	}
	if err := q.Params(step.Params); err != nil {
		return nil, err
	}
	switch {
	case step.Single:
		return q.Select1(ctx, nil)
	case step.Run:
		return q.Run(ctx, nil)
	default:
		return q.Select(ctx, nil)
	}
}

func stepType(step FlowStep) string {
	switch {
	case step.Single:
		return StepSelect1
	case step.Run:
		return StepRun
	default:
		return StepSelect
	}
}

// errorCode returns the engine code of err, or INTERNAL for errors from
// outside the engine.
func errorCode(err error) string {
	if code, ok := engine.CodeOf(err); ok {
		return string(code)
	}
	return "INTERNAL"
}

// checkExpect compares a step outcome to its expect clause and returns the
// mismatches.
func checkExpect(step FlowStep, out any, err error) []string {
	exp := step.Expect
	if exp == nil || exp.Error == "" {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
	}
	if exp == nil {
		return nil
	}

	if exp.Error != "" {
		if err == nil {
			return []string{fmt.Sprintf("expected error %s, got success", exp.Error)}
		}
		if got := errorCode(err); got != exp.Error {
			return []string{fmt.Sprintf("expected error %s, got %s (%v)", exp.Error, got, err)}
		}
		return nil
	}

	var msgs []string
	if exp.Result != nil {
		if !canonicalEqual(exp.Result, out) {
			want, _ := ir.MarshalCanonical(exp.Result)
			got, _ := ir.MarshalCanonical(out)
			msgs = append(msgs, fmt.Sprintf("result mismatch\n  Expected: %s\n  Actual: %s", want, got))
		}
	}
	if exp.Count != nil {
		if n, ok := lengthOf(out); !ok {
			msgs = append(msgs, fmt.Sprintf("count: output of type %T has no length", out))
		} else if n != *exp.Count {
			msgs = append(msgs, fmt.Sprintf("count: expected %d, got %d", *exp.Count, n))
		}
	}
	return msgs
}

// canonicalEqual compares two values through their canonical JSON, so
// YAML ints match int64 columns and ordered mappings match plain maps.
func canonicalEqual(expected, actual any) bool {
	want, err := ir.MarshalCanonical(expected)
	if err != nil {
		return false
	}
	got, err := ir.MarshalCanonical(actual)
	if err != nil {
		return false
	}
	return string(want) == string(got)
}

func lengthOf(v any) (int, bool) {
	if m, ok := v.(ir.Mapping); ok {
		return len(m.Entries()), true
	}
	if v == nil {
		return 0, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	}
	return 0, false
}
