package engine

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"sync"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/ir"
	"github.com/wdiesveld/tinyqueries/internal/profile"
	"github.com/wdiesveld/tinyqueries/internal/querysql"
	"github.com/wdiesveld/tinyqueries/internal/term"
)

// DefaultMaxFilterSize is the default maximum number of key values a filter
// step passes on to the next query.
const DefaultMaxFilterSize = 5000

// Values maps parameter names to values.
type Values = map[string]any

// RowSource runs rendered SQL. Implemented by store.Store.
type RowSource interface {
	Dialect() querysql.Dialect
	SelectRows(ctx context.Context, query string, args []any) ([]ir.Row, error)
	SelectRow(ctx context.Context, query string, args []any) (ir.Row, error)
	SelectColumn(ctx context.Context, query string, args []any) ([]any, error)
	SelectValue(ctx context.Context, query string, args []any) (any, error)
	Exec(ctx context.Context, query string, args []any) (int64, error)
}

// Callback post-processes the rows of one compiled query after typing.
type Callback func(rows []ir.Row) ([]ir.Row, error)

// Env carries the per-run context: global parameter values and an optional
// profiler. A nil Env, or one without Globals, uses the engine's globals.
type Env struct {
	Globals  Values
	Profiler *profile.Profiler
}

// Engine builds and runs queries against a compiled-query store and a row
// source.
//
// Thread-safety model:
//   - Query(), Get(), Get1(): safe from any goroutine; each returned Query
//     belongs to one caller
//   - SetGlobal(), RegisterCallback(): safe from any goroutine
type Engine struct {
	store         catalog.Store
	source        RowSource
	logger        *slog.Logger
	nested        bool
	maxFilterSize int
	runIDs        RunIDGenerator

	mu        sync.RWMutex
	globals   Values
	callbacks map[string]Callback
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for debug output. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithNested sets whether dotted column names are nested when a query does
// not say. Default: true.
func WithNested(nested bool) Option {
	return func(e *Engine) {
		e.nested = nested
	}
}

// WithMaxFilterSize sets the maximum number of key values per filter step.
//
// Default: 5000 (DefaultMaxFilterSize)
func WithMaxFilterSize(n int) Option {
	return func(e *Engine) {
		e.maxFilterSize = n
	}
}

// WithRunIDGenerator sets the generator for run ids. Default: UUIDv7.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithGlobals sets the initial global parameter values.
func WithGlobals(globals Values) Option {
	return func(e *Engine) {
		maps.Copy(e.globals, globals)
	}
}

// New creates an Engine.
func New(store catalog.Store, source RowSource, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		source:        source,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		nested:        true,
		maxFilterSize: DefaultMaxFilterSize,
		runIDs:        UUIDv7Generator{},
		globals:       make(Values),
		callbacks:     make(map[string]Callback),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query parses t into a runnable query.
func (e *Engine) Query(t string) (*Query, error) {
	if err := term.Validate(t); err != nil {
		return nil, NewParseError(t, "invalid term", err)
	}
	p := &parser{eng: e}
	root, err := p.parse(t)
	if err != nil {
		return nil, err
	}
	return &Query{eng: e, term: t, root: root, values: make(Values)}, nil
}

// Get parses t, binds params and returns the query output.
func (e *Engine) Get(ctx context.Context, t string, params any) (any, error) {
	q, err := e.Query(t)
	if err != nil {
		return nil, err
	}
	if err := q.Params(params); err != nil {
		return nil, err
	}
	return q.Select(ctx, nil)
}

// Get1 is like Get but returns only the first row of the output.
func (e *Engine) Get1(ctx context.Context, t string, params any) (any, error) {
	q, err := e.Query(t)
	if err != nil {
		return nil, err
	}
	if err := q.Params(params); err != nil {
		return nil, err
	}
	return q.Select1(ctx, nil)
}

// SetGlobal registers a global parameter value. Globals fill parameters
// that are absent or nil.
func (e *Engine) SetGlobal(name string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.globals[name] = value
}

// Global returns a global parameter value.
func (e *Engine) Global(name string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.globals[name]
	return v, ok
}

// Globals returns a snapshot of the global parameter values.
func (e *Engine) Globals() Values {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.globals)
}

// RegisterCallback sets the post-process callback of a compiled query. A
// nil fn removes it.
func (e *Engine) RegisterCallback(queryID string, fn Callback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fn == nil {
		delete(e.callbacks, queryID)
		return
	}
	e.callbacks[queryID] = fn
}

func (e *Engine) callback(queryID string) Callback {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.callbacks[queryID]
}
