package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/config"
	"github.com/wdiesveld/tinyqueries/internal/engine"
	"github.com/wdiesveld/tinyqueries/internal/store"
)

// runtimeEnv is everything a command needs to execute terms.
type runtimeEnv struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	catalog *catalog.DirStore
	engine  *engine.Engine
}

// openRuntime loads the config, connects to the database and opens the
// compiled query set.
func openRuntime(ctx context.Context, opts *RootOptions, logOut io.Writer) (*runtimeEnv, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := opts.newLogger(cfg, logOut)

	var dirOpts []catalog.DirOption
	if cfg.Compiler.Label != "" {
		dirOpts = append(dirOpts, catalog.WithLabel(cfg.Compiler.Label))
	}
	queries, err := catalog.OpenDir(cfg.Compiler.Output, dirOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open compiled queries", err)
	}

	st, err := store.Open(ctx, store.Config{
		Driver:    cfg.Database.Driver,
		DSN:       cfg.Database.DSN,
		InitQuery: cfg.Database.InitQuery,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	logger.Debug("runtime ready",
		"driver", cfg.Database.Driver,
		"queries", queries.Path(),
		"count", len(queries.IDs()),
	)

	eng := engine.New(queries, st,
		engine.WithLogger(logger),
		engine.WithNested(cfg.Postprocessor.NestFields),
		engine.WithMaxFilterSize(cfg.Engine.MaxFilterSize),
		engine.WithGlobals(cfg.GlobalValues()),
	)
	return &runtimeEnv{cfg: cfg, logger: logger, store: st, catalog: queries, engine: eng}, nil
}

func (r *runtimeEnv) Close() {
	if err := r.store.Close(); err != nil {
		r.logger.Error("error closing database", "error", err)
	}
}
