package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wdiesveld/tinyqueries/internal/api"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string // overrides http.listen

	// ready, if set, receives the bound address once the listener is up.
	ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve terms over HTTP",
		Long: `Start the HTTP API over the compiled queries and the configured database.

  GET /query?query=<term>&param=<value>
  GET /api/<query>/<id>/<child>

With compiler.watch set, the compiled directory is watched and reloaded
when compile rewrites it.

Example:
  tinyq serve --listen :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default from http.listen)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx, opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	addr := rt.cfg.HTTP.Listen
	if opts.Listen != "" {
		addr = opts.Listen
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to listen on %s", addr), err)
	}

	srv := &http.Server{
		Handler: api.New(rt.engine,
			api.WithLogger(logger),
			api.WithCORSOrigins(rt.cfg.HTTP.CORSOrigins),
		).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", "addr", ln.Addr().String(), "queries", rt.catalog.Path())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("server stopping")
		return srv.Shutdown(shutdownCtx)
	})

	if rt.cfg.Compiler.Watch {
		g.Go(func() error {
			return rt.catalog.Watch(gctx, func(err error) {
				if err != nil {
					logger.Error("reload failed", "error", err)
					return
				}
				logger.Info("queries reloaded", "count", len(rt.catalog.IDs()))
			})
		})
	}

	if opts.ready != nil {
		opts.ready <- ln.Addr().String()
	}

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("server stopped")
	return nil
}
