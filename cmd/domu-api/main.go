// Command domu-api serves the Domu HTTP API.
package main

import (
	"context"

	"go.uber.org/fx"

	"github.com/domu-platform/domu/internal/app/runtime"
	"github.com/domu-platform/domu/internal/config"
	"github.com/domu-platform/domu/pkg/logger"
)

func main() {
	fx.New(
		fx.NopLogger,
		fx.Provide(
			config.Load,
			newLogger,
			newRuntime,
		),
		fx.Invoke(registerServer),
	).Run()
}

func newLogger(cfg *config.Config) *logger.Logger {
	return runtime.NewLogger(cfg.Logging)
}

func newRuntime(cfg *config.Config, log *logger.Logger) (*runtime.Application, error) {
	return runtime.New(context.Background(), cfg, log)
}

// registerServer ties the HTTP server to the fx lifecycle. fx handles
// SIGINT and SIGTERM and runs OnStop for a graceful shutdown.
func registerServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, a *runtime.Application, log *logger.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := a.Run(runCtx); err != nil {
					log.WithError(err).Error("server stopped unexpectedly")
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return a.Shutdown(ctx)
		},
	})
}
