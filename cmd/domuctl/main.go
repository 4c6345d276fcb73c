// Command domuctl runs operational tasks: schema migrations, bootstrap
// administrators and one-off background jobs.
package main

import (
	"context"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/domu-platform/domu/internal/app/runtime"
	"github.com/domu-platform/domu/internal/cli"
	"github.com/domu-platform/domu/internal/config"
	"github.com/domu-platform/domu/pkg/logger"
)

type rootOptions struct {
	configPath string
	out        *cli.Printer
}

func main() {
	opts := &rootOptions{out: cli.NewPrinter(os.Stdout)}
	root := &cobra.Command{
		Use:           "domuctl",
		Short:         "Operational tooling for the Domu API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("DOMU_CONFIG"), "YAML configuration file")
	root.AddCommand(
		migrateCommand(opts),
		createAdminCommand(opts),
		jobsCommand(opts),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		opts.out.Error("%v", err)
		os.Exit(1)
	}
}

func (o *rootOptions) config() (*config.Config, error) {
	return config.LoadFrom(o.configPath)
}

func (o *rootOptions) logger(cfg *config.Config) *logger.Logger {
	return runtime.NewLogger(cfg.Logging)
}

func (o *rootOptions) database(ctx context.Context) (*config.Config, *sqlx.DB, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}
	db, err := runtime.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
