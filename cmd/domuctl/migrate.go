package main

import (
	"github.com/spf13/cobra"

	"github.com/domu-platform/domu/internal/platform/migrations"
)

func migrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := opts.database(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			spin := opts.out.Spinner("applying migrations")
			if err := migrations.Apply(cmd.Context(), db.DB); err != nil {
				spin.Error("migration failed")
				return err
			}
			spin.Success("schema up to date")
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := opts.database(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.Down(db.DB, steps); err != nil {
				return err
			}
			opts.out.Success("rolled back %d migration(s)", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := opts.database(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			v, dirty, err := migrations.Version(db.DB)
			if err != nil {
				return err
			}
			if dirty {
				opts.out.Warning("schema version %d (dirty)", v)
				return nil
			}
			opts.out.Info("schema version %d", v)
			return nil
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}
