package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/domu-platform/domu/internal/app/domain/building"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/runtime"
	"github.com/domu-platform/domu/internal/app/services/auth"
	"github.com/domu-platform/domu/internal/app/services/jobs"
	"github.com/domu-platform/domu/internal/app/storage/postgres"
)

type adminInput struct {
	email     string
	password  string
	firstName string
	lastName  string
	phone     string
	document  string
	building  string
	address   string
}

// createAdminCommand bootstraps an administrator account. The public
// registration flow cannot create one without an existing unit.
func createAdminCommand(opts *rootOptions) *cobra.Command {
	var in adminInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an active administrator, optionally with a building",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return createAdmin(cmd.Context(), opts, in)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.email, "email", "", "administrator email (required)")
	f.StringVar(&in.password, "password", "", "initial password (required)")
	f.StringVar(&in.firstName, "first-name", "Admin", "first name")
	f.StringVar(&in.lastName, "last-name", "Domu", "last name")
	f.StringVar(&in.phone, "phone", "", "phone number")
	f.StringVar(&in.document, "document", "", "national id (RUT)")
	f.StringVar(&in.building, "building", "", "create a building with this name and grant access")
	f.StringVar(&in.address, "address", "", "address of the new building")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func createAdmin(ctx context.Context, opts *rootOptions, in adminInput) error {
	email, err := auth.NormalizeEmail(in.email)
	if err != nil {
		return err
	}
	if err := auth.ValidatePassword(in.password); err != nil {
		return err
	}
	if in.building != "" && strings.TrimSpace(in.address) == "" {
		return fmt.Errorf("--address is required with --building")
	}

	cfg, db, err := opts.database(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	store := postgres.New(db)

	hash, err := bcrypt.GenerateFromPassword([]byte(in.password), cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u, err := store.CreateUser(ctx, user.User{
		RoleID:         user.RoleAdmin,
		FirstName:      strings.TrimSpace(in.firstName),
		LastName:       strings.TrimSpace(in.lastName),
		Email:          email,
		Phone:          strings.TrimSpace(in.phone),
		DocumentNumber: strings.TrimSpace(in.document),
		PasswordHash:   string(hash),
		Status:         user.StatusActive,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	opts.out.Success("administrator %s created (id %d)", u.Email, u.ID)

	if in.building == "" {
		return nil
	}
	b, err := store.CreateBuilding(ctx, building.Building{
		Name:    strings.TrimSpace(in.building),
		Address: strings.TrimSpace(in.address),
	})
	if err != nil {
		return fmt.Errorf("create building: %w", err)
	}
	if err := store.GrantBuildingAccess(ctx, u.ID, b.ID); err != nil {
		return fmt.Errorf("grant access: %w", err)
	}
	opts.out.Success("building %q created (id %d)", b.Name, b.ID)
	return nil
}

// jobsCommand runs a scheduled job once, outside the cron schedule.
func jobsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run background jobs on demand",
	}
	run := &cobra.Command{
		Use:       "run <job>",
		Short:     "Run one job now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.JobClosePolls, jobs.JobExpireVisits, jobs.JobPurgeTokens},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			rt, err := runtime.New(cmd.Context(), cfg, opts.logger(cfg))
			if err != nil {
				return err
			}
			defer func() { _ = rt.Shutdown(context.Background()) }()

			n, err := rt.Services().Jobs.RunNow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			opts.out.Success("%s affected %d row(s)", args[0], n)
			return nil
		},
	}
	cmd.AddCommand(run)
	return cmd
}
