package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-redis/redis/v8"

	"github.com/domu-platform/domu/internal/app/services/amenities"
	"github.com/domu-platform/domu/internal/app/services/auth"
	"github.com/domu-platform/domu/internal/app/services/buildings"
	"github.com/domu-platform/domu/internal/app/services/chat"
	"github.com/domu-platform/domu/internal/app/services/finance"
	"github.com/domu-platform/domu/internal/app/services/forum"
	"github.com/domu-platform/domu/internal/app/services/incidents"
	"github.com/domu-platform/domu/internal/app/services/jobs"
	"github.com/domu-platform/domu/internal/app/services/library"
	"github.com/domu-platform/domu/internal/app/services/parcels"
	"github.com/domu-platform/domu/internal/app/services/polls"
	"github.com/domu-platform/domu/internal/app/services/staff"
	"github.com/domu-platform/domu/internal/app/services/tasks"
	"github.com/domu-platform/domu/internal/app/services/units"
	"github.com/domu-platform/domu/internal/app/services/users"
	"github.com/domu-platform/domu/internal/app/services/visits"
	"github.com/domu-platform/domu/internal/app/storage"
	"github.com/domu-platform/domu/internal/app/storage/memory"
	"github.com/domu-platform/domu/internal/app/system"
	"github.com/domu-platform/domu/internal/config"
	"github.com/domu-platform/domu/internal/platform/filestore"
	"github.com/domu-platform/domu/internal/platform/mailer"
	"github.com/domu-platform/domu/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users     storage.UserStore
	Tokens    storage.TokenStore
	Buildings storage.BuildingStore
	Units     storage.UnitStore
	Finance   storage.FinanceStore
	Visits    storage.VisitStore
	Incidents storage.IncidentStore
	Parcels   storage.ParcelStore
	Polls     storage.PollStore
	Amenities storage.AmenityStore
	Chat      storage.ChatStore
	Forum     storage.ForumStore
	Staff     storage.StaffStore
	Tasks     storage.TaskStore
	Library   storage.LibraryStore
}

func (s *Stores) fill(mem *memory.Store) {
	if s.Users == nil {
		s.Users = mem
	}
	if s.Tokens == nil {
		s.Tokens = mem
	}
	if s.Buildings == nil {
		s.Buildings = mem
	}
	if s.Units == nil {
		s.Units = mem
	}
	if s.Finance == nil {
		s.Finance = mem
	}
	if s.Visits == nil {
		s.Visits = mem
	}
	if s.Incidents == nil {
		s.Incidents = mem
	}
	if s.Parcels == nil {
		s.Parcels = mem
	}
	if s.Polls == nil {
		s.Polls = mem
	}
	if s.Amenities == nil {
		s.Amenities = mem
	}
	if s.Chat == nil {
		s.Chat = mem
	}
	if s.Forum == nil {
		s.Forum = mem
	}
	if s.Staff == nil {
		s.Staff = mem
	}
	if s.Tasks == nil {
		s.Tasks = mem
	}
	if s.Library == nil {
		s.Library = mem
	}
}

// Dependencies are the infrastructure clients shared by the services. Nil
// values get development defaults: the default config, a local file store in
// the temp directory, a logging mailer and no Redis.
type Dependencies struct {
	Config *config.Config
	Files  filestore.Store
	Mailer mailer.Mailer
	Redis  *redis.Client
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Config *config.Config
	Files  filestore.Store

	Auth      *auth.Service
	Users     *users.Service
	Buildings *buildings.Service
	Units     *units.Service
	Finance   *finance.Service
	Visits    *visits.Service
	Incidents *incidents.Service
	Parcels   *parcels.Service
	Polls     *polls.Service
	Amenities *amenities.Service
	Chat      *chat.Service
	ChatHub   *chat.Hub
	Forum     *forum.Service
	Staff     *staff.Service
	Tasks     *tasks.Service
	Library   *library.Service
	Jobs      *jobs.Scheduler
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, deps Dependencies, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	stores.fill(memory.New())

	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("default config: %w", err)
		}
	}
	files := deps.Files
	if files == nil {
		local, err := filestore.NewLocal(
			filepath.Join(os.TempDir(), "domu-files"),
			cfg.Server.PublicBaseURL+"/files",
			cfg.Storage.SignedURLExpiry,
			cfg.Auth.JWTSecret,
		)
		if err != nil {
			return nil, fmt.Errorf("local file store: %w", err)
		}
		files = local
	}
	mail := deps.Mailer
	if mail == nil {
		mail = mailer.NewLogMailer(log)
	}

	buildingSvc := buildings.New(stores.Buildings, stores.Units, log)
	authSvc := auth.New(stores.Users, stores.Tokens, buildingSvc, mail, cfg.Auth, cfg.Server.FrontendURL, log)
	hub := chat.NewHub(deps.Redis, log)
	pollSvc := polls.New(stores.Polls, log)

	application := &Application{
		manager:   system.NewManager(),
		log:       log,
		Config:    cfg,
		Files:     files,
		Auth:      authSvc,
		Users:     users.New(stores.Users, stores.Units, stores.Staff, authSvc, buildingSvc, log),
		Buildings: buildingSvc,
		Units:     units.New(stores.Units, stores.Users, buildingSvc, log),
		Finance:   finance.New(stores.Finance, stores.Units, stores.Users, stores.Buildings, files, log),
		Visits:    visits.New(stores.Visits, stores.Units, log),
		Incidents: incidents.New(stores.Incidents, log),
		Parcels:   parcels.New(stores.Parcels, stores.Units, log),
		Polls:     pollSvc,
		Amenities: amenities.New(stores.Amenities, stores.Users, log),
		Chat:      chat.New(stores.Chat, stores.Users, stores.Units, buildingSvc, hub, log),
		ChatHub:   hub,
		Forum:     forum.New(stores.Forum, stores.Users, log),
		Staff:     staff.New(stores.Staff, log),
		Tasks:     tasks.New(stores.Tasks, stores.Staff, log),
		Library:   library.New(stores.Library, files, log),
		Jobs:      jobs.New(cfg.Jobs, pollSvc, stores.Visits, stores.Tokens, log),
	}

	for _, svc := range []system.Service{hub, application.Jobs} {
		if err := application.manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}
	return application, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Services lists the lifecycle-managed services in start order.
func (a *Application) Services() []string {
	return a.manager.Services()
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
