package forum

import (
	"context"
	"strings"

	"github.com/domu-platform/domu/internal/app/domain/forum"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/pkg/logger"
)

// Service manages building forum threads.
type Service struct {
	store storage.ForumStore
	users storage.UserStore
	log   *logger.Logger
}

// New constructs a forum service.
func New(store storage.ForumStore, users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("forum")
	}
	return &Service{store: store, users: users, log: log}
}

// ThreadInput creates or edits a thread.
type ThreadInput struct {
	Title    string
	Content  string
	Category string
	Pinned   bool
}

// Categories lists the forum categories.
func (s *Service) Categories(ctx context.Context) ([]forum.Category, error) {
	return s.store.ListCategories(ctx)
}

// List returns the threads of the selected building, pinned first.
func (s *Service) List(ctx context.Context, actor user.Actor) ([]forum.Thread, error) {
	if !actor.HasBuilding() {
		return nil, apperrors.BuildingRequired()
	}
	threads, err := s.store.ListThreads(ctx, actor.BuildingID)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string)
	for i := range threads {
		if threads[i].AuthorName != "" {
			continue
		}
		name, ok := names[threads[i].AuthorID]
		if !ok {
			if u, err := s.users.GetUser(ctx, threads[i].AuthorID); err == nil {
				name = u.FullName()
			}
			names[threads[i].AuthorID] = name
		}
		threads[i].AuthorName = name
	}
	if threads == nil {
		threads = []forum.Thread{}
	}
	return threads, nil
}

func (s *Service) validate(ctx context.Context, actor user.Actor, in ThreadInput) (forum.Category, error) {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return forum.Category{}, apperrors.Validation("title is required")
	case strings.TrimSpace(in.Content) == "":
		return forum.Category{}, apperrors.Validation("content is required")
	case strings.TrimSpace(in.Category) == "":
		return forum.Category{}, apperrors.Validation("category is required")
	}
	if in.Pinned && !actor.User.IsManager() {
		return forum.Category{}, apperrors.Validation("only building managers can pin threads")
	}
	cat, err := s.store.GetCategoryByName(ctx, in.Category)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return forum.Category{}, apperrors.Validation("unknown category %s", strings.TrimSpace(in.Category))
		}
		return forum.Category{}, err
	}
	return cat, nil
}

// Create posts a thread in the selected building.
func (s *Service) Create(ctx context.Context, actor user.Actor, in ThreadInput) (forum.Thread, error) {
	if !actor.HasBuilding() {
		return forum.Thread{}, apperrors.BuildingRequired()
	}
	cat, err := s.validate(ctx, actor, in)
	if err != nil {
		return forum.Thread{}, err
	}
	t, err := s.store.CreateThread(ctx, forum.Thread{
		BuildingID: actor.BuildingID,
		AuthorID:   actor.ID(),
		AuthorName: actor.User.FullName(),
		CategoryID: cat.ID,
		Title:      strings.TrimSpace(in.Title),
		Content:    strings.TrimSpace(in.Content),
		Pinned:     in.Pinned,
	})
	if err != nil {
		return forum.Thread{}, err
	}
	s.log.WithField("thread_id", t.ID).WithField("building_id", t.BuildingID).Info("forum thread created")
	return t, nil
}

// Update edits a thread. Authors and administrators may edit.
func (s *Service) Update(ctx context.Context, actor user.Actor, id int64, in ThreadInput) (forum.Thread, error) {
	existing, err := s.owned(ctx, actor, id, "edit")
	if err != nil {
		return forum.Thread{}, err
	}
	cat, err := s.validate(ctx, actor, in)
	if err != nil {
		return forum.Thread{}, err
	}
	existing.Title = strings.TrimSpace(in.Title)
	existing.Content = strings.TrimSpace(in.Content)
	existing.CategoryID = cat.ID
	existing.Pinned = in.Pinned
	return s.store.UpdateThread(ctx, existing)
}

// Delete removes a thread. Authors and administrators may delete.
func (s *Service) Delete(ctx context.Context, actor user.Actor, id int64) error {
	if _, err := s.owned(ctx, actor, id, "delete"); err != nil {
		return err
	}
	if err := s.store.DeleteThread(ctx, id); err != nil {
		return err
	}
	s.log.WithField("thread_id", id).WithField("deleted_by", actor.ID()).Info("forum thread deleted")
	return nil
}

func (s *Service) owned(ctx context.Context, actor user.Actor, id int64, action string) (forum.Thread, error) {
	t, err := s.store.GetThread(ctx, id)
	if err != nil {
		return forum.Thread{}, apperrors.FromStore(err, "thread not found")
	}
	if t.AuthorID != actor.ID() && !actor.User.IsAdmin() {
		return forum.Thread{}, apperrors.Forbidden("you are not allowed to " + action + " this thread")
	}
	return t, nil
}
