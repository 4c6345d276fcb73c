package memory

import (
	"context"
	"strings"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/forum"
	"github.com/domu-platform/domu/internal/app/domain/library"
	"github.com/domu-platform/domu/internal/app/domain/staff"
	"github.com/domu-platform/domu/internal/app/domain/task"
)

// ForumStore implementation --------------------------------------------------

func (s *Store) ListCategories(_ context.Context) ([]forum.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]forum.Category, 0, len(s.forumCats))
	for _, c := range s.forumCats {
		result = append(result, c)
	}
	sortByID(result, func(c forum.Category) int64 { return c.ID })
	return result, nil
}

func (s *Store) GetCategoryByName(_ context.Context, name string) (forum.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.forumCats {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c, nil
		}
	}
	return forum.Category{}, notFound("category", name)
}

func (s *Store) CreateThread(_ context.Context, t forum.Thread) (forum.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, ok := s.forumCats[t.CategoryID]
	if !ok {
		return forum.Thread{}, notFound("category", t.CategoryID)
	}
	now := time.Now().UTC()
	t.ID = s.nextIDLocked()
	t.Category = cat.Name
	t.CreatedAt = now
	t.UpdatedAt = now
	s.threads[t.ID] = t
	return t, nil
}

func (s *Store) UpdateThread(_ context.Context, t forum.Thread) (forum.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.threads[t.ID]
	if !ok {
		return forum.Thread{}, notFound("thread", t.ID)
	}
	if cat, ok := s.forumCats[t.CategoryID]; ok {
		t.Category = cat.Name
	}
	t.CreatedAt = original.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	s.threads[t.ID] = t
	return t, nil
}

func (s *Store) GetThread(_ context.Context, id int64) (forum.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[id]
	if !ok {
		return forum.Thread{}, notFound("thread", id)
	}
	return t, nil
}

func (s *Store) ListThreads(_ context.Context, buildingID int64) ([]forum.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pinned, rest []forum.Thread
	for _, t := range s.threads {
		if t.BuildingID != buildingID {
			continue
		}
		if t.Pinned {
			pinned = append(pinned, t)
		} else {
			rest = append(rest, t)
		}
	}
	sortByID(pinned, func(t forum.Thread) int64 { return -t.ID })
	sortByID(rest, func(t forum.Thread) int64 { return -t.ID })
	return append(pinned, rest...), nil
}

func (s *Store) DeleteThread(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[id]; !ok {
		return notFound("thread", id)
	}
	delete(s.threads, id)
	return nil
}

// StaffStore implementation --------------------------------------------------

func (s *Store) CreateStaff(_ context.Context, m staff.Member) (staff.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	m.ID = s.nextIDLocked()
	m.CreatedAt = now
	m.UpdatedAt = now
	s.staffMembers[m.ID] = m
	return m, nil
}

func (s *Store) UpdateStaff(_ context.Context, m staff.Member) (staff.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.staffMembers[m.ID]
	if !ok {
		return staff.Member{}, notFound("staff", m.ID)
	}
	m.CreatedAt = original.CreatedAt
	m.UpdatedAt = time.Now().UTC()
	s.staffMembers[m.ID] = m
	return m, nil
}

func (s *Store) GetStaff(_ context.Context, id int64) (staff.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.staffMembers[id]
	if !ok {
		return staff.Member{}, notFound("staff", id)
	}
	return m, nil
}

func (s *Store) ListStaff(_ context.Context, buildingID int64, activeOnly bool) ([]staff.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []staff.Member
	for _, m := range s.staffMembers {
		if m.BuildingID == buildingID && (!activeOnly || m.Active) {
			result = append(result, m)
		}
	}
	sortByID(result, func(m staff.Member) int64 { return m.ID })
	return result, nil
}

func (s *Store) DeleteStaff(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.staffMembers[id]; !ok {
		return notFound("staff", id)
	}
	delete(s.staffMembers, id)
	for taskID, t := range s.tasks {
		kept := t.AssigneeIDs[:0:0]
		for _, a := range t.AssigneeIDs {
			if a != id {
				kept = append(kept, a)
			}
		}
		t.AssigneeIDs = kept
		s.tasks[taskID] = t
	}
	return nil
}

func (s *Store) FindStaffByRUT(_ context.Context, rut string) (staff.Member, error) {
	return s.findStaff(func(m staff.Member) bool { return strings.EqualFold(m.RUT, rut) }, rut)
}

func (s *Store) FindStaffByEmail(_ context.Context, email string) (staff.Member, error) {
	return s.findStaff(func(m staff.Member) bool { return m.Email != "" && strings.EqualFold(m.Email, email) }, email)
}

func (s *Store) FindStaffByUser(_ context.Context, userID int64) (staff.Member, error) {
	return s.findStaff(func(m staff.Member) bool { return m.UserID != nil && *m.UserID == userID }, userID)
}

func (s *Store) findStaff(match func(staff.Member) bool, key interface{}) (staff.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.staffMembers {
		if match(m) {
			return m, nil
		}
	}
	return staff.Member{}, notFound("staff", key)
}

// TaskStore implementation ---------------------------------------------------

func (s *Store) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	t.ID = s.nextIDLocked()
	t.AssigneeIDs = cloneInt64s(t.AssigneeIDs)
	t.CreatedAt = now
	t.UpdatedAt = now
	s.tasks[t.ID] = t
	return cloneTask(t), nil
}

func (s *Store) UpdateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.tasks[t.ID]
	if !ok {
		return task.Task{}, notFound("task", t.ID)
	}
	t.AssigneeIDs = cloneInt64s(t.AssigneeIDs)
	t.CreatedAt = original.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	s.tasks[t.ID] = t
	return cloneTask(t), nil
}

func (s *Store) GetTask(_ context.Context, id int64) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, notFound("task", id)
	}
	return cloneTask(t), nil
}

func (s *Store) ListTasks(_ context.Context, buildingID int64) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []task.Task
	for _, t := range s.tasks {
		if t.BuildingID == buildingID {
			result = append(result, cloneTask(t))
		}
	}
	sortByID(result, func(t task.Task) int64 { return -t.ID })
	return result, nil
}

func (s *Store) DeleteTask(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return notFound("task", id)
	}
	delete(s.tasks, id)
	return nil
}

func cloneTask(t task.Task) task.Task {
	t.AssigneeIDs = cloneInt64s(t.AssigneeIDs)
	return t
}

// LibraryStore implementation ------------------------------------------------

func (s *Store) CreateDocument(_ context.Context, d library.Document) (library.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d.ID = s.nextIDLocked()
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now().UTC()
	}
	s.documents[d.ID] = d
	return d, nil
}

func (s *Store) GetDocument(_ context.Context, id int64) (library.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.documents[id]
	if !ok {
		return library.Document{}, notFound("document", id)
	}
	return d, nil
}

func (s *Store) ListDocuments(_ context.Context, buildingID int64) ([]library.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []library.Document
	for _, d := range s.documents {
		if d.BuildingID == buildingID {
			result = append(result, d)
		}
	}
	sortByID(result, func(d library.Document) int64 { return -d.ID })
	return result, nil
}

func (s *Store) DeleteDocument(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return notFound("document", id)
	}
	delete(s.documents, id)
	return nil
}
