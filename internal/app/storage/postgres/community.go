package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/forum"
	"github.com/domu-platform/domu/internal/app/domain/library"
	"github.com/domu-platform/domu/internal/app/domain/staff"
	"github.com/domu-platform/domu/internal/app/domain/task"
	"github.com/jmoiron/sqlx"
)

// --- ForumStore -------------------------------------------------------------

const threadSelect = `
	SELECT t.id, t.building_id, t.author_id,
		TRIM(u.first_name || ' ' || u.last_name) AS author_name,
		t.category_id, c.name AS category, t.title, t.content, t.pinned, t.created_at, t.updated_at
	FROM forum_threads t
	JOIN forum_categories c ON c.id = t.category_id
	JOIN users u ON u.id = t.author_id`

func (s *Store) ListCategories(ctx context.Context) ([]forum.Category, error) {
	var result []forum.Category
	err := s.db.SelectContext(ctx, &result, `SELECT id, name FROM forum_categories ORDER BY id`)
	return result, err
}

func (s *Store) GetCategoryByName(ctx context.Context, name string) (forum.Category, error) {
	var c forum.Category
	err := s.db.GetContext(ctx, &c, `
		SELECT id, name FROM forum_categories WHERE LOWER(name) = LOWER($1)
	`, strings.TrimSpace(name))
	return c, err
}

func (s *Store) CreateThread(ctx context.Context, t forum.Thread) (forum.Thread, error) {
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO forum_threads (building_id, author_id, category_id, title, content, pinned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id
	`, t.BuildingID, t.AuthorID, t.CategoryID, t.Title, t.Content, t.Pinned, now).Scan(&id)
	if err != nil {
		return forum.Thread{}, err
	}
	return s.GetThread(ctx, id)
}

func (s *Store) UpdateThread(ctx context.Context, t forum.Thread) (forum.Thread, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE forum_threads
		SET category_id = $2, title = $3, content = $4, pinned = $5, updated_at = $6
		WHERE id = $1
	`, t.ID, t.CategoryID, t.Title, t.Content, t.Pinned, time.Now().UTC())
	if err != nil {
		return forum.Thread{}, err
	}
	if err := checkAffected(result); err != nil {
		return forum.Thread{}, err
	}
	return s.GetThread(ctx, t.ID)
}

func (s *Store) GetThread(ctx context.Context, id int64) (forum.Thread, error) {
	var t forum.Thread
	err := s.db.GetContext(ctx, &t, threadSelect+` WHERE t.id = $1`, id)
	return t, err
}

func (s *Store) ListThreads(ctx context.Context, buildingID int64) ([]forum.Thread, error) {
	var result []forum.Thread
	err := s.db.SelectContext(ctx, &result, threadSelect+`
		WHERE t.building_id = $1
		ORDER BY t.pinned DESC, t.created_at DESC, t.id DESC
	`, buildingID)
	return result, err
}

func (s *Store) DeleteThread(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM forum_threads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// --- StaffStore -------------------------------------------------------------

const staffColumns = `id, building_id, user_id, first_name, last_name, rut, email, phone, position,
	active, created_at, updated_at`

func (s *Store) CreateStaff(ctx context.Context, m staff.Member) (staff.Member, error) {
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO staff (building_id, user_id, first_name, last_name, rut, email, phone, position,
			active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, m.BuildingID, m.UserID, m.FirstName, m.LastName, m.RUT, m.Email, m.Phone, m.Position,
		m.Active, m.CreatedAt, m.UpdatedAt).Scan(&m.ID)
	if err != nil {
		return staff.Member{}, err
	}
	return m, nil
}

func (s *Store) UpdateStaff(ctx context.Context, m staff.Member) (staff.Member, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE staff
		SET user_id = $2, first_name = $3, last_name = $4, rut = $5, email = $6, phone = $7,
			position = $8, active = $9, updated_at = $10
		WHERE id = $1
	`, m.ID, m.UserID, m.FirstName, m.LastName, m.RUT, m.Email, m.Phone, m.Position, m.Active, time.Now().UTC())
	if err != nil {
		return staff.Member{}, err
	}
	if err := checkAffected(result); err != nil {
		return staff.Member{}, err
	}
	return s.GetStaff(ctx, m.ID)
}

func (s *Store) GetStaff(ctx context.Context, id int64) (staff.Member, error) {
	var m staff.Member
	err := s.db.GetContext(ctx, &m, `SELECT `+staffColumns+` FROM staff WHERE id = $1`, id)
	return m, err
}

func (s *Store) ListStaff(ctx context.Context, buildingID int64, activeOnly bool) ([]staff.Member, error) {
	var result []staff.Member
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+staffColumns+` FROM staff
		WHERE building_id = $1 AND (NOT $2 OR active)
		ORDER BY id
	`, buildingID, activeOnly)
	return result, err
}

func (s *Store) DeleteStaff(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM staff WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func (s *Store) FindStaffByRUT(ctx context.Context, rut string) (staff.Member, error) {
	var m staff.Member
	err := s.db.GetContext(ctx, &m, `SELECT `+staffColumns+` FROM staff WHERE UPPER(rut) = UPPER($1)`, rut)
	return m, err
}

func (s *Store) FindStaffByEmail(ctx context.Context, email string) (staff.Member, error) {
	var m staff.Member
	err := s.db.GetContext(ctx, &m, `
		SELECT `+staffColumns+` FROM staff WHERE email <> '' AND LOWER(email) = LOWER($1) LIMIT 1
	`, email)
	return m, err
}

func (s *Store) FindStaffByUser(ctx context.Context, userID int64) (staff.Member, error) {
	var m staff.Member
	err := s.db.GetContext(ctx, &m, `SELECT `+staffColumns+` FROM staff WHERE user_id = $1 LIMIT 1`, userID)
	return m, err
}

// --- TaskStore --------------------------------------------------------------

const taskColumns = `id, building_id, title, description, status, priority, due_date, completed_at,
	created_by, created_at, updated_at`

func (s *Store) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return task.Task{}, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := tx.QueryRowxContext(ctx, `
		INSERT INTO tasks (building_id, title, description, status, priority, due_date, completed_at,
			created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, t.BuildingID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.CompletedAt,
		t.CreatedBy, t.CreatedAt, t.UpdatedAt).Scan(&t.ID); err != nil {
		return task.Task{}, err
	}
	if err := replaceAssignees(ctx, tx, t.ID, t.AssigneeIDs); err != nil {
		return task.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return task.Task{}, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5, due_date = $6,
			completed_at = $7, updated_at = $8
		WHERE id = $1
	`, t.ID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.CompletedAt, time.Now().UTC())
	if err != nil {
		return task.Task{}, err
	}
	if err := checkAffected(result); err != nil {
		return task.Task{}, err
	}
	if err := replaceAssignees(ctx, tx, t.ID, t.AssigneeIDs); err != nil {
		return task.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return task.Task{}, err
	}
	return s.GetTask(ctx, t.ID)
}

func replaceAssignees(ctx context.Context, tx *sqlx.Tx, taskID int64, staffIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = $1`, taskID); err != nil {
		return err
	}
	for _, staffID := range staffIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO task_assignees (task_id, staff_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, taskID, staffID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id int64) (task.Task, error) {
	var t task.Task
	if err := s.db.GetContext(ctx, &t, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id); err != nil {
		return task.Task{}, err
	}
	if err := s.db.SelectContext(ctx, &t.AssigneeIDs, `
		SELECT staff_id FROM task_assignees WHERE task_id = $1 ORDER BY staff_id
	`, id); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, buildingID int64) ([]task.Task, error) {
	var result []task.Task
	if err := s.db.SelectContext(ctx, &result, `
		SELECT `+taskColumns+` FROM tasks WHERE building_id = $1 ORDER BY created_at DESC, id DESC
	`, buildingID); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return result, nil
	}

	ids := make([]int64, len(result))
	index := make(map[int64]int, len(result))
	for i, t := range result {
		ids[i] = t.ID
		index[t.ID] = i
	}
	query, args, err := sqlx.In(`SELECT task_id, staff_id FROM task_assignees WHERE task_id IN (?) ORDER BY staff_id`, ids)
	if err != nil {
		return nil, err
	}
	var links []struct {
		TaskID  int64 `db:"task_id"`
		StaffID int64 `db:"staff_id"`
	}
	if err := s.db.SelectContext(ctx, &links, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, link := range links {
		i := index[link.TaskID]
		result[i].AssigneeIDs = append(result[i].AssigneeIDs, link.StaffID)
	}
	return result, nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// --- LibraryStore -----------------------------------------------------------

const documentColumns = `id, building_id, name, category, file_name, object_key, size_bytes, uploaded_by, uploaded_at`

func (s *Store) CreateDocument(ctx context.Context, d library.Document) (library.Document, error) {
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now().UTC()
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO library_documents (building_id, name, category, file_name, object_key, size_bytes,
			uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, d.BuildingID, d.Name, d.Category, d.FileName, d.ObjectKey, d.Size, d.UploadedBy, d.UploadedAt).Scan(&d.ID)
	if err != nil {
		return library.Document{}, err
	}
	return d, nil
}

func (s *Store) GetDocument(ctx context.Context, id int64) (library.Document, error) {
	var d library.Document
	err := s.db.GetContext(ctx, &d, `SELECT `+documentColumns+` FROM library_documents WHERE id = $1`, id)
	return d, err
}

func (s *Store) ListDocuments(ctx context.Context, buildingID int64) ([]library.Document, error) {
	var result []library.Document
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+documentColumns+` FROM library_documents WHERE building_id = $1 ORDER BY uploaded_at DESC, id DESC
	`, buildingID)
	return result, err
}

func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM library_documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}
