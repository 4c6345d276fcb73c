package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/domu-platform/domu/internal/app/services/forum"
	"github.com/domu-platform/domu/internal/app/services/library"
	"github.com/domu-platform/domu/internal/app/services/staff"
	"github.com/domu-platform/domu/internal/app/services/tasks"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/internal/httputil"
	"github.com/domu-platform/domu/internal/platform/filestore"
)

func (h *handler) forumRoutes(r *mux.Router) {
	r.HandleFunc("/forum/categories", h.forumCategories).Methods(http.MethodGet)
	r.HandleFunc("/forum/threads", h.listThreads).Methods(http.MethodGet)
	r.HandleFunc("/forum/threads", h.saveThread).Methods(http.MethodPost)
	r.HandleFunc("/forum/threads/{id:[0-9]+}", h.saveThread).Methods(http.MethodPut)
	r.HandleFunc("/forum/threads/{id:[0-9]+}", h.deleteThread).Methods(http.MethodDelete)
}

func (h *handler) forumCategories(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.currentUser(w, r); !ok {
		return
	}
	cats, err := h.app.Forum.Categories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *handler) listThreads(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	threads, err := h.app.Forum.List(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

// saveThread creates on POST and updates on PUT.
func (h *handler) saveThread(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		Category string `json:"category"`
		Pinned   bool   `json:"pinned"`
	}
	if !decode(w, r, &payload) {
		return
	}
	in := forum.ThreadInput{Title: payload.Title, Content: payload.Content, Category: payload.Category, Pinned: payload.Pinned}
	if r.Method == http.MethodPost {
		created, err := h.app.Forum.Create(r.Context(), actor, in)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	updated, err := h.app.Forum.Update(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteThread(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.app.Forum.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) staffRoutes(r *mux.Router) {
	r.HandleFunc("/admin/staff", h.listStaff).Methods(http.MethodGet)
	r.HandleFunc("/admin/staff", h.saveStaff).Methods(http.MethodPost)
	r.HandleFunc("/admin/staff/active", h.activeStaff).Methods(http.MethodGet)
	r.HandleFunc("/admin/staff/{id:[0-9]+}", h.getStaff).Methods(http.MethodGet)
	r.HandleFunc("/admin/staff/{id:[0-9]+}", h.saveStaff).Methods(http.MethodPut)
	r.HandleFunc("/admin/staff/{id:[0-9]+}", h.deleteStaff).Methods(http.MethodDelete)
	r.HandleFunc("/staff/me", h.staffMe).Methods(http.MethodGet)
}

func (h *handler) listStaff(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	list, err := h.app.Staff.List(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) activeStaff(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	list, err := h.app.Staff.ListActive(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getStaff(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	member, err := h.app.Staff.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// saveStaff creates on POST and updates on PUT.
func (h *handler) saveStaff(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		UserID    *int64 `json:"userId"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		RUT       string `json:"rut"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
		Position  string `json:"position"`
		Active    *bool  `json:"active"`
	}
	if !decode(w, r, &payload) {
		return
	}
	in := staff.Input{
		UserID:    payload.UserID,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		RUT:       payload.RUT,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Position:  payload.Position,
		Active:    payload.Active,
	}
	if r.Method == http.MethodPost {
		created, err := h.app.Staff.Create(r.Context(), actor, in)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	updated, err := h.app.Staff.Update(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteStaff(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.app.Staff.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) staffMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	member, err := h.app.Staff.Me(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *handler) taskRoutes(r *mux.Router) {
	r.HandleFunc("/tasks", h.listTasks).Methods(http.MethodGet)
	r.HandleFunc("/tasks", h.saveTask).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id:[0-9]+}", h.saveTask).Methods(http.MethodPut)
	r.HandleFunc("/tasks/{id:[0-9]+}", h.deleteTask).Methods(http.MethodDelete)
	r.HandleFunc("/staff/me/tasks", h.assignedTasks).Methods(http.MethodGet)
}

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	list, err := h.app.Tasks.List(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) assignedTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	list, err := h.app.Tasks.Assigned(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// saveTask creates on POST and updates on PUT.
func (h *handler) saveTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		AssigneeIDs []int64 `json:"assigneeIds"`
		Status      string  `json:"status"`
		Priority    string  `json:"priority"`
		DueDate     *string `json:"dueDate"`
	}
	if !decode(w, r, &payload) {
		return
	}
	due, err := parseDay(payload.DueDate, "dueDate")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	in := tasks.Input{
		Title:       payload.Title,
		Description: payload.Description,
		AssigneeIDs: payload.AssigneeIDs,
		Status:      payload.Status,
		Priority:    payload.Priority,
		DueDate:     due,
	}
	if r.Method == http.MethodPost {
		created, err := h.app.Tasks.Create(r.Context(), actor, in)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	updated, err := h.app.Tasks.Update(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.app.Tasks.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) libraryRoutes(r *mux.Router) {
	r.HandleFunc("/library", h.listDocuments).Methods(http.MethodGet)
	r.HandleFunc("/library", h.uploadDocument).Methods(http.MethodPost)
	r.HandleFunc("/library/{id:[0-9]+}", h.deleteDocument).Methods(http.MethodDelete)
}

func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	docs, err := h.app.Library.List(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	file, err := formFile(w, r, "file")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer file.Close()
	doc, err := h.app.Library.Upload(r.Context(), actor, library.UploadInput{
		Name:        r.FormValue("name"),
		Category:    r.FormValue("category"),
		FileName:    file.name,
		ContentType: file.contentType,
		Size:        file.size,
	}, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.app.Library.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, r, err)
		return
	}
	noContent(w)
}

// signedFiles is implemented by stores that hand out their own download URLs.
type signedFiles interface {
	Verify(key, expires, signature string) bool
}

// serveFile streams objects of the local file store behind signed URLs.
func (h *handler) serveFile(w http.ResponseWriter, r *http.Request) {
	verifier, ok := h.app.Files.(signedFiles)
	if !ok {
		http.NotFound(w, r)
		return
	}
	key := mux.Vars(r)["key"]
	q := r.URL.Query()
	if !verifier.Verify(key, q.Get("expires"), q.Get("signature")) {
		h.log.LogSecurityEvent(r.Context(), "invalid_file_signature", map[string]interface{}{"key": key})
		httputil.WriteError(w, apperrors.Forbidden("invalid or expired link"))
		return
	}
	body, err := h.app.Files.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.fail(w, r, err)
		return
	}
	defer body.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	if strings.HasSuffix(strings.ToLower(key), ".pdf") {
		w.Header().Set("Content-Type", "application/pdf")
	}
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.log.WithContext(r.Context()).WithError(err).Warn("stream file")
	}
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type hostStats struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	MemoryUsed    uint64  `json:"memoryUsedBytes"`
	Load1         float64 `json:"load1"`
	Load5         float64 `json:"load5"`
	Load15        float64 `json:"load15"`
	Goroutines    int     `json:"goroutines"`
}

func (h *handler) healthDetails(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	database := "memory"
	if h.db != nil {
		database = "up"
		if err := h.db.PingContext(ctx); err != nil {
			h.log.WithContext(ctx).WithError(err).Warn("database ping failed")
			database = "down"
			status = "degraded"
		}
	}

	stats := hostStats{Goroutines: runtime.NumGoroutine()}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		stats.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsed = vm.Used
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		stats.Load1, stats.Load5, stats.Load15 = avg.Load1, avg.Load5, avg.Load15
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":   status,
		"database": database,
		"version":  h.version,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
		"host":     stats,
	})
}
