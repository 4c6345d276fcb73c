package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/services/auth"
	"github.com/domu-platform/domu/internal/app/services/buildings"
	"github.com/domu-platform/domu/internal/app/services/users"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/internal/middleware"
)

func parseDay(raw *string, field string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(*raw))
	if err != nil {
		return nil, apperrors.Validation("%s must be YYYY-MM-DD", field)
	}
	return &t, nil
}

func (h *handler) authRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/confirm", h.confirm).Methods(http.MethodPost)
	r.HandleFunc("/password/forgot", h.forgotPassword).Methods(http.MethodPost)
	r.HandleFunc("/password/reset", h.resetPassword).Methods(http.MethodPost)
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FirstName      string  `json:"firstName"`
		LastName       string  `json:"lastName"`
		Phone          string  `json:"phone"`
		DocumentNumber string  `json:"documentNumber"`
		Email          string  `json:"email" validate:"required"`
		Password       string  `json:"password" validate:"required"`
		RoleID         int64   `json:"roleId"`
		UnitID         *int64  `json:"unitId"`
		BirthDate      *string `json:"birthDate"`
		Resident       bool    `json:"resident"`
	}
	if !decode(w, r, &payload) {
		return
	}
	birth, err := parseDay(payload.BirthDate, "birthDate")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.app.Auth.Register(r.Context(), auth.RegisterInput{
		FirstName:      payload.FirstName,
		LastName:       payload.LastName,
		Phone:          payload.Phone,
		DocumentNumber: payload.DocumentNumber,
		Email:          payload.Email,
		Password:       payload.Password,
		RoleID:         payload.RoleID,
		UnitID:         payload.UnitID,
		BirthDate:      birth,
		Resident:       payload.Resident,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !decode(w, r, &payload) {
		return
	}
	session, err := h.app.Auth.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if apperrors.GetServiceError(err) != nil {
			h.log.LogSecurityEvent(r.Context(), "login_failed", map[string]interface{}{
				"client": middleware.ClientIP(r),
			})
		}
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *handler) confirm(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password"`
	}
	if !decode(w, r, &payload) {
		return
	}
	u, err := h.app.Auth.Confirm(r.Context(), payload.Token, payload.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email" validate:"required"`
	}
	if !decode(w, r, &payload) {
		return
	}
	if err := h.app.Auth.RequestPasswordReset(r.Context(), payload.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required"`
	}
	if !decode(w, r, &payload) {
		return
	}
	if err := h.app.Auth.ResetPassword(r.Context(), payload.Token, payload.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) userRoutes(r *mux.Router) {
	r.HandleFunc("/users/me", h.me).Methods(http.MethodGet)
	r.HandleFunc("/users/me/unit", h.myUnit).Methods(http.MethodGet)
	r.HandleFunc("/users/me/profile", h.updateProfile).Methods(http.MethodPut)
	r.HandleFunc("/users/me/password", h.changePassword).Methods(http.MethodPost)
	r.HandleFunc("/users/{id:[0-9]+}/profile", h.publicProfile).Methods(http.MethodGet)
	r.HandleFunc("/admin/users", h.adminCreateUser).Methods(http.MethodPost)
	r.HandleFunc("/admin/residents", h.listResidents).Methods(http.MethodGet)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	profile, err := h.app.Users.Me(r.Context(), u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *handler) myUnit(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	un, err := h.app.Users.MyUnit(r.Context(), u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, un)
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		FirstName      string  `json:"firstName"`
		LastName       string  `json:"lastName"`
		Phone          string  `json:"phone"`
		DocumentNumber string  `json:"documentNumber"`
		BirthDate      *string `json:"birthDate"`
		AvatarURL      string  `json:"avatarUrl" validate:"omitempty,url"`
	}
	if !decode(w, r, &payload) {
		return
	}
	birth, err := parseDay(payload.BirthDate, "birthDate")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.app.Users.UpdateProfile(r.Context(), u, users.ProfileInput{
		FirstName:      payload.FirstName,
		LastName:       payload.LastName,
		Phone:          payload.Phone,
		DocumentNumber: payload.DocumentNumber,
		BirthDate:      birth,
		AvatarURL:      payload.AvatarURL,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		CurrentPassword string `json:"currentPassword" validate:"required"`
		NewPassword     string `json:"newPassword" validate:"required"`
	}
	if !decode(w, r, &payload) {
		return
	}
	if err := h.app.Users.ChangePassword(r.Context(), u, payload.CurrentPassword, payload.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) publicProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	profile, err := h.app.Users.PublicProfile(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *handler) adminCreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		FirstName      string `json:"firstName"`
		LastName       string `json:"lastName"`
		Email          string `json:"email" validate:"required"`
		Phone          string `json:"phone"`
		DocumentNumber string `json:"documentNumber"`
		RoleID         int64  `json:"roleId" validate:"omitempty,oneof=1 2 3 4"`
		UnitID         *int64 `json:"unitId"`
		Resident       bool   `json:"resident"`
		Position       string `json:"position"`
	}
	if !decode(w, r, &payload) {
		return
	}
	created, err := h.app.Users.AdminCreateUser(r.Context(), actor, users.CreateInput{
		FirstName:      payload.FirstName,
		LastName:       payload.LastName,
		Email:          payload.Email,
		Phone:          payload.Phone,
		DocumentNumber: payload.DocumentNumber,
		RoleID:         payload.RoleID,
		UnitID:         payload.UnitID,
		Resident:       payload.Resident,
		Position:       payload.Position,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listResidents(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	residents, err := h.app.Users.ListResidents(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, residents)
}

func (h *handler) buildingRoutes(r *mux.Router) {
	r.HandleFunc("/buildings/requests", h.submitBuildingRequest).Methods(http.MethodPost)
	r.HandleFunc("/buildings/mine", h.myBuildings).Methods(http.MethodGet)
	r.HandleFunc("/admin/buildings/requests", h.listBuildingRequests).Methods(http.MethodGet)
	r.HandleFunc("/admin/buildings/requests/{id:[0-9]+}/approve", h.reviewBuildingRequest(true)).Methods(http.MethodPost)
	r.HandleFunc("/admin/buildings/requests/{id:[0-9]+}/reject", h.reviewBuildingRequest(false)).Methods(http.MethodPost)
}

func (h *handler) submitBuildingRequest(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name      string   `json:"name"`
		Address   string   `json:"address"`
		Commune   string   `json:"commune"`
		City      string   `json:"city"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		ProofText string   `json:"proofText"`
	}
	if !decode(w, r, &payload) {
		return
	}
	var requester *user.User
	if u, ok := middleware.UserFrom(r.Context()); ok {
		requester = &u
	}
	req, err := h.app.Buildings.SubmitRequest(r.Context(), requester, buildings.RequestInput{
		Name:      payload.Name,
		Address:   payload.Address,
		Commune:   payload.Commune,
		City:      payload.City,
		Latitude:  payload.Latitude,
		Longitude: payload.Longitude,
		ProofText: payload.ProofText,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *handler) myBuildings(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	list, err := h.app.Buildings.MyBuildings(r.Context(), u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) listBuildingRequests(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if !u.IsAdmin() {
		h.fail(w, r, apperrors.Forbidden("only administrators can review building requests"))
		return
	}
	list, err := h.app.Buildings.ListRequests(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) reviewBuildingRequest(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := h.currentUser(w, r)
		if !ok {
			return
		}
		if !u.IsAdmin() {
			h.fail(w, r, apperrors.Forbidden("only administrators can review building requests"))
			return
		}
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var payload struct {
			Notes string `json:"notes"`
		}
		if r.ContentLength != 0 && !decode(w, r, &payload) {
			return
		}
		review := h.app.Buildings.RejectRequest
		if approve {
			review = h.app.Buildings.ApproveRequest
		}
		req, err := review(r.Context(), u, id, payload.Notes)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}
