package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/domu-platform/domu/internal/app/services/amenities"
	"github.com/domu-platform/domu/internal/app/services/incidents"
	"github.com/domu-platform/domu/internal/app/services/parcels"
	"github.com/domu-platform/domu/internal/app/services/polls"
	"github.com/domu-platform/domu/internal/app/services/visits"
)

func (h *handler) visitRoutes(r *mux.Router) {
	r.HandleFunc("/visits", h.createVisit).Methods(http.MethodPost)
	r.HandleFunc("/visits/my", h.myVisits).Methods(http.MethodGet)
	r.HandleFunc("/visits/history", h.visitHistory).Methods(http.MethodGet)
	r.HandleFunc("/visits/qr-check", h.qrCheck).Methods(http.MethodPost)
	r.HandleFunc("/visits/{id:[0-9]+}/check-in", h.checkIn).Methods(http.MethodPost)
	r.HandleFunc("/visit-contacts", h.listContacts).Methods(http.MethodGet)
	r.HandleFunc("/visit-contacts", h.createContact).Methods(http.MethodPost)
	r.HandleFunc("/visit-contacts/{id:[0-9]+}", h.deleteContact).Methods(http.MethodDelete)
	r.HandleFunc("/visit-contacts/{id:[0-9]+}/register", h.registerFromContact).Methods(http.MethodPost)
}

type visitPayload struct {
	VisitorName     string     `json:"visitorName"`
	VisitorDocument string     `json:"visitorDocument"`
	VisitorType     string     `json:"visitorType"`
	Company         string     `json:"company"`
	UnitID          *int64     `json:"unitId"`
	ValidFrom       *time.Time `json:"validFrom"`
	ValidUntil      *time.Time `json:"validUntil"`
	ValidForMinutes *int       `json:"validForMinutes"`
}

func (p visitPayload) input() visits.CreateInput {
	return visits.CreateInput{
		VisitorName:     p.VisitorName,
		VisitorDocument: p.VisitorDocument,
		VisitorType:     p.VisitorType,
		Company:         p.Company,
		UnitID:          p.UnitID,
		ValidFrom:       p.ValidFrom,
		ValidUntil:      p.ValidUntil,
		ValidForMinutes: p.ValidForMinutes,
	}
}

func (h *handler) createVisit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload visitPayload
	if !decode(w, r, &payload) {
		return
	}
	created, err := h.app.Visits.Create(r.Context(), actor, payload.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) myVisits(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	lists, err := h.app.Visits.MyVisits(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

func (h *handler) visitHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	list, err := h.app.Visits.History(r.Context(), actor, r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) checkIn(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	v, err := h.app.Visits.CheckIn(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handler) qrCheck(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		RUN string `json:"run" validate:"required"`
	}
	if !decode(w, r, &payload) {
		return
	}
	v, err := h.app.Visits.QRCheck(r.Context(), actor, payload.RUN)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handler) listContacts(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	limit, err := queryInt64(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.app.Visits.ListContacts(r.Context(), actor, r.URL.Query().Get("search"), int(limit))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) createContact(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		VisitorName     string `json:"visitorName"`
		VisitorDocument string `json:"visitorDocument"`
		UnitID          *int64 `json:"unitId"`
		Alias           string `json:"alias"`
	}
	if !decode(w, r, &payload) {
		return
	}
	created, err := h.app.Visits.CreateContact(r.Context(), actor, visits.ContactInput{
		VisitorName:     payload.VisitorName,
		VisitorDocument: payload.VisitorDocument,
		UnitID:          payload.UnitID,
		Alias:           payload.Alias,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) deleteContact(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.app.Visits.DeleteContact(r.Context(), actor, id); err != nil {
		h.fail(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) registerFromContact(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload visitPayload
	if r.ContentLength != 0 && !decode(w, r, &payload) {
		return
	}
	created, err := h.app.Visits.RegisterFromContact(r.Context(), actor, id, payload.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) incidentRoutes(r *mux.Router) {
	r.HandleFunc("/incidents", h.createIncident).Methods(http.MethodPost)
	r.HandleFunc("/incidents/my", h.listIncidents).Methods(http.MethodGet)
	r.HandleFunc("/incidents/{id:[0-9]+}/status", h.incidentStatus).Methods(http.MethodPut)
	r.HandleFunc("/incidents/{id:[0-9]+}/assign", h.assignIncident).Methods(http.MethodPut)
}

func (h *handler) createIncident(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Priority    string `json:"priority"`
		Status      string `json:"status"`
	}
	if !decode(w, r, &payload) {
		return
	}
	created, err := h.app.Incidents.Create(r.Context(), actor, incidents.CreateInput{
		Title:       payload.Title,
		Description: payload.Description,
		Category:    payload.Category,
		Priority:    payload.Priority,
		Status:      payload.Status,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listIncidents(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	grouped, err := h.app.Incidents.List(r.Context(), actor, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grouped)
}

func (h *handler) incidentStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload struct {
		Status string `json:"status" validate:"required"`
	}
	if !decode(w, r, &payload) {
		return
	}
	updated, err := h.app.Incidents.UpdateStatus(r.Context(), actor, id, payload.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) assignIncident(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload struct {
		AssignedToID *int64 `json:"assignedToId"`
	}
	if !decode(w, r, &payload) {
		return
	}
	updated, err := h.app.Incidents.Assign(r.Context(), actor, id, payload.AssignedToID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) parcelRoutes(r *mux.Router) {
	r.HandleFunc("/admin/parcels", h.listParcels).Methods(http.MethodGet)
	r.HandleFunc("/admin/parcels", h.saveParcel).Methods(http.MethodPost)
	r.HandleFunc("/admin/parcels/{id:[0-9]+}", h.saveParcel).Methods(http.MethodPut)
	r.HandleFunc("/admin/parcels/{id:[0-9]+}", h.deleteParcel).Methods(http.MethodDelete)
	r.HandleFunc("/admin/parcels/{id:[0-9]+}/status", h.parcelStatus).Methods(http.MethodPatch)
	r.HandleFunc("/parcels/my", h.myParcels).Methods(http.MethodGet)
}

func (h *handler) listParcels(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	unitID, err := queryInt64(r, "unitId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.app.Parcels.List(r.Context(), actor, r.URL.Query().Get("status"), unitID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) myParcels(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	list, err := h.app.Parcels.MyParcels(r.Context(), actor, r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// saveParcel creates on POST and updates on PUT.
func (h *handler) saveParcel(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		UnitID      int64      `json:"unitId"`
		Sender      string     `json:"sender"`
		Description string     `json:"description"`
		ReceivedAt  *time.Time `json:"receivedAt"`
	}
	if !decode(w, r, &payload) {
		return
	}
	in := parcels.Input{
		UnitID:      payload.UnitID,
		Sender:      payload.Sender,
		Description: payload.Description,
		ReceivedAt:  payload.ReceivedAt,
	}
	if r.Method == http.MethodPost {
		created, err := h.app.Parcels.Create(r.Context(), actor, in)
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
	updated, err := h.app.Parcels.Update(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteParcel(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.app.Parcels.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) parcelStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload struct {
		Status string `json:"status" validate:"required"`
	}
	if !decode(w, r, &payload) {
		return
	}
	updated, err := h.app.Parcels.UpdateStatus(r.Context(), actor, id, payload.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) pollRoutes(r *mux.Router) {
	r.HandleFunc("/polls", h.createPoll).Methods(http.MethodPost)
	r.HandleFunc("/polls", h.listPolls).Methods(http.MethodGet)
	r.HandleFunc("/polls/{id:[0-9]+}", h.getPoll).Methods(http.MethodGet)
	r.HandleFunc("/polls/{id:[0-9]+}/vote", h.votePoll).Methods(http.MethodPost)
	r.HandleFunc("/polls/{id:[0-9]+}/close", h.closePoll).Methods(http.MethodPost)
	r.HandleFunc("/polls/{id:[0-9]+}/export", h.exportPoll).Methods(http.MethodGet)
}

func (h *handler) createPoll(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		ClosesAt    time.Time `json:"closesAt"`
		Options     []string  `json:"options"`
	}
	if !decode(w, r, &payload) {
		return
	}
	created, err := h.app.Polls.Create(r.Context(), actor, polls.CreateInput{
		Title:       payload.Title,
		Description: payload.Description,
		ClosesAt:    payload.ClosesAt,
		Options:     payload.Options,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listPolls(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	lists, err := h.app.Polls.List(r.Context(), actor, r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

func (h *handler) getPoll(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.app.Polls.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) votePoll(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload struct {
		OptionID int64 `json:"optionId" validate:"required"`
	}
	if !decode(w, r, &payload) {
		return
	}
	result, err := h.app.Polls.Vote(r.Context(), actor, id, payload.OptionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) closePoll(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.app.Polls.Close(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) exportPoll(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	body, err := h.app.Polls.ExportCSV(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"votacion-%d.csv\"", id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *handler) amenityRoutes(r *mux.Router) {
	r.HandleFunc("/amenities", h.listAmenities).Methods(http.MethodGet)
	r.HandleFunc("/amenities", h.saveAmenity).Methods(http.MethodPost)
	r.HandleFunc("/amenities/my-reservations", h.myReservations).Methods(http.MethodGet)
	r.HandleFunc("/amenities/reservations/{id:[0-9]+}/cancel", h.cancelReservation).Methods(http.MethodPost)
	r.HandleFunc("/amenities/{id:[0-9]+}", h.getAmenity).Methods(http.MethodGet)
	r.HandleFunc("/amenities/{id:[0-9]+}", h.saveAmenity).Methods(http.MethodPut)
	r.HandleFunc("/amenities/{id:[0-9]+}", h.deleteAmenity).Methods(http.MethodDelete)
	r.HandleFunc("/amenities/{id:[0-9]+}/time-slots", h.replaceSlots).Methods(http.MethodPut)
	r.HandleFunc("/amenities/{id:[0-9]+}/availability", h.availability).Methods(http.MethodGet)
	r.HandleFunc("/amenities/{id:[0-9]+}/reserve", h.reserve).Methods(http.MethodPost)
	r.HandleFunc("/amenities/{id:[0-9]+}/reservations", h.amenityReservations).Methods(http.MethodGet)
}

func (h *handler) listAmenities(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("includeInactive"))
	list, err := h.app.Amenities.List(r.Context(), actor, includeInactive)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getAmenity(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.app.Amenities.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// saveAmenity creates on POST and updates on PUT.
func (h *handler) saveAmenity(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		Name        string           `json:"name"`
		Description string           `json:"description"`
		MaxCapacity *int             `json:"maxCapacity"`
		CostPerSlot *decimal.Decimal `json:"costPerSlot"`
		Rules       string           `json:"rules"`
		ImageURL    string           `json:"imageUrl"`
		Status      string           `json:"status"`
	}
	if !decode(w, r, &payload) {
		return
	}
	in := amenities.Input{
		Name:        payload.Name,
		Description: payload.Description,
		MaxCapacity: payload.MaxCapacity,
		CostPerSlot: payload.CostPerSlot,
		Rules:       payload.Rules,
		ImageURL:    payload.ImageURL,
		Status:      payload.Status,
	}
	if r.Method == http.MethodPost {
		created, err := h.app.Amenities.Create(r.Context(), actor, in)
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
	updated, err := h.app.Amenities.Update(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteAmenity(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.app.Amenities.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) replaceSlots(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload struct {
		Slots []struct {
			DayOfWeek int    `json:"dayOfWeek"`
			StartTime string `json:"startTime"`
			EndTime   string `json:"endTime"`
			Active    *bool  `json:"active"`
		} `json:"timeSlots"`
	}
	if !decode(w, r, &payload) {
		return
	}
	in := make([]amenities.SlotInput, 0, len(payload.Slots))
	for _, s := range payload.Slots {
		in = append(in, amenities.SlotInput{DayOfWeek: s.DayOfWeek, StartTime: s.StartTime, EndTime: s.EndTime, Active: s.Active})
	}
	detail, err := h.app.Amenities.ReplaceSlots(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *handler) availability(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.app.Amenities.Availability(r.Context(), actor, id, r.URL.Query().Get("date"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) reserve(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload struct {
		TimeSlotID int64  `json:"timeSlotId" validate:"required"`
		Date       string `json:"reservationDate" validate:"required"`
	}
	if !decode(w, r, &payload) {
		return
	}
	created, err := h.app.Amenities.Reserve(r.Context(), actor, id, payload.TimeSlotID, payload.Date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) cancelReservation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cancelled, err := h.app.Amenities.Cancel(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

func (h *handler) myReservations(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	list, err := h.app.Amenities.MyReservations(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) amenityReservations(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	list, err := h.app.Amenities.ReservationsByAmenity(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
