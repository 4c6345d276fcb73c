package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/domu-platform/domu/internal/app/domain/chat"
)

func (h *handler) chatRoutes(r *mux.Router) {
	r.HandleFunc("/chat/rooms", h.myRooms).Methods(http.MethodGet)
	r.HandleFunc("/chat/rooms/start", h.startConversation).Methods(http.MethodPost)
	r.HandleFunc("/chat/rooms/{id:[0-9]+}/messages", h.roomMessages).Methods(http.MethodGet)
	r.HandleFunc("/chat/rooms/{id:[0-9]+}/messages", h.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/chat/rooms/{id:[0-9]+}/hide", h.hideRoom).Methods(http.MethodPost)
	r.HandleFunc("/chat/requests", h.pendingRequests).Methods(http.MethodGet)
	r.HandleFunc("/chat/requests", h.createChatRequest).Methods(http.MethodPost)
	r.HandleFunc("/chat/requests/{id:[0-9]+}/respond", h.respondChatRequest).Methods(http.MethodPost)
	r.HandleFunc("/chat/neighbors", h.neighbors).Methods(http.MethodGet)
	r.HandleFunc("/chat/online", h.onlineUsers).Methods(http.MethodGet)
}

func (h *handler) myRooms(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	rooms, err := h.app.Chat.MyRooms(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *handler) startConversation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		SellerID int64 `json:"sellerId" validate:"required"`
	}
	if !decode(w, r, &payload) {
		return
	}
	room, err := h.app.Chat.StartConversation(r.Context(), actor, payload.SellerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *handler) roomMessages(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	limit, err := queryInt64(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	messages, err := h.app.Chat.Messages(r.Context(), actor, id, int(limit))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload struct {
		Content string `json:"content"`
		Type    string `json:"type"`
	}
	if !decode(w, r, &payload) {
		return
	}
	if payload.Type == "" {
		payload.Type = chat.MessageText
	}
	msg, err := h.app.Chat.SendMessage(r.Context(), actor, id, payload.Content, payload.Type)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *handler) hideRoom(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.app.Chat.HideRoom(r.Context(), actor, id); err != nil {
		h.fail(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) pendingRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	list, err := h.app.Chat.PendingRequests(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) createChatRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload struct {
		ReceiverID int64  `json:"receiverId" validate:"required"`
		Message    string `json:"initialMessage"`
	}
	if !decode(w, r, &payload) {
		return
	}
	req, err := h.app.Chat.CreateRequest(r.Context(), actor, payload.ReceiverID, payload.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *handler) respondChatRequest(w http.ResponseWriter, r *http.Request) {
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
	req, err := h.app.Chat.RespondRequest(r.Context(), actor, id, payload.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *handler) neighbors(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	list, err := h.app.Chat.Neighbors(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) onlineUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.currentUser(w, r); !ok {
		return
	}
	ids, err := h.app.Chat.Online(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// chatSocket upgrades an authenticated request and hands the connection to
// the hub until the client disconnects.
func (h *handler) chatSocket(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Warn("websocket upgrade failed")
		return
	}
	h.log.WithContext(r.Context()).WithField("user_id", u.ID).Debug("chat socket connected")
	h.app.ChatHub.Serve(r.Context(), u.ID, conn, h.app.Chat.HandleInbound)
}
