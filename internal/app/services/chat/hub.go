package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"

	domain "github.com/domu-platform/domu/internal/app/domain/chat"
	"github.com/domu-platform/domu/internal/app/metrics"
	"github.com/domu-platform/domu/internal/app/system"
	"github.com/domu-platform/domu/pkg/logger"
)

// Event types pushed to websocket clients.
const (
	EventNewMessage = "NEW_MESSAGE"
	EventTyping     = "TYPING"
)

const (
	redisChannel = "domu:chat:events"
	presenceKey  = "domu:chat:online"

	sendBuffer   = 32
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 50 * time.Second
	maxFrameSize = 8 << 10
)

// Event is a server push.
type Event struct {
	Type    string          `json:"type"`
	RoomID  int64           `json:"roomId"`
	UserID  int64           `json:"userId,omitempty"`
	Message *domain.Message `json:"message,omitempty"`
}

// Inbound is a client frame.
type Inbound struct {
	Type   string `json:"type"`
	RoomID int64  `json:"roomId"`
}

// Notifier delivers events to connected users.
type Notifier interface {
	Publish(ctx context.Context, recipients []int64, ev Event) error
	Online(ctx context.Context) ([]int64, error)
}

type envelope struct {
	Recipients []int64         `json:"recipients"`
	Event      json.RawMessage `json:"event"`
}

type client struct {
	userID int64
	conn   *websocket.Conn
	send   chan []byte
}

var (
	_ system.Service = (*Hub)(nil)
	_ Notifier       = (*Hub)(nil)
)

// Hub tracks websocket sessions per user. With a Redis client, events fan out
// through a pub/sub channel so every API instance delivers to its own
// sessions, and presence lives in a Redis set.
type Hub struct {
	redis *redis.Client
	log   *logger.Logger

	mu      sync.RWMutex
	clients map[int64]map[*client]struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewHub creates a hub. rdb may be nil for a single instance deployment.
func NewHub(rdb *redis.Client, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("chat-hub")
	}
	return &Hub{
		redis:   rdb,
		log:     log,
		clients: make(map[int64]map[*client]struct{}),
	}
}

func (h *Hub) Name() string { return "chat-hub" }

func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.running = true
	h.mu.Unlock()

	if h.redis != nil {
		sub := h.redis.Subscribe(runCtx, redisChannel)
		if _, err := sub.Receive(runCtx); err != nil {
			cancel()
			h.mu.Lock()
			h.running = false
			h.cancel = nil
			h.mu.Unlock()
			return fmt.Errorf("subscribe %s: %w", redisChannel, err)
		}
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			defer sub.Close()
			messages := sub.Channel()
			for {
				select {
				case <-runCtx.Done():
					return
				case msg, ok := <-messages:
					if !ok {
						return
					}
					h.handleRemote(msg.Payload)
				}
			}
		}()
	}

	h.log.WithField("redis", h.redis != nil).Info("chat hub started")
	return nil
}

func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	cancel := h.cancel
	h.running = false
	h.cancel = nil
	for _, set := range h.clients {
		for c := range set {
			_ = c.conn.Close()
		}
	}
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	h.log.Info("chat hub stopped")
	return nil
}

// Serve runs a websocket session for userID until the connection closes.
// Every inbound frame is decoded and passed to handle.
func (h *Hub) Serve(ctx context.Context, userID int64, conn *websocket.Conn, handle func(context.Context, int64, Inbound)) {
	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(ctx, c)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.writePump(c)
	}()

	defer h.unregister(ctx, c)

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).WithField("user_id", userID).Debug("chat session closed unexpectedly")
			}
			return
		}
		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			h.log.WithField("user_id", userID).Debug("ignoring malformed chat frame")
			continue
		}
		if handle != nil {
			handle(ctx, userID, in)
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) register(ctx context.Context, c *client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	first := len(set) == 1
	h.mu.Unlock()

	metrics.ChatConnected(1)
	if first && h.redis != nil {
		if err := h.redis.SAdd(ctx, presenceKey, c.userID).Err(); err != nil {
			h.log.WithError(err).Warn("chat presence update failed")
		}
	}
	h.log.WithField("user_id", c.userID).Info("chat session connected")
}

func (h *Hub) unregister(ctx context.Context, c *client) {
	h.mu.Lock()
	set := h.clients[c.userID]
	if _, ok := set[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	last := len(set) == 0
	if last {
		delete(h.clients, c.userID)
	}
	close(c.send)
	h.mu.Unlock()

	metrics.ChatConnected(-1)
	if last && h.redis != nil {
		// The request context is usually gone by now.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := h.redis.SRem(rctx, presenceKey, c.userID).Err(); err != nil {
			h.log.WithError(err).Warn("chat presence update failed")
		}
	}
	h.log.WithField("user_id", c.userID).Info("chat session disconnected")
}

// Publish delivers ev to every session of the recipients.
func (h *Hub) Publish(ctx context.Context, recipients []int64, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode chat event: %w", err)
	}
	if h.redis == nil {
		h.deliver(recipients, payload)
		return nil
	}
	data, err := json.Marshal(envelope{Recipients: recipients, Event: payload})
	if err != nil {
		return fmt.Errorf("encode chat envelope: %w", err)
	}
	if err := h.redis.Publish(ctx, redisChannel, data).Err(); err != nil {
		return fmt.Errorf("publish chat event: %w", err)
	}
	return nil
}

func (h *Hub) handleRemote(raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		h.log.WithError(err).Warn("dropping malformed chat envelope")
		return
	}
	h.deliver(env.Recipients, env.Event)
}

func (h *Hub) deliver(recipients []int64, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range recipients {
		for c := range h.clients[id] {
			select {
			case c.send <- payload:
			default:
				h.log.WithField("user_id", id).Warn("chat session too slow, dropping event")
			}
		}
	}
}

// Online returns the ids of users with at least one open session.
func (h *Hub) Online(ctx context.Context) ([]int64, error) {
	if h.redis != nil {
		members, err := h.redis.SMembers(ctx, presenceKey).Result()
		if err != nil {
			return nil, fmt.Errorf("read chat presence: %w", err)
		}
		ids := make([]int64, 0, len(members))
		for _, m := range members {
			if id, err := strconv.ParseInt(m, 10, 64); err == nil {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return ids, nil
	}

	h.mu.RLock()
	ids := make([]int64, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
