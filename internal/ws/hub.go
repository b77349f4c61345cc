package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"chat-hub/internal/auth"
	"chat-hub/internal/models"
	"chat-hub/internal/observability"
	"chat-hub/internal/repositories"
)

// session is the per-connection state tracked by the hub. A connection is
// unauthenticated until a join/auth event binds an identity; it leaves the
// registry exactly once.
type session struct {
	authed      bool
	userID      int
	username    string
	guest       bool
	joinedAt    time.Time
	connectedAt time.Time
	alive       bool
}

// Options tune hub behavior.
type Options struct {
	HistoryLimit int
	PingInterval time.Duration
	TypingTTL    time.Duration
	AllowGuests  bool
}

func (o *Options) fillDefaults() {
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 50
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.TypingTTL <= 0 {
		o.TypingTTL = 8 * time.Second
	}
}

// Hub owns the presence table and typing set and serializes every
// state-mutating event under one mutex, so presence updates, message
// appends, and the broadcasts they trigger are observed atomically by all
// connections. Storage calls for chat events deliberately run inside the
// critical section: the message id sequence is part of the serialized state.
type Hub struct {
	mu       sync.Mutex
	sessions map[*Client]*session
	typing   map[string]time.Time

	messages  repositories.MessageRepository
	verifier  auth.Verifier
	publisher observability.Publisher
	logger    *zap.Logger
	opts      Options
}

// NewHub creates an empty hub.
func NewHub(messages repositories.MessageRepository, verifier auth.Verifier, publisher observability.Publisher, logger *zap.Logger, opts Options) *Hub {
	opts.fillDefaults()
	return &Hub{
		sessions:  make(map[*Client]*session),
		typing:    make(map[string]time.Time),
		messages:  messages,
		verifier:  verifier,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
	}
}

// Register adds a freshly upgraded connection in unauthenticated state.
// Nothing is broadcast until the connection authenticates.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.sessions[c] = &session{connectedAt: time.Now(), alive: true}
	h.mu.Unlock()

	observability.IncWSActive()
	h.publishLifecycle(c, 0, "", "ws_connect", 0, "")
}

// Disconnect runs the close path for a connection. It is idempotent: the
// first call removes the connection and, if it was authenticated, broadcasts
// exactly one userLeft.
func (h *Hub) Disconnect(c *Client, reason string) {
	h.mu.Lock()
	h.evictLocked(c, reason)
	h.mu.Unlock()
	c.close()
}

// HandleEvent decodes one inbound frame and dispatches it. Unknown event
// types and malformed payloads get a unicast error reply.
func (h *Hub) HandleEvent(ctx context.Context, c *Client, raw []byte) {
	var evt models.ClientEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		h.sendError(c, "malformed event payload")
		return
	}

	observability.IncWSEvent(evt.Type)

	switch evt.Type {
	case models.EventJoin, models.EventAuth:
		h.handleAuth(ctx, c, evt)
	case models.EventMessage:
		h.handleChat(ctx, c, evt)
	case models.EventEdit:
		h.handleEdit(ctx, c, evt)
	case models.EventDelete:
		h.handleDelete(ctx, c, evt)
	case models.EventTyping:
		h.handleTyping(c, evt)
	default:
		h.sendError(c, "unknown event type")
	}
}

// OnlineCount reports the number of authenticated connections.
func (h *Hub) OnlineCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.onlineCountLocked()
}

// ConnectionCount reports all live connections, authenticated or not.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) handleAuth(ctx context.Context, c *Client, evt models.ClientEvent) {
	var (
		identity auth.Identity
		guest    bool
	)

	switch {
	case evt.Token != "":
		verified, err := h.verifier.Verify(ctx, evt.Token)
		if err != nil {
			h.sendError(c, "authentication failed")
			h.Disconnect(c, "auth rejected")
			return
		}
		identity = verified
	case evt.Username != "":
		if !h.opts.AllowGuests {
			h.sendError(c, "authentication required")
			h.Disconnect(c, "guest join disabled")
			return
		}
		username := strings.TrimSpace(evt.Username)
		if len(username) < 2 {
			h.sendError(c, "username must be at least 2 characters")
			return
		}
		identity = auth.Identity{UserID: 0, Username: username}
		guest = true
	default:
		h.sendError(c, "join requires a token or username")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.sessions[c]
	if !ok {
		return
	}
	if state.authed {
		h.enqueueLocked(c, mustMarshal(models.ErrorEvent{Type: models.EventError, Message: "already authenticated"}))
		return
	}

	history, err := h.messages.RecentHistory(ctx, h.opts.HistoryLimit)
	if err != nil {
		h.logger.Error("history load failed", zap.Error(err))
		h.enqueueLocked(c, mustMarshal(models.ErrorEvent{Type: models.EventError, Message: "history unavailable"}))
		return
	}
	if history == nil {
		history = []models.Message{}
	}

	state.authed = true
	state.userID = identity.UserID
	state.username = identity.Username
	state.guest = guest
	state.joinedAt = time.Now()
	observability.IncWSAuthenticated()

	h.enqueueLocked(c, mustMarshal(models.HistoryEvent{Type: models.EventHistory, Messages: history}))
	h.broadcastLocked(mustMarshal(models.PresenceEvent{
		Type:        models.EventUserJoined,
		Username:    identity.Username,
		OnlineCount: h.onlineCountLocked(),
		Timestamp:   time.Now(),
	}))

	h.logger.Info("connection authenticated",
		zap.String("conn_id", c.connID),
		zap.String("username", identity.Username),
		zap.Bool("guest", guest),
		zap.Int("online", h.onlineCountLocked()))
}

func (h *Hub) handleChat(ctx context.Context, c *Client, evt models.ClientEvent) {
	text := strings.TrimSpace(evt.Text)

	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.authedSessionLocked(c)
	if state == nil {
		return
	}
	if text == "" {
		h.enqueueLocked(c, mustMarshal(models.ErrorEvent{Type: models.EventError, Message: "message text must not be empty"}))
		return
	}

	msg, err := h.messages.Append(ctx, state.userID, state.username, text)
	if err != nil {
		h.logger.Error("message append failed", zap.Error(err))
		h.enqueueLocked(c, mustMarshal(models.ErrorEvent{Type: models.EventError, Message: "message could not be stored"}))
		return
	}

	h.broadcastLocked(mustMarshal(models.NewMessageEvent(msg)))
}

func (h *Hub) handleEdit(ctx context.Context, c *Client, evt models.ClientEvent) {
	text := strings.TrimSpace(evt.Text)

	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.authedSessionLocked(c)
	if state == nil {
		return
	}
	if state.guest {
		h.enqueueLocked(c, mustMarshal(models.ErrorEvent{Type: models.EventError, Message: "guests cannot edit messages"}))
		return
	}
	if evt.MessageID == 0 || text == "" {
		h.enqueueLocked(c, mustMarshal(models.ErrorEvent{Type: models.EventError, Message: "edit requires messageId and text"}))
		return
	}

	msg, err := h.messages.Edit(ctx, evt.MessageID, state.userID, text)
	if err != nil {
		h.enqueueLocked(c, mustMarshal(models.ErrorEvent{Type: models.EventError, Message: editErrorMessage(err)}))
		return
	}

	h.broadcastLocked(mustMarshal(models.MessageEditedEvent{
		Type:      models.EventMessageEdited,
		MessageID: msg.ID,
		Text:      msg.Text,
		Timestamp: time.Now(),
	}))
}

func (h *Hub) handleDelete(ctx context.Context, c *Client, evt models.ClientEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.authedSessionLocked(c)
	if state == nil {
		return
	}
	if state.guest {
		h.enqueueLocked(c, mustMarshal(models.ErrorEvent{Type: models.EventError, Message: "guests cannot delete messages"}))
		return
	}
	if evt.MessageID == 0 {
		h.enqueueLocked(c, mustMarshal(models.ErrorEvent{Type: models.EventError, Message: "delete requires messageId"}))
		return
	}

	if err := h.messages.SoftDelete(ctx, evt.MessageID, state.userID); err != nil {
		h.enqueueLocked(c, mustMarshal(models.ErrorEvent{Type: models.EventError, Message: deleteErrorMessage(err)}))
		return
	}

	h.broadcastLocked(mustMarshal(models.MessageDeletedEvent{
		Type:      models.EventMessageDeleted,
		MessageID: evt.MessageID,
	}))
}

func (h *Hub) handleTyping(c *Client, evt models.ClientEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.authedSessionLocked(c)
	if state == nil {
		return
	}

	if evt.IsTyping {
		h.typing[state.username] = time.Now().Add(h.opts.TypingTTL)
	} else {
		delete(h.typing, state.username)
	}

	h.broadcastTypingLocked()
}

// authedSessionLocked returns the session if the connection is authenticated,
// replying with an error event otherwise.
func (h *Hub) authedSessionLocked(c *Client) *session {
	state, ok := h.sessions[c]
	if !ok {
		return nil
	}
	if !state.authed {
		h.enqueueLocked(c, mustMarshal(models.ErrorEvent{Type: models.EventError, Message: "not authenticated"}))
		return nil
	}
	return state
}

// evictLocked removes a connection from the registry. Authenticated
// connections produce a userLeft broadcast and drop out of the typing set.
func (h *Hub) evictLocked(c *Client, reason string) {
	state, ok := h.sessions[c]
	if !ok {
		return
	}
	delete(h.sessions, c)
	close(c.send)
	observability.DecWSActive()

	duration := time.Since(state.connectedAt).Milliseconds()
	h.publishLifecycle(c, state.userID, state.username, "ws_disconnect", duration, reason)

	if !state.authed {
		return
	}
	observability.DecWSAuthenticated()

	_, wasTyping := h.typing[state.username]
	delete(h.typing, state.username)

	h.broadcastLocked(mustMarshal(models.PresenceEvent{
		Type:        models.EventUserLeft,
		Username:    state.username,
		OnlineCount: h.onlineCountLocked(),
		Timestamp:   time.Now(),
	}))
	if wasTyping {
		h.broadcastTypingLocked()
	}

	h.logger.Info("connection left",
		zap.String("conn_id", c.connID),
		zap.String("username", state.username),
		zap.String("reason", reason),
		zap.Int("online", h.onlineCountLocked()))
}

// broadcastLocked serializes the event once and enqueues it to every
// authenticated connection. A connection whose send buffer is full is
// evicted through the regular close path; the failure never aborts delivery
// to the others.
func (h *Hub) broadcastLocked(payload []byte) {
	observability.IncBroadcast()

	var failed []*Client
	for client, state := range h.sessions {
		if !state.authed {
			continue
		}
		select {
		case client.send <- payload:
		default:
			failed = append(failed, client)
		}
	}
	for _, client := range failed {
		h.evictLocked(client, "send buffer full")
		client.close()
	}
}

func (h *Hub) broadcastTypingLocked() {
	users := make([]string, 0, len(h.typing))
	for username := range h.typing {
		users = append(users, username)
	}
	sort.Strings(users)
	h.broadcastLocked(mustMarshal(models.TypingEvent{Type: models.EventTyping, Users: users}))
}

// enqueueLocked unicasts a payload to one connection.
func (h *Hub) enqueueLocked(c *Client, payload []byte) {
	if _, ok := h.sessions[c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
		h.evictLocked(c, "send buffer full")
		c.close()
	}
}

func (h *Hub) sendError(c *Client, message string) {
	h.mu.Lock()
	h.enqueueLocked(c, mustMarshal(models.ErrorEvent{Type: models.EventError, Message: message}))
	h.mu.Unlock()
}

func (h *Hub) onlineCountLocked() int {
	count := 0
	for _, state := range h.sessions {
		if state.authed {
			count++
		}
	}
	return count
}

func (h *Hub) markAlive(c *Client) {
	h.mu.Lock()
	if state, ok := h.sessions[c]; ok {
		state.alive = true
	}
	h.mu.Unlock()
}

func (h *Hub) noteTransportError(c *Client, err error) {
	observability.IncWSEvent("ws_error")
	h.publishLifecycle(c, 0, "", "ws_error", 0, err.Error())
}

// publishLifecycle emits a connection lifecycle event to the message bus.
// Publishing is I/O, so it runs outside the hub critical path.
func (h *Hub) publishLifecycle(c *Client, userID int, username, event string, durationMS int64, reason string) {
	if h.publisher == nil {
		return
	}
	envelope := observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: observability.ConnPayload{
			ConnID:     c.connID,
			UserID:     userID,
			Username:   username,
			IP:         c.ip,
			Event:      event,
			DurationMS: durationMS,
			Reason:     reason,
		},
	}
	go func() {
		_ = h.publisher.Publish(context.Background(), "ws_events.hub", envelope)
	}()
}

func editErrorMessage(err error) string {
	switch {
	case errors.Is(err, repositories.ErrNotAuthor):
		return "cannot edit another user's message"
	case errors.Is(err, repositories.ErrMessageNotFound):
		return "message not found"
	default:
		return "message could not be edited"
	}
}

func deleteErrorMessage(err error) string {
	switch {
	case errors.Is(err, repositories.ErrNotAuthor):
		return "cannot delete another user's message"
	case errors.Is(err, repositories.ErrMessageNotFound):
		return "message not found"
	default:
		return "message could not be deleted"
	}
}

func mustMarshal(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return payload
}
