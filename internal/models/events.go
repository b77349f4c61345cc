package models

import "time"

// Inbound event types accepted on the websocket.
const (
	EventJoin    = "join"
	EventAuth    = "auth"
	EventMessage = "message"
	EventEdit    = "edit"
	EventDelete  = "delete"
	EventTyping  = "typing"
)

// Outbound event types sent to clients.
const (
	EventHistory        = "history"
	EventUserJoined     = "userJoined"
	EventUserLeft       = "userLeft"
	EventMessageEdited  = "messageEdited"
	EventMessageDeleted = "messageDeleted"
	EventError          = "error"
)

// ClientEvent is the single inbound frame shape. Type selects the variant;
// the hub rejects frames whose required fields are missing.
type ClientEvent struct {
	Type      string `json:"type"`
	Username  string `json:"username,omitempty"`
	Token     string `json:"token,omitempty"`
	Text      string `json:"text,omitempty"`
	MessageID int    `json:"messageId,omitempty"`
	IsTyping  bool   `json:"isTyping,omitempty"`
}

// HistoryEvent replays the bounded message window to a newly authenticated
// connection, oldest first.
type HistoryEvent struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages"`
}

// MessageEvent broadcasts a stored chat message.
type MessageEvent struct {
	Type      string    `json:"type"`
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Username  string    `json:"username"`
	UserID    int       `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
	Edited    bool      `json:"edited"`
}

// NewMessageEvent builds the broadcast payload for a stored message.
func NewMessageEvent(msg Message) MessageEvent {
	return MessageEvent{
		Type:      EventMessage,
		ID:        msg.ID,
		Text:      msg.Text,
		Username:  msg.Username,
		UserID:    msg.UserID,
		Timestamp: msg.CreatedAt,
		Edited:    msg.Edited,
	}
}

// PresenceEvent announces a join or leave together with the resulting
// online count.
type PresenceEvent struct {
	Type        string    `json:"type"`
	Username    string    `json:"username"`
	OnlineCount int       `json:"onlineCount"`
	Timestamp   time.Time `json:"timestamp"`
}

// TypingEvent carries the full current typing set, not a delta.
type TypingEvent struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

// MessageEditedEvent announces an in-place edit of an existing message.
type MessageEditedEvent struct {
	Type      string    `json:"type"`
	MessageID int       `json:"messageId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageDeletedEvent tells clients to drop a message from their view.
type MessageDeletedEvent struct {
	Type      string `json:"type"`
	MessageID int    `json:"messageId"`
}

// ErrorEvent is unicast to the connection whose event was rejected.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
