package observability

// EventEnvelope wraps a hub lifecycle event for the message bus.
type EventEnvelope struct {
	EventType string `json:"event_type"`
	EventName string `json:"event_name"`
	Payload   any    `json:"payload"`
}

// ConnPayload describes one websocket connection lifecycle event.
type ConnPayload struct {
	ConnID     string `json:"conn_id"`
	UserID     int    `json:"user_id"`
	Username   string `json:"username"`
	IP         string `json:"ip"`
	Event      string `json:"event"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason"`
}
