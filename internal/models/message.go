package models

import "time"

// Message is a persisted chat message. The id is assigned by the database
// and is the canonical ordering key; client timestamps are display-only.
type Message struct {
	ID        int       `db:"id" json:"id"`
	UserID    int       `db:"user_id" json:"userId"`
	Username  string    `db:"username" json:"username"`
	Text      string    `db:"content" json:"text"`
	Edited    bool      `db:"edited" json:"edited"`
	Deleted   bool      `db:"deleted" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"timestamp"`
}
