package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-hub/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotAuthor       = errors.New("not the message author")
)

// MessageRepository defines storage interactions for chat messages.
type MessageRepository interface {
	Append(ctx context.Context, userID int, username, text string) (models.Message, error)
	Edit(ctx context.Context, messageID, userID int, newText string) (models.Message, error)
	SoftDelete(ctx context.Context, messageID, userID int) error
	RecentHistory(ctx context.Context, limit int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository. Id assignment rides on the
// messages table sequence, so concurrent appends always receive strictly
// increasing, unique ids.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a new message and returns it with its assigned id.
func (r *MessageRepo) Append(ctx context.Context, userID int, username, text string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (user_id, username, content) VALUES ($1, $2, $3)
         RETURNING id, user_id, username, content, edited, deleted, created_at`,
		userID, username, text).StructScan(&msg)
	return msg, err
}

// Edit replaces the text of the author's own message and marks it edited.
// Deleted messages are treated as gone.
func (r *MessageRepo) Edit(ctx context.Context, messageID, userID int, newText string) (models.Message, error) {
	existing, err := r.getLive(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if existing.UserID != userID {
		return models.Message{}, ErrNotAuthor
	}

	var msg models.Message
	err = r.db.QueryRowxContext(ctx,
		`UPDATE messages SET content=$1, edited=TRUE WHERE id=$2
         RETURNING id, user_id, username, content, edited, deleted, created_at`,
		newText, messageID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDelete marks the author's own message deleted. The row stays in
// storage but is excluded from history reads.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID, userID int) error {
	existing, err := r.getLive(ctx, messageID)
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return ErrNotAuthor
	}

	_, err = r.db.ExecContext(ctx, `UPDATE messages SET deleted=TRUE WHERE id=$1`, messageID)
	return err
}

// RecentHistory returns up to limit most recent non-deleted messages in
// ascending id order. The query retrieves newest-first, so the slice is
// reversed before returning to preserve original send order on replay.
func (r *MessageRepo) RecentHistory(ctx context.Context, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT id, user_id, username, content, edited, deleted, created_at
         FROM messages WHERE deleted = FALSE
         ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *MessageRepo) getLive(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT id, user_id, username, content, edited, deleted, created_at
         FROM messages WHERE id=$1 AND deleted = FALSE`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
