package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-hub/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository defines storage interactions for login sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, sessionID string, userID int) (models.Session, error)
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// SessionRepo is a sqlx-backed repository.
type SessionRepo struct {
	db *sqlx.DB
}

// NewSessionRepo constructs SessionRepo.
func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// CreateSession persists a new session row for an issued token.
func (r *SessionRepo) CreateSession(ctx context.Context, sessionID string, userID int) (models.Session, error) {
	var session models.Session
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO sessions (id, user_id) VALUES ($1, $2)
         RETURNING id, user_id, created_at`,
		sessionID, userID).StructScan(&session)
	return session, err
}

// GetSession retrieves a session by id.
func (r *SessionRepo) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	var session models.Session
	err := r.db.GetContext(ctx, &session,
		`SELECT id, user_id, created_at FROM sessions WHERE id=$1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrSessionNotFound
	}
	return session, err
}

// DeleteSession revokes a session.
func (r *SessionRepo) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=$1`, sessionID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrSessionNotFound
	}
	return nil
}
