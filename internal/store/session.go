package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dukerupert/mila/internal/model"
	"github.com/google/uuid"
)

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	err := scanner.Scan(&s.ID, &s.UserID, &s.RefreshToken, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const sessionCols = `id, user_id, refresh_token, expires_at, created_at`

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Create starts a session for the user with a crypto-random refresh token
// valid for ttl.
func (s *SessionStore) Create(ctx context.Context, userID string, ttl time.Duration) (*model.Session, error) {
	token, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, refresh_token, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, token, now.Add(ttl), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &model.Session{
		ID:           id,
		UserID:       userID,
		RefreshToken: token,
		ExpiresAt:    now.Add(ttl),
		CreatedAt:    now,
	}, nil
}

// GetByID returns the session, or nil if it is unknown or expired.
func (s *SessionStore) GetByID(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE id = ? AND expires_at > ?`,
		id, time.Now().UTC(),
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// Rotate swaps a live refresh token for a new one and extends the session.
// It returns nil if the token is unknown or expired, so a refresh token can
// only be used once.
func (s *SessionStore) Rotate(ctx context.Context, refreshToken string, ttl time.Duration) (*model.Session, error) {
	token, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET refresh_token = ?, expires_at = ? WHERE refresh_token = ? AND expires_at > ?`,
		token, now.Add(ttl), refreshToken, now,
	)
	if err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE refresh_token = ?`, token)
	return scanSession(row)
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete sessions by user: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
