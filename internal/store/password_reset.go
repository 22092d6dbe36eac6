package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dukerupert/mila/internal/model"
	"github.com/google/uuid"
)

const resetCodeTTL = 15 * time.Minute

type PasswordResetStore struct {
	db *sql.DB
}

func NewPasswordResetStore(db *sql.DB) *PasswordResetStore {
	return &PasswordResetStore{db: db}
}

func scanPasswordReset(scanner interface{ Scan(...any) error }) (*model.PasswordReset, error) {
	var pr model.PasswordReset
	var usedAt sql.NullTime
	err := scanner.Scan(&pr.ID, &pr.Email, &pr.Code, &pr.ExpiresAt, &usedAt, &pr.Attempts, &pr.CreatedAt)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		pr.UsedAt = &usedAt.Time
	}
	return &pr, nil
}

const passwordResetCols = `id, email, code, expires_at, used_at, attempts, created_at`

// generateCode returns a 6-digit numeric code (100000–999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Create issues a new reset code for email with a 15-minute expiry. Pending
// codes for the same email are invalidated first.
func (s *PasswordResetStore) Create(ctx context.Context, email string) (*model.PasswordReset, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`UPDATE password_resets SET used_at = ? WHERE email = ? AND used_at IS NULL AND expires_at > ?`,
		now, email, now,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous codes: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO password_resets (id, email, code, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, email, code, now.Add(resetCodeTTL), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert password reset: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+passwordResetCols+` FROM password_resets WHERE id = ?`, id)
	return scanPasswordReset(row)
}

// GetLatestByEmail returns the newest unused, unexpired code for email, or nil.
func (s *PasswordResetStore) GetLatestByEmail(ctx context.Context, email string) (*model.PasswordReset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+passwordResetCols+` FROM password_resets
		 WHERE email = ? AND used_at IS NULL AND expires_at > ?
		 ORDER BY created_at DESC LIMIT 1`,
		strings.ToLower(strings.TrimSpace(email)), time.Now().UTC(),
	)
	pr, err := scanPasswordReset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest password reset: %w", err)
	}
	return pr, nil
}

// IncrementAttempts records a wrong guess and returns the new attempt count.
func (s *PasswordResetStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx,
		`UPDATE password_resets SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`, id,
	).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return attempts, nil
}

func (s *PasswordResetStore) MarkUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark used: %w", err)
	}
	return nil
}

func (s *PasswordResetStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM password_resets WHERE expires_at <= ? OR used_at IS NOT NULL`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired password resets: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
