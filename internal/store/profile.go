package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/mila/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.UserProfile, error) {
	var p model.UserProfile
	var tier string
	var trialEndsAt sql.NullTime
	err := scanner.Scan(&p.ID, &p.Email, &p.FullName, &tier, &trialEndsAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.SubscriptionTier = model.SubscriptionTier(tier)
	if trialEndsAt.Valid {
		p.TrialEndsAt = &trialEndsAt.Time
	}
	return &p, nil
}

const profileCols = `id, email, full_name, subscription_tier, trial_ends_at, created_at, updated_at`

func (s *ProfileStore) GetByID(ctx context.Context, id string) (*model.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) UpdateFullName(ctx context.Context, id, fullName string) (*model.UserProfile, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET full_name = ?, updated_at = ? WHERE id = ?`,
		fullName, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.GetByID(ctx, id)
}

// SetSubscription changes the tier and trial end of a profile.
func (s *ProfileStore) SetSubscription(ctx context.Context, id string, tier model.SubscriptionTier, trialEndsAt *time.Time) error {
	var ends sql.NullTime
	if trialEndsAt != nil {
		ends = sql.NullTime{Time: trialEndsAt.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET subscription_tier = ?, trial_ends_at = ?, updated_at = ? WHERE id = ?`,
		string(tier), ends, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set subscription: %w", err)
	}
	return nil
}

// StripeCustomerID returns the billing customer of a profile, or "" when the
// user never started a checkout.
func (s *ProfileStore) StripeCustomerID(ctx context.Context, id string) (string, error) {
	var customerID string
	err := s.db.QueryRowContext(ctx, `SELECT stripe_customer_id FROM profiles WHERE id = ?`, id).Scan(&customerID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get stripe customer id: %w", err)
	}
	return customerID, nil
}

func (s *ProfileStore) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET stripe_customer_id = ?, updated_at = ? WHERE id = ?`,
		customerID, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set stripe customer id: %w", err)
	}
	return nil
}

func (s *ProfileStore) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.UserProfile, error) {
	if customerID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE stripe_customer_id = ?`, customerID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by stripe customer: %w", err)
	}
	return p, nil
}
