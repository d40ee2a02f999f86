package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/citypulse/api-edge/internal/models"
)

func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `
        SELECT id, email, region, membership_tier, is_reviewer, created_at, updated_at
        FROM users
        WHERE id = $1
    `

	var user models.User
	err := db.Pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Region,
		&user.MembershipTier,
		&user.IsReviewer,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// TierFor satisfies the rate limiter's tier source. It always hits the
// store so quota reflects the latest membership state.
func (db *DB) TierFor(ctx context.Context, userID string) (models.MembershipTier, error) {
	var tier models.MembershipTier
	err := db.Pool.QueryRow(ctx,
		`SELECT membership_tier FROM users WHERE id = $1`, userID,
	).Scan(&tier)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.TierRegular, nil
	}
	if err != nil {
		return models.TierRegular, err
	}
	return tier, nil
}
