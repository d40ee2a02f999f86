package db

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/citypulse/api-edge/internal/models"
	"github.com/citypulse/api-edge/internal/query"
)

const applicationColumns = `
    id, user_id, handle, bio, sample_work, status,
    applied_at, reviewed_at, reviewed_by, review_notes
`

func scanApplication(row pgx.Row) (*models.MembershipApplication, error) {
	var a models.MembershipApplication
	err := row.Scan(
		&a.ID, &a.UserID, &a.Handle, &a.Bio, &a.SampleWork, &a.Status,
		&a.AppliedAt, &a.ReviewedAt, &a.ReviewedBy, &a.ReviewNotes,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetApplicationForUser returns the user's most recent application, or
// (nil, nil) when there is none.
func (db *DB) GetApplicationForUser(ctx context.Context, userID string) (*models.MembershipApplication, error) {
	row := db.Pool.QueryRow(ctx, `
        SELECT `+applicationColumns+`
        FROM membership_applications
        WHERE user_id = $1
        ORDER BY applied_at DESC
        LIMIT 1
    `, userID)

	app, err := scanApplication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return app, nil
}

// SubmitApplication creates a pending application and moves the user's tier
// to pending in one transaction. The user row is locked first so concurrent
// submissions from the same user serialize on the tier check.
func (db *DB) SubmitApplication(ctx context.Context, userID string, handle *string, bio string, sampleWork *string) (*models.MembershipApplication, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var tier models.MembershipTier
	err = tx.QueryRow(ctx,
		`SELECT membership_tier FROM users WHERE id = $1 FOR UPDATE`, userID,
	).Scan(&tier)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	switch tier {
	case models.TierApproved:
		return nil, ErrAlreadyMember
	case models.TierPending:
		return nil, ErrDuplicateApplication
	}

	row := tx.QueryRow(ctx, `
        INSERT INTO membership_applications (id, user_id, handle, bio, sample_work)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING `+applicationColumns+`
    `, uuid.NewString(), userID, handle, bio, sampleWork)

	app, err := scanApplication(row)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET membership_tier = $2, updated_at = NOW() WHERE id = $1`,
		userID, models.TierPending,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return app, nil
}

// ReviewApplication settles a pending application and the user's tier as a
// single transaction, so no reader ever sees an approved application with a
// regular-tier user or the reverse. The status predicate makes the
// transition one-shot: a second review finds zero pending rows.
func (db *DB) ReviewApplication(ctx context.Context, id string, approve bool, reviewerID string, notes *string) (*models.MembershipApplication, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	status := models.StatusRejected
	tier := models.TierRegular
	if approve {
		status = models.StatusApproved
		tier = models.TierApproved
	}

	row := tx.QueryRow(ctx, `
        UPDATE membership_applications
        SET status = $2, reviewed_at = NOW(), reviewed_by = $3, review_notes = $4
        WHERE id = $1 AND status = 'pending'
        RETURNING `+applicationColumns+`
    `, id, status, reviewerID, notes)

	app, err := scanApplication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM membership_applications WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrAlreadyReviewed
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET membership_tier = $2, updated_at = NOW() WHERE id = $1`,
		app.UserID, tier,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return app, nil
}

// ListApplications pages through applications for reviewers, optionally
// filtered by status, newest first. Data and count go out as one batch.
func (db *DB) ListApplications(ctx context.Context, status string, page query.Page) ([]models.MembershipApplication, int, error) {
	where := ""
	args := []any{}
	if status != "" {
		where = " WHERE status = $1"
		args = append(args, status)
	}

	dataSQL := `SELECT ` + applicationColumns + ` FROM membership_applications` + where +
		` ORDER BY applied_at DESC LIMIT ` + placeholder(len(args)+1) +
		` OFFSET ` + placeholder(len(args)+2)
	countSQL := `SELECT COUNT(*) FROM membership_applications` + where

	batch := &pgx.Batch{}
	batch.Queue(dataSQL, append(append([]any{}, args...), page.Limit, page.Offset())...)
	batch.Queue(countSQL, args...)

	results := db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	rows, err := results.Query()
	if err != nil {
		return nil, 0, err
	}
	apps := []models.MembershipApplication{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		apps = append(apps, *app)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := results.QueryRow().Scan(&total); err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
