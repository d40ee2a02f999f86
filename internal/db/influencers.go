package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/citypulse/api-edge/internal/models"
	"github.com/citypulse/api-edge/internal/query"
)

var InfluencersCollection = query.Collection{
	Table: "influencers",
	Columns: []string{
		"id", "name", "username", "bio", "category", "followers",
		"is_active", "created_at",
	},
	SearchVector: "search",
	NaturalOrder: "followers DESC",
	Tiebreak:     "followers DESC",
	BaseWhere:    "is_active = TRUE",
}

func scanInfluencer(rows pgx.Rows) (models.Influencer, error) {
	var i models.Influencer
	err := rows.Scan(
		&i.ID, &i.Name, &i.Username, &i.Bio, &i.Category, &i.Followers,
		&i.IsActive, &i.CreatedAt,
	)
	return i, err
}

func (db *DB) ListInfluencers(ctx context.Context, filters []query.Filter, page query.Page) ([]models.Influencer, int, error) {
	influencers := []models.Influencer{}
	total, err := query.Run(ctx, db.Pool, InfluencersCollection, filters, page, func(rows pgx.Rows) error {
		for rows.Next() {
			i, err := scanInfluencer(rows)
			if err != nil {
				return err
			}
			influencers = append(influencers, i)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return influencers, total, nil
}

func (db *DB) GetInfluencer(ctx context.Context, id string) (*models.Influencer, error) {
	q := `
        SELECT id, name, username, bio, category, followers, is_active, created_at
        FROM influencers
        WHERE id = $1 AND is_active = TRUE
    `

	var i models.Influencer
	err := db.Pool.QueryRow(ctx, q, id).Scan(
		&i.ID, &i.Name, &i.Username, &i.Bio, &i.Category, &i.Followers,
		&i.IsActive, &i.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &i, nil
}
