package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/citypulse/api-edge/internal/models"
	"github.com/citypulse/api-edge/internal/query"
)

// PlacesCollection ranks text matches by relevance with rating as the
// tiebreak; without a query, best-rated-first mirrors the listing default.
var PlacesCollection = query.Collection{
	Table: "places",
	Columns: []string{
		"id", "name", "description", "category", "rating", "latitude",
		"longitude", "images", "is_active", "created_at", "updated_at",
	},
	SearchVector: "search",
	NaturalOrder: "rating DESC, created_at DESC",
	Tiebreak:     "rating DESC",
	GeoLat:       "latitude",
	GeoLng:       "longitude",
	BaseWhere:    "is_active = TRUE",
}

func scanPlace(rows pgx.Rows) (models.Place, error) {
	var p models.Place
	err := rows.Scan(
		&p.ID, &p.Name, &p.Description, &p.Category, &p.Rating, &p.Latitude,
		&p.Longitude, &p.Images, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (db *DB) ListPlaces(ctx context.Context, filters []query.Filter, page query.Page) ([]models.Place, int, error) {
	places := []models.Place{}
	total, err := query.Run(ctx, db.Pool, PlacesCollection, filters, page, func(rows pgx.Rows) error {
		for rows.Next() {
			p, err := scanPlace(rows)
			if err != nil {
				return err
			}
			places = append(places, p)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return places, total, nil
}

func (db *DB) GetPlace(ctx context.Context, id string) (*models.Place, error) {
	q := `
        SELECT id, name, description, category, rating, latitude, longitude,
               images, is_active, created_at, updated_at
        FROM places
        WHERE id = $1 AND is_active = TRUE
    `

	var p models.Place
	err := db.Pool.QueryRow(ctx, q, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.Category, &p.Rating, &p.Latitude,
		&p.Longitude, &p.Images, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *DB) CreatePlace(ctx context.Context, p *models.Place) error {
	p.ID = uuid.NewString()
	q := `
        INSERT INTO places (id, name, description, category, rating, latitude, longitude, images)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING is_active, created_at, updated_at
    `

	return db.Pool.QueryRow(ctx, q,
		p.ID, p.Name, p.Description, p.Category, p.Rating, p.Latitude,
		p.Longitude, p.Images,
	).Scan(&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
}

func (db *DB) UpdatePlace(ctx context.Context, p *models.Place) error {
	q := `
        UPDATE places
        SET name = $2, description = $3, category = $4, rating = $5,
            latitude = $6, longitude = $7, images = $8, updated_at = NOW()
        WHERE id = $1 AND is_active = TRUE
        RETURNING is_active, created_at, updated_at
    `

	err := db.Pool.QueryRow(ctx, q,
		p.ID, p.Name, p.Description, p.Category, p.Rating, p.Latitude,
		p.Longitude, p.Images,
	).Scan(&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// DeletePlace deactivates rather than removes; listings filter on is_active.
func (db *DB) DeletePlace(ctx context.Context, id string) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE places SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
