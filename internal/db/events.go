package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/citypulse/api-edge/internal/models"
	"github.com/citypulse/api-edge/internal/query"
)

// EventsCollection drives the optimizer for event listings and search.
// "search" is a stored tsvector column weighted name > description > venue.
var EventsCollection = query.Collection{
	Table: "events",
	Columns: []string{
		"id", "name", "description", "category", "start_date", "end_date",
		"venue", "latitude", "longitude", "images", "is_active",
		"created_at", "updated_at",
	},
	SearchVector: "search",
	NaturalOrder: "start_date ASC",
	Tiebreak:     "start_date ASC",
	DateColumn:   "start_date",
	GeoLat:       "latitude",
	GeoLng:       "longitude",
	BaseWhere:    "is_active = TRUE",
}

func scanEvent(rows pgx.Rows) (models.Event, error) {
	var e models.Event
	err := rows.Scan(
		&e.ID, &e.Name, &e.Description, &e.Category, &e.StartDate, &e.EndDate,
		&e.Venue, &e.Latitude, &e.Longitude, &e.Images, &e.IsActive,
		&e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

// ListEvents runs the optimizer: data page plus exact total in one batched
// round trip.
func (db *DB) ListEvents(ctx context.Context, filters []query.Filter, page query.Page) ([]models.Event, int, error) {
	events := []models.Event{}
	total, err := query.Run(ctx, db.Pool, EventsCollection, filters, page, func(rows pgx.Rows) error {
		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				return err
			}
			events = append(events, e)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (db *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	q := `
        SELECT id, name, description, category, start_date, end_date, venue,
               latitude, longitude, images, is_active, created_at, updated_at
        FROM events
        WHERE id = $1 AND is_active = TRUE
    `

	var e models.Event
	err := db.Pool.QueryRow(ctx, q, id).Scan(
		&e.ID, &e.Name, &e.Description, &e.Category, &e.StartDate, &e.EndDate,
		&e.Venue, &e.Latitude, &e.Longitude, &e.Images, &e.IsActive,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (db *DB) CreateEvent(ctx context.Context, e *models.Event) error {
	e.ID = uuid.NewString()
	q := `
        INSERT INTO events (id, name, description, category, start_date, end_date, venue, latitude, longitude, images)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING is_active, created_at, updated_at
    `

	return db.Pool.QueryRow(ctx, q,
		e.ID, e.Name, e.Description, e.Category, e.StartDate, e.EndDate,
		e.Venue, e.Latitude, e.Longitude, e.Images,
	).Scan(&e.IsActive, &e.CreatedAt, &e.UpdatedAt)
}

func (db *DB) UpdateEvent(ctx context.Context, e *models.Event) error {
	q := `
        UPDATE events
        SET name = $2, description = $3, category = $4, start_date = $5,
            end_date = $6, venue = $7, latitude = $8, longitude = $9,
            images = $10, updated_at = NOW()
        WHERE id = $1 AND is_active = TRUE
        RETURNING is_active, created_at, updated_at
    `

	err := db.Pool.QueryRow(ctx, q,
		e.ID, e.Name, e.Description, e.Category, e.StartDate, e.EndDate,
		e.Venue, e.Latitude, e.Longitude, e.Images,
	).Scan(&e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (db *DB) DeleteEvent(ctx context.Context, id string) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
