package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors shared by the query files; handlers match with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyMember        = errors.New("user already holds approved membership")
	ErrDuplicateApplication = errors.New("user already has a pending application")
	ErrAlreadyReviewed      = errors.New("application has already been reviewed")
)

type DB struct {
	Pool *pgxpool.Pool
}

func NewDB(databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}
