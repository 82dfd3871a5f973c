// Package repository persists campaigns, campaign leads, and email sends.
// Status moves that race with webhooks or scheduler ticks use compare-and-set
// updates or row locks so that concurrent writers serialize on the database.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrStaleStatus       = errors.New("status changed concurrently")
	ErrDuplicateLead     = errors.New("lead already attached to campaign")
	ErrCampaignNotActive = errors.New("campaign is not active")
	ErrStepOutOfRange    = errors.New("sequence step out of range")
)

const pgUniqueViolation = "23505"

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
