package repository

import (
	"context"
	"database/sql"
	"time"

	"hvac_gateway/internal/models"
)

// EventRepo is the append-only audit log of device commands.
type EventRepo interface {
	Append(ctx context.Context, e models.CommandEvent) error
	List(ctx context.Context, from, to time.Time, op models.Operation) ([]models.CommandEvent, error)
}

type Repository struct {
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
	}
}
