package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hvac_gateway/internal/models"

	"github.com/google/uuid"
)

// timeLayout is fixed-width so that text comparison in SQLite orders
// correctly.
const timeLayout = "2006-01-02T15:04:05.000000Z"

type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

// Append inserts a new event. Missing EventID and OccurredAt are filled in.
func (r *EventSQLite) Append(ctx context.Context, e models.CommandEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO command_events (id, occurred_at, operation, value, actor, success, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.EventID,
		e.OccurredAt.UTC().Format(timeLayout),
		strings.TrimSpace(string(e.Operation)),
		e.Value,
		e.Actor,
		e.Success,
		e.Message,
	)
	if err != nil {
		return fmt.Errorf("insert command event: %w", err)
	}
	return nil
}

// List returns events in [from, to] (either bound optional) and, when op is
// set, of that operation only. Oldest first.
func (r *EventSQLite) List(ctx context.Context, from, to time.Time, op models.Operation) ([]models.CommandEvent, error) {
	var (
		conds []string
		args  []any
	)

	if !from.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, from.UTC().Format(timeLayout))
	}
	if !to.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, to.UTC().Format(timeLayout))
	}
	if name := strings.TrimSpace(string(op)); name != "" {
		conds = append(conds, "operation = ?")
		args = append(args, name)
	}

	q := `SELECT id, occurred_at, operation, value, actor, success, message FROM command_events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY occurred_at ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query command events: %w", err)
	}
	defer rows.Close()

	out := make([]models.CommandEvent, 0, 64)
	for rows.Next() {
		var (
			ev         models.CommandEvent
			occurredAt string
			operation  string
		)
		if err := rows.Scan(&ev.EventID, &occurredAt, &operation, &ev.Value, &ev.Actor, &ev.Success, &ev.Message); err != nil {
			return nil, fmt.Errorf("scan command event: %w", err)
		}
		t, err := time.Parse(timeLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse occurred_at %q: %w", occurredAt, err)
		}
		ev.OccurredAt = t.UTC()
		ev.Operation = models.Operation(operation)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
