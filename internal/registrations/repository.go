package registrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eblago/backend/internal/events"
)

// Repository changes event participant lists in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Add inserts userID into the event's participants. The event row stays locked from the
// capacity check to the insert, so concurrent registrations serialize.
func (r *Repository) Add(ctx context.Context, eventID, userID uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var organizerID uuid.UUID
		var capacity int
		err := tx.QueryRow(ctx, `SELECT organizer_id, max_participants FROM events WHERE id = $1 FOR UPDATE`, eventID).
			Scan(&organizerID, &capacity)
		if errors.Is(err, pgx.ErrNoRows) {
			return events.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock event: %w", err)
		}

		var count int
		var already bool
		err = tx.QueryRow(ctx, `SELECT COUNT(*), COALESCE(BOOL_OR(user_id = $2), FALSE)
			FROM event_participants WHERE event_id = $1`, eventID, userID).Scan(&count, &already)
		if err != nil {
			return fmt.Errorf("count participants: %w", err)
		}
		if err := Admit(capacity, count, already, organizerID == userID); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `INSERT INTO event_participants (event_id, user_id) VALUES ($1, $2)`, eventID, userID); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
		return nil
	})
}

// Remove deletes userID from the event's participants.
func (r *Repository) Remove(ctx context.Context, eventID, userID uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var id uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return events.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock event: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM event_participants WHERE event_id = $1 AND user_id = $2`, eventID, userID)
		if err != nil {
			return fmt.Errorf("delete participant: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotRegistered
		}
		return nil
	})
}
