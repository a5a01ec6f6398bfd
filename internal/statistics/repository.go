package statistics

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eblago/backend/internal/models"
)

// Repository reads the aggregate inputs from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a statistics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UserCounts counts users by role and blocked flag.
func (r *Repository) UserCounts(ctx context.Context) (UserCounts, error) {
	rows, err := r.pool.Query(ctx, `SELECT role, is_blocked, COUNT(*) FROM users GROUP BY role, is_blocked`)
	if err != nil {
		return UserCounts{}, fmt.Errorf("count users: %w", err)
	}
	defer rows.Close()
	out := UserCounts{ByRole: make(map[models.Role]int)}
	for rows.Next() {
		var role models.Role
		var blocked bool
		var n int
		if err := rows.Scan(&role, &blocked, &n); err != nil {
			return UserCounts{}, fmt.Errorf("scan user count: %w", err)
		}
		out.Total += n
		out.ByRole[role] += n
		if blocked {
			out.Blocked += n
		}
	}
	return out, rows.Err()
}

// EventFacts returns one row per event with its participant count, ordered by start date.
func (r *Repository) EventFacts(ctx context.Context) ([]EventFacts, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.category, e.status, e.start_date, e.end_date, e.max_participants,
		COUNT(p.user_id)
		FROM events e LEFT JOIN event_participants p ON p.event_id = e.id
		GROUP BY e.id ORDER BY e.start_date, e.id`)
	if err != nil {
		return nil, fmt.Errorf("load event facts: %w", err)
	}
	defer rows.Close()
	var out []EventFacts
	for rows.Next() {
		var f EventFacts
		if err := rows.Scan(&f.Category, &f.StoredStatus, &f.StartDate, &f.EndDate, &f.MaxParticipants, &f.Participants); err != nil {
			return nil, fmt.Errorf("scan event facts: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
