package organizerrequests

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/database"
)

const requestSelect = `SELECT r.id, r.user_id, u.name, u.email, u.avatar, r.organization_name, r.phone, r.email,
	r.message, r.status, r.created_at, r.updated_at
	FROM organizer_requests r JOIN users u ON u.id = r.user_id`

// Repository persists organizer requests in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizer requests repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRequest(row pgx.Row) (*models.OrganizerRequest, error) {
	var r models.OrganizerRequest
	err := row.Scan(&r.ID, &r.UserID, &r.User.Name, &r.User.Email, &r.User.Avatar, &r.OrganizationName,
		&r.Phone, &r.Email, &r.Message, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.User.ID = r.UserID
	return &r, nil
}

// Create inserts a pending request. A second open request for the same user is ErrOpenRequest.
func (r *Repository) Create(ctx context.Context, req *models.OrganizerRequest) error {
	const q = `INSERT INTO organizer_requests (user_id, organization_name, phone, email, message)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, status, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, req.UserID, req.OrganizationName, req.Phone, req.Email, req.Message).
		Scan(&req.ID, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if database.IsUniqueViolation(err, "organizer_requests_open_idx") {
		return ErrOpenRequest
	}
	if err != nil {
		return fmt.Errorf("insert organizer request: %w", err)
	}
	return nil
}

// HasOpen reports whether the user has a pending or approved request.
func (r *Repository) HasOpen(ctx context.Context, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM organizer_requests
		WHERE user_id = $1 AND status IN ('pending', 'approved'))`, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check open request: %w", err)
	}
	return ok, nil
}

// List returns all requests, newest first.
func (r *Repository) List(ctx context.Context) ([]models.OrganizerRequest, error) {
	rows, err := r.pool.Query(ctx, requestSelect+` ORDER BY r.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list organizer requests: %w", err)
	}
	defer rows.Close()
	list := []models.OrganizerRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organizer request: %w", err)
		}
		list = append(list, *req)
	}
	return list, rows.Err()
}

// GetByID returns one request with the requester expanded.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.OrganizerRequest, error) {
	return r.get(ctx, r.pool, id, false)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *Repository) get(ctx context.Context, q querier, id uuid.UUID, lock bool) (*models.OrganizerRequest, error) {
	sql := requestSelect + ` WHERE r.id = $1`
	if lock {
		sql += ` FOR UPDATE OF r`
	}
	req, err := scanRequest(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organizer request: %w", err)
	}
	return req, nil
}

// Transition moves a pending request to the given status. Approval also grants the requester
// the organizer role in the same transaction; admins keep their role.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, to models.RequestStatus) (*models.OrganizerRequest, error) {
	var out *models.OrganizerRequest
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		req, err := r.get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := CanTransition(req.Status, to); err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `UPDATE organizer_requests SET status = $2, updated_at = NOW()
			WHERE id = $1 RETURNING updated_at`, id, string(to)).Scan(&req.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update organizer request: %w", err)
		}
		req.Status = to
		if to == models.RequestApproved {
			if _, err := tx.Exec(ctx, `UPDATE users SET role = 'organizer', updated_at = NOW()
				WHERE id = $1 AND role = 'user'`, req.UserID); err != nil {
				return fmt.Errorf("grant organizer role: %w", err)
			}
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
