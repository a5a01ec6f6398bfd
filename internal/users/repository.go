package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/database"
	"github.com/eblago/backend/pkg/pagination"
)

const userColumns = `id, name, email, password_hash, role, is_blocked, avatar, created_at, updated_at`

// Repository manages user accounts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a users repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Role, &u.IsBlocked, &u.Avatar, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, err
}

// List returns one page of users, oldest account first, and the total count.
func (r *Repository) List(ctx context.Context, p pagination.Params) ([]models.User, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id LIMIT $1 OFFSET $2`,
		p.Limit, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var list []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		list = append(list, *u)
	}
	return list, total, rows.Err()
}

// UpdateProfile writes name, email and avatar.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, name, email string, avatar *string) (*models.User, error) {
	const q = `UPDATE users SET name = $2, email = lower($3), avatar = $4, updated_at = NOW()
		WHERE id = $1 RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, id, name, email, avatar))
	if database.IsUniqueViolation(err, "users_email_key") {
		return nil, ErrEmailTaken
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, err
}

// UpdatePassword stores a new password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRole changes a user's role.
func (r *Repository) SetRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `UPDATE users SET role = $2, updated_at = NOW()
		WHERE id = $1 RETURNING `+userColumns, id, string(role)))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("set role: %w", err)
	}
	return u, err
}

// SetBlocked flips the blocked flag. Setting the flag to its current value is
// ErrAlreadyBlocked or ErrNotBlocked.
func (r *Repository) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `UPDATE users SET is_blocked = $2, updated_at = NOW()
		WHERE id = $1 AND is_blocked <> $2 RETURNING `+userColumns, id, blocked))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("set blocked: %w", err)
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, blockStateError(blocked)
}

// Delete removes the user. Foreign keys cascade to participations, organized events, messages,
// organizer requests and notifications. The returned URLs are the images nothing references anymore.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) ([]string, error) {
	var images []string
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var avatar *string
		err := tx.QueryRow(ctx, `SELECT avatar FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&avatar)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		if avatar != nil {
			images = append(images, *avatar)
		}

		rows, err := tx.Query(ctx, `SELECT image FROM events WHERE organizer_id = $1 AND image IS NOT NULL`, id)
		if err != nil {
			return fmt.Errorf("list event images: %w", err)
		}
		for rows.Next() {
			var url string
			if err := rows.Scan(&url); err != nil {
				rows.Close()
				return fmt.Errorf("scan event image: %w", err)
			}
			images = append(images, url)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}
