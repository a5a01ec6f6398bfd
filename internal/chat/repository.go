package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eblago/backend/internal/events"
	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/pagination"
)

const messageSelect = `SELECT m.id, m.event_id, m.sender_id, u.name, u.email, u.avatar,
	m.content, m.edited, m.attachments, m.created_at, m.updated_at
	FROM messages m JOIN users u ON u.id = m.sender_id`

// Repository persists chat messages in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a chat repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.EventID, &m.SenderID, &m.Sender.Name, &m.Sender.Email, &m.Sender.Avatar,
		&m.Content, &m.Edited, &m.Attachments, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Sender.ID = m.SenderID
	if m.Attachments == nil {
		m.Attachments = []string{}
	}
	return &m, nil
}

// IsMember reports whether userID organizes or participates in the event.
func (r *Repository) IsMember(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	const q = `SELECT e.organizer_id = $2 OR EXISTS (
		SELECT 1 FROM event_participants p WHERE p.event_id = e.id AND p.user_id = $2)
		FROM events e WHERE e.id = $1`
	var ok bool
	err := r.pool.QueryRow(ctx, q, eventID, userID).Scan(&ok)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, events.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return ok, nil
}

// List returns a page of the event's messages, oldest first, and the total count.
func (r *Repository) List(ctx context.Context, eventID uuid.UUID, p pagination.Params) ([]models.Message, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE event_id = $1`, eventID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	sql := messageSelect + ` WHERE m.event_id = $1 ORDER BY m.created_at ASC, m.id`
	args := []interface{}{eventID}
	if !p.Unbounded() {
		sql += ` LIMIT $2 OFFSET $3`
		args = append(args, p.Limit, p.Offset())
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	list := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		list = append(list, *m)
	}
	return list, total, rows.Err()
}

// Create inserts a message and returns it with the sender expanded.
func (r *Repository) Create(ctx context.Context, eventID, senderID uuid.UUID, content string, attachments []string) (*models.Message, error) {
	if attachments == nil {
		attachments = []string{}
	}
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `INSERT INTO messages (event_id, sender_id, content, attachments)
		VALUES ($1, $2, $3, $4) RETURNING id`, eventID, senderID, content, attachments).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a message with the sender expanded.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx, messageSelect+` WHERE m.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// UpdateContent replaces the content of senderID's message and marks it edited.
func (r *Repository) UpdateContent(ctx context.Context, id, senderID uuid.UUID, content string) (*models.Message, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE messages SET content = $3, edited = TRUE, updated_at = NOW()
		WHERE id = $1 AND sender_id = $2`, id, senderID, content)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrMessageNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes senderID's message.
func (r *Repository) Delete(ctx context.Context, id, senderID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1 AND sender_id = $2`, id, senderID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}
