package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/pagination"
)

const eventSelect = `SELECT e.id, e.title, e.description, e.category, e.start_date, e.end_date,
	e.address, e.lat, e.lng, e.organizer_id, u.name, u.email, u.avatar,
	e.max_participants, e.status, e.image, e.created_at, e.updated_at
	FROM events e JOIN users u ON u.id = e.organizer_id`

// Filter narrows an event listing. Zero fields match everything. Status filters the stored status.
type Filter struct {
	Category models.Category
	Status   models.EventStatus
	Search   string
}

// Repository persists events and their participant lists in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	var lat, lng *float64
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Category, &e.StartDate, &e.EndDate,
		&e.Location.Address, &lat, &lng, &e.OrganizerID, &e.Organizer.Name, &e.Organizer.Email, &e.Organizer.Avatar,
		&e.MaxParticipants, &e.StoredStatus, &e.Image, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Organizer.ID = e.OrganizerID
	if lat != nil && lng != nil {
		e.Location.Coordinates = &models.Coordinates{Lat: *lat, Lng: *lng}
	}
	return &e, nil
}

func coords(l models.Location) (lat, lng *float64) {
	if l.Coordinates == nil {
		return nil, nil
	}
	return &l.Coordinates.Lat, &l.Coordinates.Lng
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, description, category, start_date, end_date, address, lat, lng,
		organizer_id, max_participants, status, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`
	lat, lng := coords(e.Location)
	err := r.pool.QueryRow(ctx, q, e.Title, e.Description, string(e.Category), e.StartDate, e.EndDate,
		e.Location.Address, lat, lng, e.OrganizerID, e.MaxParticipants, string(e.StoredStatus), e.Image).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID returns an event with organizer and participants expanded.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return r.get(ctx, r.pool, id, false)
}

func (r *Repository) get(ctx context.Context, q querier, id uuid.UUID, lock bool) (*models.Event, error) {
	sql := eventSelect + ` WHERE e.id = $1`
	if lock {
		sql += ` FOR UPDATE OF e`
	}
	e, err := scanEvent(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if err := r.attachParticipants(ctx, q, []*models.Event{e}); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *Repository) attachParticipants(ctx context.Context, q querier, list []*models.Event) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	byID := make(map[uuid.UUID]*models.Event, len(list))
	for i, e := range list {
		ids[i] = e.ID.String()
		byID[e.ID] = e
		e.Participants = []models.UserSummary{}
	}
	rows, err := q.Query(ctx, `SELECT p.event_id, u.id, u.name, u.avatar
		FROM event_participants p JOIN users u ON u.id = p.user_id
		WHERE p.event_id = ANY($1::uuid[])
		ORDER BY p.joined_at, u.id`, ids)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var eventID uuid.UUID
		var s models.UserSummary
		if err := rows.Scan(&eventID, &s.ID, &s.Name, &s.Avatar); err != nil {
			return fmt.Errorf("scan participant: %w", err)
		}
		if e, ok := byID[eventID]; ok {
			e.Participants = append(e.Participants, s)
		}
	}
	return rows.Err()
}

func (r *Repository) queryEvents(ctx context.Context, sql string, args ...interface{}) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	var ptrs []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ptrs = append(ptrs, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachParticipants(ctx, r.pool, ptrs); err != nil {
		return nil, err
	}
	list := make([]models.Event, len(ptrs))
	for i, e := range ptrs {
		list[i] = *e
	}
	return list, nil
}

func whereClause(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.Category != "" {
		add("e.category = ?", string(f.Category))
	}
	if f.Status != "" {
		add("e.status = ?", string(f.Status))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add("(e.title ILIKE ? OR e.description ILIKE ?)", "%"+escapeLike(s)+"%")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// List returns one page of matching events sorted by start date, and the total match count.
func (r *Repository) List(ctx context.Context, f Filter, p pagination.Params) ([]models.Event, int, error) {
	where, args := whereClause(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events e`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	n := len(args)
	sql := eventSelect + where + ` ORDER BY e.start_date ASC, e.id` +
		` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	list, err := r.queryEvents(ctx, sql, append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListByOrganizer returns every event organized by userID.
func (r *Repository) ListByOrganizer(ctx context.Context, userID uuid.UUID) ([]models.Event, error) {
	return r.queryEvents(ctx, eventSelect+` WHERE e.organizer_id = $1 ORDER BY e.start_date ASC`, userID)
}

// ListByParticipant returns every event userID is registered for.
func (r *Repository) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]models.Event, error) {
	return r.queryEvents(ctx, eventSelect+` WHERE EXISTS (
		SELECT 1 FROM event_participants p WHERE p.event_id = e.id AND p.user_id = $1)
		ORDER BY e.start_date ASC`, userID)
}

// Update locks the event row, applies fn to the loaded event and writes the result back in
// the same transaction. An error from fn aborts without writing.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, fn func(*models.Event) error) (*models.Event, error) {
	var out *models.Event
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		e, err := r.get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
		const q = `UPDATE events SET title = $2, description = $3, category = $4, start_date = $5, end_date = $6,
			address = $7, lat = $8, lng = $9, max_participants = $10, status = $11, image = $12, updated_at = NOW()
			WHERE id = $1 RETURNING updated_at`
		lat, lng := coords(e.Location)
		if err := tx.QueryRow(ctx, q, id, e.Title, e.Description, string(e.Category), e.StartDate, e.EndDate,
			e.Location.Address, lat, lng, e.MaxParticipants, string(e.StoredStatus), e.Image).Scan(&e.UpdatedAt); err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the event and returns its image URL, if any.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (*string, error) {
	var image *string
	err := r.pool.QueryRow(ctx, `DELETE FROM events WHERE id = $1 RETURNING image`, id).Scan(&image)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete event: %w", err)
	}
	return image, nil
}
