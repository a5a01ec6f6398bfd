package events

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eblago/backend/internal/middleware"
	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/apperr"
	"github.com/eblago/backend/pkg/pagination"
	"github.com/eblago/backend/pkg/queue"
	"github.com/eblago/backend/pkg/storage"
	"github.com/eblago/backend/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.RegisterGin()
}

type memStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*models.Event
}

func newMemStore() *memStore { return &memStore{events: make(map[uuid.UUID]*models.Event)} }

func clone(e *models.Event) *models.Event {
	cp := *e
	cp.Participants = append([]models.UserSummary(nil), e.Participants...)
	return &cp
}

func (m *memStore) Create(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	e.Organizer.ID = e.OrganizerID
	m.events[e.ID] = clone(e)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(e), nil
}

func (m *memStore) all(keep func(*models.Event) bool) []models.Event {
	var out []models.Event
	for _, e := range m.events {
		if keep(e) {
			out = append(out, *clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

func (m *memStore) List(_ context.Context, f Filter, p pagination.Params) ([]models.Event, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.all(func(e *models.Event) bool {
		if f.Category != "" && e.Category != f.Category {
			return false
		}
		if f.Status != "" && e.StoredStatus != f.Status {
			return false
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(e.Title+" "+e.Description), strings.ToLower(f.Search)) {
			return false
		}
		return true
	})
	total := len(list)
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return list[start:end], total, nil
}

func (m *memStore) ListByOrganizer(_ context.Context, userID uuid.UUID) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.all(func(e *models.Event) bool { return e.OrganizerID == userID }), nil
}

func (m *memStore) ListByParticipant(_ context.Context, userID uuid.UUID) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.all(func(e *models.Event) bool { return e.HasParticipant(userID) }), nil
}

func (m *memStore) Update(_ context.Context, id uuid.UUID, fn func(*models.Event) error) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := clone(e)
	if err := fn(cp); err != nil {
		return nil, err
	}
	cp.UpdatedAt = time.Now()
	m.events[id] = clone(cp)
	return cp, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.events, id)
	return e.Image, nil
}

type fakeImages struct {
	saved []string
	fail  error
}

func (f *fakeImages) Save(_ context.Context, folder string, file storage.File) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	url := "https://img.test/" + folder + "/" + file.Name
	f.saved = append(f.saved, url)
	return url, nil
}

func (f *fakeImages) Delete(context.Context, string) error { return nil }

type fakeCleanup struct {
	jobs []queue.ImageDeletePayload
}

func (f *fakeCleanup) EnqueueImageDelete(_ context.Context, p queue.ImageDeletePayload) error {
	f.jobs = append(f.jobs, p)
	return nil
}

var (
	start = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	end   = time.Date(2026, 6, 1, 17, 0, 0, 0, time.UTC)
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int { return &n }

func validInput() Input {
	cat := models.CategoryMedical
	s, e := start, end
	return Input{
		Title:           strPtr("Blood drive"),
		Description:     strPtr("Donate blood at the city hospital"),
		Category:        &cat,
		StartDate:       &s,
		EndDate:         &e,
		Location:        &models.Location{Address: "Main st 1"},
		MaxParticipants: intPtr(2),
	}
}

func newTestService(images storage.ImageStore) (*Service, *memStore, *fakeCleanup) {
	store := newMemStore()
	cleanup := &fakeCleanup{}
	svc := NewService(store, images, cleanup, nil)
	svc.now = func() time.Time { return start.Add(-24 * time.Hour) }
	return svc, store, cleanup
}

var organizer = models.Actor{ID: uuid.New(), Role: models.RoleOrganizer}

func TestCreate(t *testing.T) {
	svc, _, _ := newTestService(nil)
	ctx := context.Background()

	e, err := svc.Create(ctx, organizer, validInput())
	require.NoError(t, err)
	assert.Equal(t, organizer.ID, e.OrganizerID)
	assert.Equal(t, models.StatusUpcoming, e.Status)
	assert.Equal(t, 2, e.RemainingSpots)
	assert.Empty(t, e.Participants)
	assert.NotNil(t, e.Participants)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(nil)
	ctx := context.Background()

	cases := map[string]struct {
		mutate func(*Input)
		want   string
	}{
		"short title":      {func(in *Input) { in.Title = strPtr("ab") }, "title must be at least 3 characters"},
		"no description":   {func(in *Input) { in.Description = nil }, "description is required"},
		"bad category":     {func(in *Input) { c := models.Category("sports"); in.Category = &c }, "category must be one of"},
		"end before start": {func(in *Input) { e := start.Add(-time.Hour); in.EndDate = &e }, "end_date must be after start_date"},
		"no address":       {func(in *Input) { in.Location = &models.Location{} }, "address is required"},
		"zero capacity":    {func(in *Input) { in.MaxParticipants = intPtr(0) }, "max_participants is required"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Create(ctx, organizer, in)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestCreateImageWithoutStore(t *testing.T) {
	svc, _, _ := newTestService(nil)
	in := validInput()
	in.Image = &storage.File{Name: "a.png", ContentType: "image/png", Size: 10, Body: strings.NewReader("x")}
	_, err := svc.Create(context.Background(), organizer, in)
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
}

func TestUpdateAuthorization(t *testing.T) {
	svc, _, _ := newTestService(nil)
	ctx := context.Background()
	e, err := svc.Create(ctx, organizer, validInput())
	require.NoError(t, err)

	stranger := models.Actor{ID: uuid.New(), Role: models.RoleOrganizer}
	_, err = svc.Update(ctx, stranger, e.ID, Input{Title: strPtr("Hijacked")})
	assert.ErrorIs(t, err, ErrForbidden)

	admin := models.Actor{ID: uuid.New(), Role: models.RoleAdmin}
	updated, err := svc.Update(ctx, admin, e.ID, Input{Title: strPtr("Blood drive 2")})
	require.NoError(t, err)
	assert.Equal(t, "Blood drive 2", updated.Title)
	assert.Equal(t, "Donate blood at the city hospital", updated.Description)
}

func TestUpdateRevalidatesMergedEvent(t *testing.T) {
	svc, _, _ := newTestService(nil)
	ctx := context.Background()
	e, err := svc.Create(ctx, organizer, validInput())
	require.NoError(t, err)

	early := start.Add(-time.Hour)
	_, err = svc.Update(ctx, organizer, e.ID, Input{EndDate: &early})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end_date must be after start_date")
}

func TestUpdateCapacityBelowParticipants(t *testing.T) {
	svc, store, _ := newTestService(nil)
	ctx := context.Background()
	e, err := svc.Create(ctx, organizer, validInput())
	require.NoError(t, err)
	store.events[e.ID].Participants = []models.UserSummary{{ID: uuid.New()}, {ID: uuid.New()}}

	_, err = svc.Update(ctx, organizer, e.ID, Input{MaxParticipants: intPtr(1)})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	updated, err := svc.Update(ctx, organizer, e.ID, Input{MaxParticipants: intPtr(2)})
	require.NoError(t, err)
	assert.True(t, updated.IsFull)
}

func TestCancelIsSticky(t *testing.T) {
	svc, _, _ := newTestService(nil)
	ctx := context.Background()
	e, err := svc.Create(ctx, organizer, validInput())
	require.NoError(t, err)

	canceled := models.StatusCanceled
	_, err = svc.Update(ctx, organizer, e.ID, Input{Status: &canceled})
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(time.Hour) }
	got, err := svc.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, got.Status)
}

func TestUpdateImageReplacesAndQueuesOld(t *testing.T) {
	images := &fakeImages{}
	svc, _, cleanup := newTestService(images)
	ctx := context.Background()

	in := validInput()
	in.Image = &storage.File{Name: "one.png", ContentType: "image/png", Size: 10, Body: strings.NewReader("x")}
	e, err := svc.Create(ctx, organizer, in)
	require.NoError(t, err)
	require.NotNil(t, e.Image)
	first := *e.Image

	upd := Input{
		Image:       &storage.File{Name: "two.png", ContentType: "image/png", Size: 10, Body: strings.NewReader("y")},
		RemoveImage: true,
	}
	got, err := svc.Update(ctx, organizer, e.ID, upd)
	require.NoError(t, err)
	require.NotNil(t, got.Image)
	assert.Equal(t, "https://img.test/events/two.png", *got.Image)
	require.Len(t, cleanup.jobs, 1)
	assert.Equal(t, first, cleanup.jobs[0].URL)

	got, err = svc.Update(ctx, organizer, e.ID, Input{RemoveImage: true})
	require.NoError(t, err)
	assert.Nil(t, got.Image)
	require.Len(t, cleanup.jobs, 2)
	assert.Equal(t, "https://img.test/events/two.png", cleanup.jobs[1].URL)
}

func TestForbiddenUpdateUploadsNothing(t *testing.T) {
	images := &fakeImages{}
	svc, _, cleanup := newTestService(images)
	ctx := context.Background()
	e, err := svc.Create(ctx, organizer, validInput())
	require.NoError(t, err)

	stranger := models.Actor{ID: uuid.New(), Role: models.RoleUser}
	_, err = svc.Update(ctx, stranger, e.ID, Input{
		Image: &storage.File{Name: "x.png", ContentType: "image/png", Size: 10, Body: strings.NewReader("x")},
	})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, images.saved)
	assert.Empty(t, cleanup.jobs)
}

func TestUpdateFailureDiscardsUpload(t *testing.T) {
	images := &fakeImages{}
	svc, _, cleanup := newTestService(images)
	ctx := context.Background()
	e, err := svc.Create(ctx, organizer, validInput())
	require.NoError(t, err)

	_, err = svc.Update(ctx, organizer, e.ID, Input{
		Title: strPtr("no"),
		Image: &storage.File{Name: "x.png", ContentType: "image/png", Size: 10, Body: strings.NewReader("x")},
	})
	require.Error(t, err)
	require.Len(t, cleanup.jobs, 1)
	assert.Equal(t, "https://img.test/events/x.png", cleanup.jobs[0].URL)
}

func TestDelete(t *testing.T) {
	svc, _, _ := newTestService(nil)
	ctx := context.Background()
	e, err := svc.Create(ctx, organizer, validInput())
	require.NoError(t, err)

	err = svc.Delete(ctx, models.Actor{ID: uuid.New(), Role: models.RoleUser}, e.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.Delete(ctx, organizer, e.ID))
	_, err = svc.Get(ctx, e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPagination(t *testing.T) {
	svc, _, _ := newTestService(nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		in := validInput()
		s, e := start.Add(time.Duration(2-i)*24*time.Hour), end.Add(time.Duration(2-i)*24*time.Hour)
		in.StartDate, in.EndDate = &s, &e
		_, err := svc.Create(ctx, organizer, in)
		require.NoError(t, err)
	}

	out, err := svc.List(ctx, Filter{}, pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Total)
	assert.True(t, out.HasMore)
	require.Len(t, out.Events, 2)
	assert.True(t, out.Events[0].StartDate.Before(out.Events[1].StartDate))

	out, err = svc.List(ctx, Filter{Category: models.CategoryMilitary}, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, out.Total)
	assert.NotNil(t, out.Events)
}

func TestHandlerMultipartBadLocation(t *testing.T) {
	svc, _, _ := newTestService(nil)
	h := NewHandler(svc)
	r := gin.New()
	r.POST("/api/events", func(c *gin.Context) {
		c.Set(middleware.ContextActor, organizer)
		c.Next()
	}, h.Create)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "Blood drive"))
	require.NoError(t, mw.WriteField("location", "{not json"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/events", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "location must be a JSON object")
}

func TestHandlerJSONCreate(t *testing.T) {
	svc, _, _ := newTestService(nil)
	h := NewHandler(svc)
	r := gin.New()
	r.POST("/api/events", func(c *gin.Context) {
		c.Set(middleware.ContextActor, organizer)
		c.Next()
	}, h.Create)

	payload := `{"title":"Blood drive","description":"Donate","category":"medical",
		"start_date":"2026-06-01T09:00:00Z","end_date":"2026-06-01T17:00:00Z",
		"location":{"address":"Main st 1","coordinates":{"lat":50.4,"lng":30.5}},"max_participants":10}`
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"remaining_spots":10`)
	assert.Contains(t, w.Body.String(), `"status":"upcoming"`)

	req = httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(`{"start_date":"tomorrow"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "start_date must be an RFC3339 date")
}

func TestImageStoreFailure(t *testing.T) {
	svc, _, _ := newTestService(&fakeImages{fail: errors.New("s3 down")})
	in := validInput()
	in.Image = &storage.File{Name: "a.png", ContentType: "image/png", Size: 10, Body: strings.NewReader("x")}
	_, err := svc.Create(context.Background(), organizer, in)
	assert.EqualError(t, err, "s3 down")
}
