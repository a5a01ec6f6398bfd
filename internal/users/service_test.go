package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eblago/backend/internal/events"
	"github.com/eblago/backend/internal/middleware"
	"github.com/eblago/backend/internal/models"
	"github.com/eblago/backend/pkg/apperr"
	"github.com/eblago/backend/pkg/pagination"
	"github.com/eblago/backend/pkg/password"
	"github.com/eblago/backend/pkg/queue"
	"github.com/eblago/backend/pkg/storage"
	"github.com/eblago/backend/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.RegisterGin()
}

type memStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*models.User
	eventImages map[uuid.UUID][]string
}

func newMemStore() *memStore {
	return &memStore{users: map[uuid.UUID]*models.User{}, eventImages: map[uuid.UUID][]string{}}
}

func (m *memStore) add(t *testing.T, name, email string, role models.Role) *models.User {
	hash, err := password.Hash("secret1")
	require.NoError(t, err)
	u := &models.User{ID: uuid.New(), Name: name, Email: email, Password: hash, Role: role}
	m.users[u.ID] = u
	return u
}

func (m *memStore) get(id uuid.UUID) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.get(id)
	if err != nil {
		return nil, err
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) List(_ context.Context, p pagination.Params) ([]models.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.User
	for _, u := range m.users {
		all = append(all, *u)
	}
	total := len(all)
	lo, hi := p.Offset(), p.Offset()+p.Limit
	if lo > total {
		lo = total
	}
	if hi > total {
		hi = total
	}
	return all[lo:hi], total, nil
}

func (m *memStore) UpdateProfile(_ context.Context, id uuid.UUID, name, email string, avatar *string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.users {
		if other.ID != id && strings.EqualFold(other.Email, email) {
			return nil, ErrEmailTaken
		}
	}
	u, err := m.get(id)
	if err != nil {
		return nil, err
	}
	u.Name, u.Email, u.Avatar = name, strings.ToLower(email), avatar
	cp := *u
	return &cp, nil
}

func (m *memStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.get(id)
	if err != nil {
		return err
	}
	u.Password = hash
	return nil
}

func (m *memStore) SetRole(_ context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.get(id)
	if err != nil {
		return nil, err
	}
	u.Role = role
	cp := *u
	return &cp, nil
}

func (m *memStore) SetBlocked(_ context.Context, id uuid.UUID, blocked bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if u.IsBlocked == blocked {
		return nil, blockStateError(blocked)
	}
	u.IsBlocked = blocked
	cp := *u
	return &cp, nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.get(id)
	if err != nil {
		return nil, err
	}
	var images []string
	if u.Avatar != nil {
		images = append(images, *u.Avatar)
	}
	images = append(images, m.eventImages[id]...)
	delete(m.users, id)
	return images, nil
}

type fakeLister struct{}

func (fakeLister) ForUser(context.Context, uuid.UUID) (*events.OwnEvents, error) {
	return &events.OwnEvents{Organizing: []models.Event{}, Participating: []models.Event{}}, nil
}

type fakeImages struct{}

func (fakeImages) Save(_ context.Context, folder string, f storage.File) (string, error) {
	return "https://img.test/" + folder + "/" + f.Name, nil
}

func (fakeImages) Delete(context.Context, string) error { return nil }

type fakeCleanup struct{ urls []string }

func (f *fakeCleanup) EnqueueImageDelete(_ context.Context, p queue.ImageDeletePayload) error {
	f.urls = append(f.urls, p.URL)
	return nil
}

func actorOf(u *models.User) models.Actor { return models.Actor{ID: u.ID, Email: u.Email, Role: u.Role} }

func strPtr(s string) *string { return &s }

func TestUpdateProfile(t *testing.T) {
	store, cleanup := newMemStore(), &fakeCleanup{}
	svc := NewService(store, fakeLister{}, fakeImages{}, cleanup, nil)
	ctx := context.Background()
	alice := store.add(t, "Alice", "alice@example.com", models.RoleUser)
	store.add(t, "Bob", "bob@example.com", models.RoleUser)

	_, err := svc.UpdateProfile(ctx, actorOf(alice), ProfileInput{Email: strPtr("BOB@example.com")})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.UpdateProfile(ctx, actorOf(alice), ProfileInput{Name: strPtr("A")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	avatar := func(name string) *storage.File {
		return &storage.File{Name: name, ContentType: "image/png", Size: 10, Body: strings.NewReader("x")}
	}
	u, err := svc.UpdateProfile(ctx, actorOf(alice), ProfileInput{Name: strPtr("Alice B"), Avatar: avatar("one.png")})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", u.Name)
	assert.Equal(t, "alice@example.com", u.Email)
	require.NotNil(t, u.Avatar)
	assert.Empty(t, cleanup.urls)

	_, err = svc.UpdateProfile(ctx, actorOf(alice), ProfileInput{Avatar: avatar("two.png")})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.test/avatars/one.png"}, cleanup.urls)
}

func TestAvatarWithoutStore(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, fakeLister{}, nil, nil, nil)
	alice := store.add(t, "Alice", "alice@example.com", models.RoleUser)
	_, err := svc.UpdateProfile(context.Background(), actorOf(alice), ProfileInput{
		Avatar: &storage.File{Name: "a.png", ContentType: "image/png", Size: 1, Body: strings.NewReader("x")},
	})
	assert.ErrorIs(t, err, storage.ErrNotConfigured)
}

func TestChangePassword(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, fakeLister{}, nil, nil, nil)
	ctx := context.Background()
	alice := store.add(t, "Alice", "alice@example.com", models.RoleUser)

	assert.ErrorIs(t, svc.ChangePassword(ctx, actorOf(alice), "wrong", "newsecret"), ErrWrongPassword)
	assert.True(t, apperr.Is(svc.ChangePassword(ctx, actorOf(alice), "secret1", "123"), apperr.KindValidation))
	require.NoError(t, svc.ChangePassword(ctx, actorOf(alice), "secret1", "newsecret"))
	assert.True(t, password.Check("newsecret", store.users[alice.ID].Password))
}

func TestDeleteAccountQueuesImages(t *testing.T) {
	store, cleanup := newMemStore(), &fakeCleanup{}
	svc := NewService(store, fakeLister{}, nil, cleanup, nil)
	alice := store.add(t, "Alice", "alice@example.com", models.RoleOrganizer)
	alice.Avatar = strPtr("https://img.test/avatars/a.png")
	store.eventImages[alice.ID] = []string{"https://img.test/events/e.png"}

	require.NoError(t, svc.DeleteAccount(context.Background(), actorOf(alice)))
	assert.Equal(t, []string{"https://img.test/avatars/a.png", "https://img.test/events/e.png"}, cleanup.urls)
	_, err := svc.Profile(context.Background(), actorOf(alice))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminOperations(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, fakeLister{}, nil, nil, nil)
	ctx := context.Background()
	admin := actorOf(store.add(t, "Admin", "admin@example.com", models.RoleAdmin))
	bob := store.add(t, "Bob", "bob@example.com", models.RoleUser)

	_, err := svc.SetRole(ctx, admin, bob.ID, models.Role("superuser"))
	assert.ErrorIs(t, err, ErrInvalidRole)
	u, err := svc.SetRole(ctx, admin, bob.ID, models.RoleOrganizer)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOrganizer, u.Role)

	_, err = svc.Unblock(ctx, admin, bob.ID)
	assert.ErrorIs(t, err, ErrNotBlocked)
	u, err = svc.Block(ctx, admin, bob.ID)
	require.NoError(t, err)
	assert.True(t, u.IsBlocked)
	_, err = svc.Block(ctx, admin, bob.ID)
	assert.ErrorIs(t, err, ErrAlreadyBlocked)
	_, err = svc.Block(ctx, admin, admin.ID)
	assert.ErrorIs(t, err, ErrBlockSelf)

	_, err = svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	out, err := svc.List(ctx, pagination.Params{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Total)
	assert.True(t, out.HasMore)
	assert.Len(t, out.Users, 1)
}

func TestHandlerChangePassword(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, fakeLister{}, nil, nil, nil)
	alice := store.add(t, "Alice", "alice@example.com", models.RoleUser)

	r := gin.New()
	r.PUT("/api/users/password", func(c *gin.Context) {
		c.Set(middleware.ContextActor, actorOf(alice))
		c.Next()
	}, NewHandler(svc).ChangePassword)

	put := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/users/password", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := put(`{"current_password":"secret1","new_password":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "new_password must be at least 6 characters")

	w = put(`{"current_password":"nope","new_password":"abcdef"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "current password is incorrect")

	w = put(`{"current_password":"secret1","new_password":"abcdef"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}
