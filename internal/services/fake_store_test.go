package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/authoring"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/faults"
)

// memStore is an in-memory Store for adapter and composer tests.
type memStore struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*authoring.User
	courses map[uuid.UUID]*authoring.AuthoredCourse
	down    bool
	hang    bool
	calls   int
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[uuid.UUID]*authoring.User{},
		courses: map[uuid.UUID]*authoring.AuthoredCourse{},
	}
}

func (m *memStore) setDown(v bool) {
	m.mu.Lock()
	m.down = v
	m.mu.Unlock()
}

func (m *memStore) setHang(v bool) {
	m.mu.Lock()
	m.hang = v
	m.mu.Unlock()
}

func (m *memStore) enter(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	down, hang := m.down, m.hang
	m.mu.Unlock()
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if down {
		return faults.Unavailable("mem", errors.New("connection refused"))
	}
	return nil
}

func (m *memStore) Name() string { return "memory" }

func (m *memStore) Ping(ctx context.Context) error { return m.enter(ctx) }

func (m *memStore) EnsureSchema(context.Context) error { return nil }

func (m *memStore) CreateUser(ctx context.Context, u *authoring.User) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return faults.Conflict("create_user", "username %q taken", u.Username)
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) GetUser(ctx context.Context, id uuid.UUID) (*authoring.User, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, faults.NotFound("get_user", "user %s", id)
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByUsername(ctx context.Context, username string) (*authoring.User, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, faults.NotFound("get_user", "user %q", username)
}

func (m *memStore) CreateCourse(ctx context.Context, c *authoring.AuthoredCourse) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[c.ID]; ok {
		return faults.Conflict("create_course", "course %s exists", c.ID)
	}
	m.courses[c.ID] = c.Clone()
	return nil
}

func (m *memStore) GetCourse(ctx context.Context, id uuid.UUID) (*authoring.AuthoredCourse, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, faults.NotFound("get_course", "course %s", id)
	}
	return c.Clone(), nil
}

func (m *memStore) ListCoursesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*authoring.AuthoredCourse, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*authoring.AuthoredCourse
	for _, c := range m.courses {
		if c.OwnerID == ownerID {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (m *memStore) SearchCoursesByTitle(ctx context.Context, query string, limit int) ([]*authoring.AuthoredCourse, error) {
	if err := m.enter(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = authoring.DefaultTitleSearchLimit
	}
	q := strings.ToLower(query)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*authoring.AuthoredCourse
	for _, c := range m.courses {
		if strings.Contains(strings.ToLower(c.Title), q) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) UpdateCourse(ctx context.Context, c *authoring.AuthoredCourse, expectedVersion int) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.courses[c.ID]
	if !ok {
		return faults.NotFound("update_course", "course %s", c.ID)
	}
	if cur.Version != expectedVersion {
		return faults.Conflict("update_course", "version moved")
	}
	m.courses[c.ID] = c.Clone()
	return nil
}

func (m *memStore) DeleteCourse(ctx context.Context, id uuid.UUID) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[id]; !ok {
		return faults.NotFound("delete_course", "course %s", id)
	}
	delete(m.courses, id)
	return nil
}

func (m *memStore) Close(context.Context) error { return nil }
