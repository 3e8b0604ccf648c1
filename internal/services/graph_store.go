package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/authoring"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/faults"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/observability"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/ctxutil"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
)

type State string

const (
	StateDisabled   State = "disabled"
	StateConnecting State = "connecting"
	StateAvailable  State = "available"
	StateDegraded   State = "degraded"
)

// Status is a point-in-time report of the adapter.
type Status struct {
	Backend    string    `json:"backend"`
	State      State     `json:"state"`
	LastError  string    `json:"last_error,omitempty"`
	LastCheck  time.Time `json:"last_check,omitempty"`
	LastChange time.Time `json:"last_change,omitempty"`
}

const defaultStoreTimeout = 3 * time.Second

var errNoBackend = errors.New("no property store configured")

type GraphStoreOption func(*GraphStore)

// WithTimeout bounds every store call, connection checks included.
func WithTimeout(d time.Duration) GraphStoreOption {
	return func(g *GraphStore) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithBcryptCost(cost int) GraphStoreOption {
	return func(g *GraphStore) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			g.bcryptCost = cost
		}
	}
}

func WithStoreMetrics(m *observability.Metrics) GraphStoreOption {
	return func(g *GraphStore) { g.metrics = m }
}

// GraphStore guards a Store backend with an availability state machine.
// Calls fail fast while the store is Disabled or Connecting. Timeouts and
// connectivity failures move it to Degraded; the next successful call moves
// it back to Available.
type GraphStore struct {
	backend    Store
	log        *logger.Logger
	metrics    *observability.Metrics
	tracer     trace.Tracer
	timeout    time.Duration
	bcryptCost int

	connMu sync.Mutex

	dummyOnce sync.Once
	dummyHash []byte

	mu         sync.RWMutex
	state      State
	lastErr    error
	lastCheck  time.Time
	lastChange time.Time
}

// NewGraphStore wraps backend. A nil backend yields a permanently Disabled
// adapter.
func NewGraphStore(backend Store, log *logger.Logger, opts ...GraphStoreOption) *GraphStore {
	if log == nil {
		log = logger.Nop()
	}
	g := &GraphStore{
		backend:    backend,
		log:        log.With("service", "GraphStore"),
		tracer:     observability.Tracer(),
		timeout:    defaultStoreTimeout,
		bcryptCost: bcrypt.DefaultCost,
		state:      StateDisabled,
		lastChange: time.Now().UTC(),
	}
	if backend == nil {
		g.lastErr = errNoBackend
	}
	for _, opt := range opts {
		opt(g)
	}
	g.metrics.SetStoreState(string(g.state))
	return g
}

func (g *GraphStore) backendName() string {
	if g.backend == nil {
		return "none"
	}
	return g.backend.Name()
}

// Start pings the backend once. A failed ping leaves the adapter Disabled
// and returns the cause; callers are expected to carry on without the store.
func (g *GraphStore) Start(ctx context.Context) error {
	return g.connect(ctx, "start")
}

// Reconnect re-runs the startup connection check.
func (g *GraphStore) Reconnect(ctx context.Context) error {
	return g.connect(ctx, "reconnect")
}

func (g *GraphStore) connect(ctx context.Context, reason string) error {
	if g.backend == nil {
		return faults.Unavailable("store_"+reason, errNoBackend)
	}
	g.connMu.Lock()
	defer g.connMu.Unlock()

	g.setState(StateConnecting, nil)
	pctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := g.backend.Ping(pctx)
	g.mu.Lock()
	g.lastCheck = time.Now().UTC()
	g.mu.Unlock()
	if err != nil {
		g.setState(StateDisabled, err)
		g.log.Warn("property store unavailable (continuing without it)",
			"backend", g.backendName(), "reason", reason, "error", err)
		return faults.Unavailable("store_"+reason, err)
	}

	if err := g.backend.EnsureSchema(pctx); err != nil {
		g.log.Warn("property store schema init failed (continuing)", "backend", g.backendName(), "error", err)
	}
	g.setState(StateAvailable, nil)
	g.log.Info("property store available", "backend", g.backendName(), "reason", reason)
	return nil
}

func (g *GraphStore) setState(s State, cause error) {
	g.mu.Lock()
	changed := g.state != s
	g.state = s
	if cause != nil {
		g.lastErr = cause
	} else if s == StateAvailable {
		g.lastErr = nil
	}
	if changed {
		g.lastChange = time.Now().UTC()
	}
	g.mu.Unlock()
	if changed {
		g.metrics.SetStoreState(string(s))
	}
}

func (g *GraphStore) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *GraphStore) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	st := Status{
		Backend:    g.backendName(),
		State:      g.state,
		LastCheck:  g.lastCheck,
		LastChange: g.lastChange,
	}
	if g.lastErr != nil {
		st.LastError = g.lastErr.Error()
	}
	return st
}

// Close releases the backend. The adapter is Disabled afterwards.
func (g *GraphStore) Close(ctx context.Context) error {
	if g.backend == nil {
		return nil
	}
	g.setState(StateDisabled, errors.New("store closed"))
	return g.backend.Close(ctx)
}

// do runs fn under the call timeout and folds its error into the state
// machine.
func (g *GraphStore) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := g.tracer.Start(ctx, "store."+op, trace.WithAttributes(attribute.String("store.backend", g.backendName())))
	defer span.End()

	g.mu.RLock()
	state, lastErr := g.state, g.lastErr
	g.mu.RUnlock()
	if state != StateAvailable && state != StateDegraded {
		if lastErr == nil {
			lastErr = fmt.Errorf("store %s", state)
		}
		err := faults.Unavailable(op, lastErr)
		g.metrics.ObserveStoreOp(op, string(faults.CodePersistenceUnavailable), 0)
		span.SetStatus(codes.Error, "store unavailable")
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	start := time.Now()
	err := g.classify(ctx, cctx, op, fn(cctx))
	g.metrics.ObserveStoreOp(op, string(faults.CodeOf(err)), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(faults.CodeOf(err)))
	}
	return err
}

func (g *GraphStore) classify(parent, callCtx context.Context, op string, err error) error {
	if err == nil {
		if g.State() == StateDegraded {
			g.log.Info("property store recovered", "backend", g.backendName(), "op", op)
		}
		g.setState(StateAvailable, nil)
		return nil
	}
	if parent.Err() != nil && errors.Is(err, context.Canceled) {
		// the caller went away; not the store's fault
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded ||
		faults.IsCode(err, faults.CodePersistenceUnavailable) {
		g.setState(StateDegraded, err)
		g.log.Warn("property store call failed",
			append(ctxutil.LogFields(parent), "backend", g.backendName(), "op", op, "error", err)...)
		if faults.IsCode(err, faults.CodePersistenceUnavailable) {
			return err
		}
		return faults.Unavailable(op, err)
	}
	if faults.CodeOf(err) != "" {
		// a well-formed answer from a reachable store
		g.setState(StateAvailable, nil)
		return err
	}
	return faults.Wrap(faults.CodeInternal, op, err)
}

// CreateUser hashes the password and stores the user. Duplicate usernames
// fail with CodeConflict.
func (g *GraphStore) CreateUser(ctx context.Context, in authoring.NewUser) (*authoring.User, error) {
	username := strings.TrimSpace(in.Username)
	var missing []string
	if username == "" {
		missing = append(missing, "username")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = authoring.RoleEducator
	}
	if role != authoring.RoleEducator && role != authoring.RoleAdmin {
		missing = append(missing, "role")
	}
	if len(missing) > 0 {
		return nil, faults.Validation("create_user", missing)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), g.bcryptCost)
	if err != nil {
		return nil, faults.New(faults.CodeValidation, "create_user", "password cannot be hashed", err)
	}
	display := strings.TrimSpace(in.DisplayName)
	if display == "" {
		display = username
	}
	u := &authoring.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: string(hash),
		DisplayName:  display,
		Role:         role,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := g.do(ctx, "create_user", func(ctx context.Context) error {
		return g.backend.CreateUser(ctx, u)
	}); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords are indistinguishable to the caller: both run one bcrypt
// comparison at the configured cost.
func (g *GraphStore) Authenticate(ctx context.Context, username, password string) (*authoring.User, error) {
	var u *authoring.User
	err := g.do(ctx, "authenticate", func(ctx context.Context) error {
		var err error
		u, err = g.backend.GetUserByUsername(ctx, strings.TrimSpace(username))
		return err
	})
	if faults.IsCode(err, faults.CodeNotFound) {
		_ = bcrypt.CompareHashAndPassword(g.dummyPasswordHash(), []byte(password))
		return nil, faults.New(faults.CodeUnauthenticated, "authenticate", "invalid credentials", nil)
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, faults.New(faults.CodeUnauthenticated, "authenticate", "invalid credentials", nil)
	}
	return u, nil
}

// dummyPasswordHash is compared against when the username is unknown.
func (g *GraphStore) dummyPasswordHash() []byte {
	g.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("tkg-no-such-user"), g.bcryptCost)
		if err != nil {
			g.log.Warn("dummy password hash failed", "error", err)
			return
		}
		g.dummyHash = h
	})
	return g.dummyHash
}

func (g *GraphStore) GetUser(ctx context.Context, id uuid.UUID) (*authoring.User, error) {
	var u *authoring.User
	err := g.do(ctx, "get_user", func(ctx context.Context) error {
		var err error
		u, err = g.backend.GetUser(ctx, id)
		return err
	})
	return u, err
}

// CreateCourse stores a new authored course at version 1. Section ids and
// positions are assigned here.
func (g *GraphStore) CreateCourse(ctx context.Context, c *authoring.AuthoredCourse) (*authoring.AuthoredCourse, error) {
	if c == nil {
		return nil, faults.Validation("create_course", []string{"course"})
	}
	next := c.Clone()
	if next.ID == uuid.Nil {
		next.ID = uuid.New()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	next.Version = 1
	next.CreatedAt = now
	next.UpdatedAt = now
	normalizeSections(next)

	if err := g.do(ctx, "create_course", func(ctx context.Context) error {
		return g.backend.CreateCourse(ctx, next)
	}); err != nil {
		return nil, err
	}
	return next, nil
}

func (g *GraphStore) GetCourse(ctx context.Context, id uuid.UUID) (*authoring.AuthoredCourse, error) {
	var c *authoring.AuthoredCourse
	err := g.do(ctx, "get_course", func(ctx context.Context) error {
		var err error
		c, err = g.backend.GetCourse(ctx, id)
		return err
	})
	return c, err
}

func (g *GraphStore) ListCoursesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*authoring.AuthoredCourse, error) {
	var out []*authoring.AuthoredCourse
	err := g.do(ctx, "list_courses", func(ctx context.Context) error {
		var err error
		out, err = g.backend.ListCoursesByOwner(ctx, ownerID)
		return err
	})
	return out, err
}

// SearchCoursesByTitle finds authored courses with similar titles. An empty
// query fails validation.
func (g *GraphStore) SearchCoursesByTitle(ctx context.Context, query string, limit int) ([]*authoring.AuthoredCourse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, faults.Validation("search_courses", []string{"query"})
	}
	var out []*authoring.AuthoredCourse
	err := g.do(ctx, "search_courses", func(ctx context.Context) error {
		var err error
		out, err = g.backend.SearchCoursesByTitle(ctx, query, limit)
		return err
	})
	return out, err
}

// UpdateCourse saves c on behalf of actorID. Only the owner may update, and
// c.Version must match the stored version.
func (g *GraphStore) UpdateCourse(ctx context.Context, actorID uuid.UUID, c *authoring.AuthoredCourse) (*authoring.AuthoredCourse, error) {
	if c == nil {
		return nil, faults.Validation("update_course", []string{"course"})
	}
	current, err := g.GetCourse(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if current.OwnerID != actorID {
		return nil, faults.New(faults.CodeForbidden, "update_course", "only the owner may edit this course", nil)
	}
	if c.Version != current.Version {
		return nil, faults.Conflict("update_course", "course %s is at version %d, update was based on %d", c.ID, current.Version, c.Version)
	}

	next := c.Clone()
	next.OwnerID = current.OwnerID
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	next.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	normalizeSections(next)

	if err := g.do(ctx, "update_course", func(ctx context.Context) error {
		return g.backend.UpdateCourse(ctx, next, current.Version)
	}); err != nil {
		return nil, err
	}
	return next, nil
}

// DeleteCourse removes a course. Owners and admins may delete.
func (g *GraphStore) DeleteCourse(ctx context.Context, actorID, courseID uuid.UUID) error {
	current, err := g.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if current.OwnerID != actorID {
		actor, err := g.GetUser(ctx, actorID)
		if err != nil && !faults.IsCode(err, faults.CodeNotFound) {
			return err
		}
		if !actor.IsAdmin() {
			return faults.New(faults.CodeForbidden, "delete_course", "only the owner or an admin may delete this course", nil)
		}
	}
	return g.do(ctx, "delete_course", func(ctx context.Context) error {
		return g.backend.DeleteCourse(ctx, courseID)
	})
}

func normalizeSections(c *authoring.AuthoredCourse) {
	for i := range c.Sections {
		s := &c.Sections[i]
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.CourseID = c.ID
		s.Position = i
		s.Heading = strings.TrimSpace(s.Heading)
		s.RefIRI = strings.TrimSpace(s.RefIRI)
	}
}
