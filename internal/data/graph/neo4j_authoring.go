package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/authoring"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/faults"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/neo4jdb"
)

// AuthoringStore keeps users and authored courses in Neo4j:
//
//	(:User)-[:CREATED]->(:AuthoredCourse)-[:HAS_SECTION {position}]->(:Section)
//	(:Section)-[:CITES {kind}]->(:CatalogueRef {iri})
//
// Catalogue references are weak: the CatalogueRef node only carries the IRI.
type AuthoringStore struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewAuthoringStore(client *neo4jdb.Client, log *logger.Logger) *AuthoringStore {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthoringStore{client: client, log: log.With("repo", "Neo4jAuthoringStore")}
}

func (s *AuthoringStore) Name() string { return "neo4j" }

func (s *AuthoringStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return faults.Unavailable("neo4j_ping", errors.New("neo4j client not configured"))
	}
	if err := s.client.Verify(ctx); err != nil {
		return faults.Unavailable("neo4j_ping", err)
	}
	return nil
}

var authoringConstraints = []string{
	`CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`,
	`CREATE CONSTRAINT user_username_unique IF NOT EXISTS FOR (u:User) REQUIRE u.username IS UNIQUE`,
	`CREATE CONSTRAINT authored_course_id_unique IF NOT EXISTS FOR (c:AuthoredCourse) REQUIRE c.id IS UNIQUE`,
	`CREATE CONSTRAINT section_id_unique IF NOT EXISTS FOR (s:Section) REQUIRE s.id IS UNIQUE`,
	`CREATE CONSTRAINT catalogue_ref_iri_unique IF NOT EXISTS FOR (r:CatalogueRef) REQUIRE r.iri IS UNIQUE`,
}

// EnsureSchema creates uniqueness constraints. Failures are logged and
// skipped.
func (s *AuthoringStore) EnsureSchema(ctx context.Context) error {
	if s.client == nil || s.client.Driver == nil {
		return nil
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	for _, q := range authoringConstraints {
		if res, err := session.Run(ctx, q, nil); err != nil {
			s.log.Warn("neo4j schema init failed (continuing)", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}
	return nil
}

func (s *AuthoringStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Close(ctx)
}

func (s *AuthoringStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.client.Database,
	})
}

func (s *AuthoringStore) ready(op string) error {
	if s.client == nil || s.client.Driver == nil {
		return faults.Unavailable(op, errors.New("neo4j client not configured"))
	}
	return nil
}

func (s *AuthoringStore) CreateUser(ctx context.Context, u *authoring.User) error {
	const op = "neo4j_create_user"
	if err := s.ready(op); err != nil {
		return err
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
OPTIONAL MATCH (existing:User {username: $username})
WITH existing WHERE existing IS NULL
CREATE (u:User)
SET u = $props
RETURN u.id AS id
`, map[string]any{"username": u.Username, "props": userProps(u)})
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, faults.Conflict(op, "username %q is taken", u.Username)
		}
		return nil, nil
	})
	return mapNeo4jErr(op, err)
}

func (s *AuthoringStore) GetUser(ctx context.Context, id uuid.UUID) (*authoring.User, error) {
	return s.getUser(ctx, "neo4j_get_user", `MATCH (u:User {id: $key}) RETURN u`, id.String())
}

func (s *AuthoringStore) GetUserByUsername(ctx context.Context, username string) (*authoring.User, error) {
	return s.getUser(ctx, "neo4j_get_user_by_username", `MATCH (u:User {username: $key}) RETURN u`, username)
}

func (s *AuthoringStore) getUser(ctx context.Context, op, query, key string) (*authoring.User, error) {
	if err := s.ready(op); err != nil {
		return nil, err
	}
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"key": key})
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, nil
		}
		node, err := recordNode(recs[0], "u")
		if err != nil {
			return nil, err
		}
		return userFromProps(node.Props)
	})
	if err != nil {
		return nil, mapNeo4jErr(op, err)
	}
	u, _ := out.(*authoring.User)
	if u == nil {
		return nil, faults.NotFound(op, "user %q not found", key)
	}
	return u, nil
}

func (s *AuthoringStore) CreateCourse(ctx context.Context, c *authoring.AuthoredCourse) error {
	const op = "neo4j_create_course"
	if err := s.ready(op); err != nil {
		return err
	}
	props, err := courseProps(c)
	if err != nil {
		return faults.Wrap(faults.CodeInternal, op, err)
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
CREATE (c:AuthoredCourse)
SET c = $course
WITH c
OPTIONAL MATCH (u:User {id: $owner_id})
FOREACH (_ IN CASE WHEN u IS NULL THEN [] ELSE [1] END | MERGE (u)-[:CREATED]->(c))
`, map[string]any{"course": props, "owner_id": c.OwnerID.String()})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, writeSections(ctx, tx, c)
	})
	return mapNeo4jErr(op, err)
}

func writeSections(ctx context.Context, tx neo4j.ManagedTransaction, c *authoring.AuthoredCourse) error {
	if len(c.Sections) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(c.Sections))
	refs := make([]map[string]any, 0, len(c.Sections))
	for _, sec := range c.Sections {
		rows = append(rows, sectionProps(sec))
		if iri := strings.TrimSpace(sec.RefIRI); iri != "" {
			refs = append(refs, map[string]any{
				"section_id": sec.ID.String(),
				"iri":        iri,
				"kind":       string(sec.RefKind),
			})
		}
	}
	res, err := tx.Run(ctx, `
MATCH (c:AuthoredCourse {id: $course_id})
UNWIND $rows AS row
CREATE (s:Section)
SET s = row
CREATE (c)-[:HAS_SECTION {position: row.position}]->(s)
`, map[string]any{"course_id": c.ID.String(), "rows": rows})
	if err != nil {
		return err
	}
	if _, err := res.Consume(ctx); err != nil {
		return err
	}
	if len(refs) == 0 {
		return nil
	}
	res, err = tx.Run(ctx, `
UNWIND $refs AS r
MATCH (s:Section {id: r.section_id})
MERGE (ref:CatalogueRef {iri: r.iri})
CREATE (s)-[:CITES {kind: r.kind}]->(ref)
`, map[string]any{"refs": refs})
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

const courseWithSections = `
OPTIONAL MATCH (c)-[h:HAS_SECTION]->(s:Section)
WITH c, h, s ORDER BY h.position
WITH c, collect(s) AS sections
`

func (s *AuthoringStore) GetCourse(ctx context.Context, id uuid.UUID) (*authoring.AuthoredCourse, error) {
	const op = "neo4j_get_course"
	courses, err := s.readCourses(ctx, op,
		`MATCH (c:AuthoredCourse {id: $id})`+courseWithSections+`RETURN c, sections`,
		map[string]any{"id": id.String()})
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return nil, faults.NotFound(op, "course %s not found", id)
	}
	return courses[0], nil
}

func (s *AuthoringStore) ListCoursesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*authoring.AuthoredCourse, error) {
	return s.readCourses(ctx, "neo4j_list_courses",
		`MATCH (c:AuthoredCourse {owner_id: $owner_id})`+courseWithSections+`RETURN c, sections ORDER BY c.created_at, c.id`,
		map[string]any{"owner_id": ownerID.String()})
}

// SearchCoursesByTitle matches authored course titles containing query,
// ignoring case, newest first.
func (s *AuthoringStore) SearchCoursesByTitle(ctx context.Context, query string, limit int) ([]*authoring.AuthoredCourse, error) {
	if limit <= 0 {
		limit = authoring.DefaultTitleSearchLimit
	}
	return s.readCourses(ctx, "neo4j_search_courses",
		`MATCH (c:AuthoredCourse) WHERE toLower(c.title) CONTAINS toLower($q)
WITH c ORDER BY c.created_at DESC, c.id LIMIT $limit`+courseWithSections+`RETURN c, sections ORDER BY c.created_at DESC, c.id`,
		map[string]any{"q": strings.TrimSpace(query), "limit": int64(limit)})
}

func (s *AuthoringStore) readCourses(ctx context.Context, op, query string, params map[string]any) ([]*authoring.AuthoredCourse, error) {
	if err := s.ready(op); err != nil {
		return nil, err
	}
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		courses := make([]*authoring.AuthoredCourse, 0, len(recs))
		for _, rec := range recs {
			c, err := courseFromRecord(rec)
			if err != nil {
				return nil, err
			}
			courses = append(courses, c)
		}
		return courses, nil
	})
	if err != nil {
		return nil, mapNeo4jErr(op, err)
	}
	courses, _ := out.([]*authoring.AuthoredCourse)
	return courses, nil
}

func (s *AuthoringStore) UpdateCourse(ctx context.Context, c *authoring.AuthoredCourse, expectedVersion int) error {
	const op = "neo4j_update_course"
	if err := s.ready(op); err != nil {
		return err
	}
	props, err := courseProps(c)
	if err != nil {
		return faults.Wrap(faults.CodeInternal, op, err)
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:AuthoredCourse {id: $id})
WITH c, c.version = $expected AS ok
FOREACH (_ IN CASE WHEN ok THEN [1] ELSE [] END | SET c = $course)
RETURN ok
`, map[string]any{"id": c.ID.String(), "expected": int64(expectedVersion), "course": props})
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, faults.NotFound(op, "course %s not found", c.ID)
		}
		if ok, _ := recs[0].Get("ok"); ok != true {
			return nil, faults.Conflict(op, "course %s changed since version %d", c.ID, expectedVersion)
		}

		res, err = tx.Run(ctx, `
MATCH (:AuthoredCourse {id: $id})-[:HAS_SECTION]->(s:Section)
DETACH DELETE s
`, map[string]any{"id": c.ID.String()})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, writeSections(ctx, tx, c)
	})
	return mapNeo4jErr(op, err)
}

func (s *AuthoringStore) DeleteCourse(ctx context.Context, id uuid.UUID) error {
	const op = "neo4j_delete_course"
	if err := s.ready(op); err != nil {
		return err
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:AuthoredCourse {id: $id})
OPTIONAL MATCH (c)-[:HAS_SECTION]->(s:Section)
WITH c, collect(s) AS sections
FOREACH (x IN sections | DETACH DELETE x)
DETACH DELETE c
RETURN 1 AS deleted
`, map[string]any{"id": id.String()})
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, faults.NotFound(op, "course %s not found", id)
		}
		return nil, nil
	})
	return mapNeo4jErr(op, err)
}

// mapNeo4jErr folds driver errors into the faults taxonomy.
func mapNeo4jErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if faults.CodeOf(err) != "" {
		return err
	}
	if neo4j.IsConnectivityError(err) || errors.Is(err, context.DeadlineExceeded) {
		return faults.Unavailable(op, err)
	}
	var nerr *neo4j.Neo4jError
	if errors.As(err, &nerr) {
		switch {
		case nerr.Code == "Neo.ClientError.Schema.ConstraintValidationFailed":
			return faults.New(faults.CodeConflict, op, nerr.Msg, err)
		case strings.HasPrefix(nerr.Code, "Neo.TransientError."):
			return faults.Unavailable(op, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func recordNode(rec *neo4j.Record, key string) (neo4j.Node, error) {
	raw, ok := rec.Get(key)
	if !ok {
		return neo4j.Node{}, fmt.Errorf("record has no %q", key)
	}
	node, ok := raw.(neo4j.Node)
	if !ok {
		return neo4j.Node{}, fmt.Errorf("%q is %T, not a node", key, raw)
	}
	return node, nil
}

func courseFromRecord(rec *neo4j.Record) (*authoring.AuthoredCourse, error) {
	node, err := recordNode(rec, "c")
	if err != nil {
		return nil, err
	}
	c, err := courseFromProps(node.Props)
	if err != nil {
		return nil, err
	}
	raw, _ := rec.Get("sections")
	list, _ := raw.([]any)
	for _, item := range list {
		sn, ok := item.(neo4j.Node)
		if !ok {
			continue
		}
		sec, err := sectionFromProps(sn.Props)
		if err != nil {
			return nil, err
		}
		c.Sections = append(c.Sections, sec)
	}
	sort.SliceStable(c.Sections, func(i, j int) bool { return c.Sections[i].Position < c.Sections[j].Position })
	return c, nil
}

func userProps(u *authoring.User) map[string]any {
	return map[string]any{
		"id":            u.ID.String(),
		"username":      u.Username,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"display_name":  u.DisplayName,
		"role":          u.Role,
		"created_at":    formatTime(u.CreatedAt),
	}
}

func userFromProps(p map[string]any) (*authoring.User, error) {
	id, err := propUUID(p, "id")
	if err != nil {
		return nil, err
	}
	return &authoring.User{
		ID:           id,
		Username:     propString(p, "username"),
		Email:        propString(p, "email"),
		PasswordHash: propString(p, "password_hash"),
		DisplayName:  propString(p, "display_name"),
		Role:         propString(p, "role"),
		CreatedAt:    propTime(p, "created_at"),
	}, nil
}

func courseProps(c *authoring.AuthoredCourse) (map[string]any, error) {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	props := map[string]any{
		"id":            c.ID.String(),
		"owner_id":      c.OwnerID.String(),
		"title":         c.Title,
		"description":   c.Description,
		"metadata_json": string(meta),
		"version":       int64(c.Version),
		"created_at":    formatTime(c.CreatedAt),
		"updated_at":    formatTime(c.UpdatedAt),
	}
	lists := []struct {
		key string
		n   int
		v   any
	}{
		{"snapshots_json", len(c.Snapshots), c.Snapshots},
		{"facilitators_json", len(c.Facilitators), c.Facilitators},
		{"educational_resources_json", len(c.EducationalResources), c.EducationalResources},
		{"additional_resources_json", len(c.AdditionalResources), c.AdditionalResources},
	}
	for _, l := range lists {
		props[l.key] = "[]"
		if l.n == 0 {
			continue
		}
		raw, err := json.Marshal(l.v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", strings.TrimSuffix(l.key, "_json"), err)
		}
		props[l.key] = string(raw)
	}
	return props, nil
}

func courseFromProps(p map[string]any) (*authoring.AuthoredCourse, error) {
	id, err := propUUID(p, "id")
	if err != nil {
		return nil, err
	}
	owner, err := propUUID(p, "owner_id")
	if err != nil {
		return nil, err
	}
	c := &authoring.AuthoredCourse{
		ID:          id,
		OwnerID:     owner,
		Title:       propString(p, "title"),
		Description: propString(p, "description"),
		Version:     propInt(p, "version"),
		CreatedAt:   propTime(p, "created_at"),
		UpdatedAt:   propTime(p, "updated_at"),
	}
	targets := []struct {
		key string
		dst any
	}{
		{"metadata_json", &c.Metadata},
		{"snapshots_json", &c.Snapshots},
		{"facilitators_json", &c.Facilitators},
		{"educational_resources_json", &c.EducationalResources},
		{"additional_resources_json", &c.AdditionalResources},
	}
	for _, t := range targets {
		raw := propString(p, t.key)
		if raw == "" || raw == "[]" {
			continue
		}
		if err := json.Unmarshal([]byte(raw), t.dst); err != nil {
			return nil, fmt.Errorf("decode %s of course %s: %w", strings.TrimSuffix(t.key, "_json"), id, err)
		}
	}
	return c, nil
}

func sectionProps(s authoring.Section) map[string]any {
	return map[string]any{
		"id":        s.ID.String(),
		"course_id": s.CourseID.String(),
		"position":  int64(s.Position),
		"heading":   s.Heading,
		"ref_kind":  string(s.RefKind),
		"ref_iri":   s.RefIRI,
		"body":      s.Body,
	}
}

func sectionFromProps(p map[string]any) (authoring.Section, error) {
	id, err := propUUID(p, "id")
	if err != nil {
		return authoring.Section{}, err
	}
	courseID, _ := propUUID(p, "course_id")
	return authoring.Section{
		ID:       id,
		CourseID: courseID,
		Position: propInt(p, "position"),
		Heading:  propString(p, "heading"),
		RefKind:  authoring.RefKind(propString(p, "ref_kind")),
		RefIRI:   propString(p, "ref_iri"),
		Body:     propString(p, "body"),
	}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func propString(p map[string]any, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func propInt(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func propTime(p map[string]any, key string) time.Time {
	raw := propString(p, key)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func propUUID(p map[string]any, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(propString(p, key))
	if err != nil {
		return uuid.Nil, fmt.Errorf("property %q: %w", key, err)
	}
	return id, nil
}
