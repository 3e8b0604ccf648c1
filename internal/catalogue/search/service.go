// Package search answers catalogue queries over a built Index: ranked
// search, entity detail, course listing and course summaries.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/catalogue/index"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/catalogue"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/observability"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/ctxutil"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/vocabulary"
)

// AnyType as Filters.Type searches every entity instead of one class.
const AnyType = "*"

// Cache stores ranked result IRIs. Implementations must be safe for
// concurrent use; errors are logged and otherwise ignored.
type Cache interface {
	Get(ctx context.Context, key string) ([]string, bool, error)
	Set(ctx context.Context, key string, iris []string) error
}

type Option func(*Service)

func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

type Service struct {
	idx     *index.Index
	log     *logger.Logger
	cache   Cache
	metrics *observability.Metrics
	tracer  trace.Tracer
}

func NewService(idx *index.Index, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		idx:    idx,
		log:    log.With("service", "CatalogueSearch"),
		tracer: observability.Tracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Index() *index.Index { return s.idx }

// Stats describes the catalogue the service reads from.
func (s *Service) Stats() catalogue.Stats { return s.idx.Stats() }

// Search ranks entities of Filters.Type (courses by default) against query.
// Exact title matches come first, then title substrings, then description
// substrings. Ties keep index order. A blank query returns no results.
func (s *Service) Search(ctx context.Context, query string, f catalogue.Filters) ([]catalogue.Entity, error) {
	ctx, span := s.tracer.Start(ctx, "catalogue.Search")
	defer span.End()
	start := time.Now()

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		s.metrics.ObserveSearch("empty_query", time.Since(start))
		return []catalogue.Entity{}, nil
	}
	if f.Type == "" {
		f.Type = vocabulary.SchemaCourse
	}
	if f.Limit < 0 {
		f.Limit = 0
	}
	span.SetAttributes(
		attribute.String("search.type", f.Type),
		attribute.Bool("search.topic_filter", f.Topic != ""),
	)

	key := s.cacheKey(q, f)
	if hit, ok := s.cached(ctx, key); ok {
		span.SetAttributes(attribute.Bool("search.cache_hit", true), attribute.Int("search.results", len(hit)))
		s.metrics.ObserveSearch("cache_hit", time.Since(start))
		return hit, nil
	}

	ranked := s.rank(q, f)
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, ranked); err != nil {
			s.log.Warn("search cache write failed (continuing)", append(ctxutil.LogFields(ctx), "error", err)...)
		}
	}

	out := make([]catalogue.Entity, 0, len(ranked))
	for _, iri := range ranked {
		if e, ok := s.idx.Entity(iri); ok {
			out = append(out, e)
		}
	}
	span.SetAttributes(attribute.Int("search.results", len(out)))
	s.metrics.ObserveSearch("ok", time.Since(start))
	return out, nil
}

func (s *Service) rank(q string, f catalogue.Filters) []string {
	var candidates []string
	if f.Type == AnyType {
		candidates = s.idx.EntityIRIs()
	} else {
		candidates = s.idx.EntityIRIsOfType(f.Type)
	}

	var onTopic map[string]struct{}
	if topic := strings.TrimSpace(f.Topic); topic != "" {
		onTopic = map[string]struct{}{}
		for _, e := range s.idx.RelatedTo(topic, "", catalogue.Backward) {
			onTopic[e.IRI] = struct{}{}
		}
	}

	var exact, inTitle, inDescription []string
	for _, iri := range candidates {
		if onTopic != nil {
			if _, ok := onTopic[iri]; !ok {
				continue
			}
		}
		title := strings.ToLower(s.idx.Label(iri))
		switch {
		case title == q:
			exact = append(exact, iri)
		case strings.Contains(title, q):
			inTitle = append(inTitle, iri)
		case s.descriptionContains(iri, q):
			inDescription = append(inDescription, iri)
		}
	}

	out := make([]string, 0, len(exact)+len(inTitle)+len(inDescription))
	out = append(out, exact...)
	out = append(out, inTitle...)
	out = append(out, inDescription...)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func (s *Service) descriptionContains(iri, q string) bool {
	for _, o := range s.idx.Objects(iri, vocabulary.SchemaDescription) {
		if o.IsLiteral() && strings.Contains(strings.ToLower(o.Value), q) {
			return true
		}
	}
	return false
}

func (s *Service) cached(ctx context.Context, key string) ([]catalogue.Entity, bool) {
	if s.cache == nil {
		return nil, false
	}
	ranked, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.metrics.IncCacheLookup("error")
		s.log.Warn("search cache read failed (continuing)", append(ctxutil.LogFields(ctx), "error", err)...)
		return nil, false
	}
	if !ok {
		s.metrics.IncCacheLookup("miss")
		return nil, false
	}
	out := make([]catalogue.Entity, 0, len(ranked))
	for _, iri := range ranked {
		e, found := s.idx.Entity(iri)
		if !found {
			// entry from another catalogue; recompute
			s.metrics.IncCacheLookup("stale")
			return nil, false
		}
		out = append(out, e)
	}
	s.metrics.IncCacheLookup("hit")
	return out, true
}

// cacheKey namespaces entries by catalogue fingerprint so a reload never
// serves results from an older file.
func (s *Service) cacheKey(q string, f catalogue.Filters) string {
	fp := s.idx.Fingerprint()
	if len(fp) > 16 {
		fp = fp[:16]
	}
	h := sha256.Sum256([]byte(q + "\x00" + f.Type + "\x00" + strings.TrimSpace(f.Topic) + "\x00" + strconv.Itoa(f.Limit)))
	return "search:" + fp + ":" + hex.EncodeToString(h[:16])
}
