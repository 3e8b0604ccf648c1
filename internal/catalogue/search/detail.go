package search

import (
	"context"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/catalogue"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/faults"
)

// Detail returns iri with its attributes and relations in both directions.
func (s *Service) Detail(ctx context.Context, iri string) (*catalogue.EntityDetail, error) {
	_, span := s.tracer.Start(ctx, "catalogue.Detail")
	defer span.End()

	key, ok := resolve(iri, s.idx.Has)
	if !ok {
		return nil, faults.NotFound("catalogue_detail", "no catalogue entity %q", strings.TrimSpace(iri))
	}
	span.SetAttributes(attribute.String("catalogue.iri", key))

	e, _ := s.idx.Entity(key)
	rels := s.idx.Relations(key, catalogue.Forward)
	rels = append(rels, s.idx.Relations(key, catalogue.Backward)...)
	if rels == nil {
		rels = []catalogue.Relation{}
	}
	return &catalogue.EntityDetail{Entity: e, Relations: rels}, nil
}

// resolve tries the identifier as given, percent-decoded once and twice, and
// with its path re-encoded, returning the first form accepted by match.
func resolve(raw string, match func(string) bool) (string, bool) {
	for _, v := range identifierVariants(raw) {
		if match(v) {
			return v, true
		}
	}
	return "", false
}

func identifierVariants(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	seen := map[string]struct{}{}
	add := func(v string) {
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	add(raw)
	once, err := url.PathUnescape(raw)
	if err == nil {
		add(once)
		if twice, err := url.PathUnescape(once); err == nil {
			add(twice)
		}
	}
	for _, v := range append([]string(nil), out...) {
		if u, err := url.Parse(v); err == nil && u.Scheme != "" {
			add(u.String())
		}
	}
	return out
}
