package http

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/catalogue/catalogtest"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/catalogue/index"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/catalogue/loader"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/catalogue/search"
	httpH "github.com/Teaching-Knowledge-Graph/TeachingKG/internal/http/handlers"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/observability"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/services"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/vocabulary"
)

type fixedStatus services.Status

func (f fixedStatus) Status() services.Status { return services.Status(f) }

func newTestRouter(t *testing.T, store httpH.StoreStatus) (*gin.Engine, *observability.Metrics) {
	t.Helper()
	return routerFor(t, catalogtest.NTriples, store)
}

func routerFor(t *testing.T, triples string, store httpH.StoreStatus) (*gin.Engine, *observability.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fb, err := loader.Parse(context.Background(), strings.NewReader(triples), loader.Options{Source: "fixture.nt"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	log := logger.Nop()
	svc := search.NewService(index.Build(fb, vocabulary.DefaultLabels()), log)
	m := observability.NewMetrics()
	r := NewRouter(RouterConfig{
		Log:              log,
		Metrics:          m,
		HealthHandler:    httpH.NewHealthHandler(svc, store, "test"),
		CatalogueHandler: httpH.NewCatalogueHandler(log, svc),
	})
	return r, m
}

func get(t *testing.T, r *gin.Engine, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthcheck(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	rec := get(t, r, "/healthcheck")
	if rec.Code != nethttp.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: code=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestStatusReportsStoreAndCatalogue(t *testing.T) {
	r, _ := newTestRouter(t, fixedStatus{Backend: "neo4j", State: services.StateAvailable})
	rec := get(t, r, "/status")
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	var body struct {
		Degraded  bool `json:"degraded"`
		Catalogue struct {
			Statements int `json:"statements"`
			Courses    int `json:"courses"`
		} `json:"catalogue"`
		Store struct {
			Backend string `json:"backend"`
			State   string `json:"state"`
		} `json:"store"`
	}
	decode(t, rec, &body)
	if body.Degraded {
		t.Fatalf("status: expected not degraded, body=%s", rec.Body.String())
	}
	if body.Catalogue.Statements != catalogtest.StatementCount || body.Catalogue.Courses != 4 {
		t.Fatalf("catalogue stats: got=%+v", body.Catalogue)
	}
	if body.Store.Backend != "neo4j" || body.Store.State != string(services.StateAvailable) {
		t.Fatalf("store status: got=%+v", body.Store)
	}
}

func TestStatusWithoutStoreIsDegraded(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	var body struct {
		Degraded bool `json:"degraded"`
		Store    struct {
			State string `json:"state"`
		} `json:"store"`
	}
	decode(t, get(t, r, "/status"), &body)
	if !body.Degraded || body.Store.State != string(services.StateDisabled) {
		t.Fatalf("status: want degraded+disabled got=%+v", body)
	}
}

func TestStatusFlagsSkippedLines(t *testing.T) {
	triples := catalogtest.NTriples + "\n<http://ex.org/broken> \"no predicate\" .\n"
	r, _ := routerFor(t, triples, fixedStatus{Backend: "neo4j", State: services.StateAvailable})
	var body struct {
		Degraded  bool `json:"degraded"`
		Catalogue struct {
			ParseErrors int    `json:"parseErrors"`
			LoadError   string `json:"loadError"`
			Degraded    bool   `json:"degraded"`
		} `json:"catalogue"`
	}
	decode(t, get(t, r, "/status"), &body)
	if !body.Degraded || !body.Catalogue.Degraded {
		t.Fatalf("status: want degraded got=%+v", body)
	}
	if body.Catalogue.ParseErrors != 1 || body.Catalogue.LoadError != "" {
		t.Fatalf("catalogue: want 1 parse error and no load error, got=%+v", body.Catalogue)
	}
}

func TestCatalogueSearch(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	rec := get(t, r, "/api/catalogue/search?q=algebra")
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("search: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Count   int `json:"count"`
		Results []struct {
			IRI string `json:"iri"`
		} `json:"results"`
	}
	decode(t, rec, &body)
	if body.Count != 3 || body.Results[0].IRI != catalogtest.CourseAlgebra {
		t.Fatalf("search: unexpected %s", rec.Body.String())
	}

	decode(t, get(t, r, "/api/catalogue/search?q=statistics&type=any"), &body)
	if body.Count != 2 || body.Results[0].IRI != catalogtest.TopicStatistics {
		t.Fatalf("search any type: unexpected %+v", body)
	}

	decode(t, get(t, r, "/api/catalogue/search?q=%20%20"), &body)
	if body.Count != 0 || body.Results == nil {
		t.Fatalf("blank search: want empty list got=%+v", body)
	}
}

func TestCatalogueSearchRejectsBadLimit(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	rec := get(t, r, "/api/catalogue/search?q=algebra&limit=lots")
	if rec.Code != nethttp.StatusUnprocessableEntity {
		t.Fatalf("bad limit: want=422 got=%d", rec.Code)
	}
	var body struct {
		Error struct {
			Code   string   `json:"code"`
			Fields []string `json:"fields"`
		} `json:"error"`
	}
	decode(t, rec, &body)
	if body.Error.Code != "validation" || len(body.Error.Fields) != 1 || body.Error.Fields[0] != "limit" {
		t.Fatalf("bad limit: unexpected error %+v", body.Error)
	}
}

func TestCatalogueEntity(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	rec := get(t, r, "/api/catalogue/entity?id="+url.QueryEscape(catalogtest.CourseAlgebra))
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("entity: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var detail struct {
		IRI       string `json:"iri"`
		Label     string `json:"label"`
		Relations []any  `json:"relations"`
	}
	decode(t, rec, &detail)
	if detail.IRI != catalogtest.CourseAlgebra || detail.Label != "Algebra" || len(detail.Relations) == 0 {
		t.Fatalf("entity: unexpected %s", rec.Body.String())
	}

	rec = get(t, r, "/api/catalogue/entity?id="+url.QueryEscape(catalogtest.Base+"course/missing"))
	if rec.Code != nethttp.StatusNotFound {
		t.Fatalf("missing entity: want=404 got=%d", rec.Code)
	}
	rec = get(t, r, "/api/catalogue/entity")
	if rec.Code != nethttp.StatusUnprocessableEntity {
		t.Fatalf("no id: want=422 got=%d", rec.Code)
	}
}

func TestCatalogueCourses(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, get(t, r, "/api/catalogue/courses"), &list)
	if list.Count != 4 {
		t.Fatalf("courses: want=4 got=%d", list.Count)
	}

	rec := get(t, r, "/api/catalogue/courses/summary?id="+url.QueryEscape(catalogtest.CourseAlgebra))
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("summary: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var sum struct {
		Name  string `json:"name"`
		Graph struct {
			Nodes []any `json:"nodes"`
		} `json:"graph"`
	}
	decode(t, rec, &sum)
	if sum.Name != "Algebra" || len(sum.Graph.Nodes) != 7 {
		t.Fatalf("summary: unexpected %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	get(t, r, "/api/catalogue/search?q=algebra")
	rec := get(t, r, "/metrics")
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("metrics: want=200 got=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tkg_api_requests_total") {
		t.Fatalf("metrics: missing tkg_api_requests_total")
	}
	rec = get(t, r, "/metrics")
	body := rec.Body.String()
	if !strings.Contains(body, `route="/api/catalogue/search"`) {
		t.Fatalf("metrics: search route not recorded")
	}
	if strings.Contains(body, `route="/metrics"`) {
		t.Fatalf("metrics: scrapes should not be counted")
	}
}
