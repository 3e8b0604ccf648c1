package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/catalogue/search"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/catalogue"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/faults"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/http/response"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/vocabulary"
)

const maxSearchLimit = 200

type CatalogueHandler struct {
	log *logger.Logger
	svc *search.Service
}

func NewCatalogueHandler(log *logger.Logger, svc *search.Service) *CatalogueHandler {
	return &CatalogueHandler{log: log.With("handler", "CatalogueHandler"), svc: svc}
}

// typeAliases lets callers filter by short name instead of a class IRI.
var typeAliases = map[string]string{
	"course":       vocabulary.SchemaCourse,
	"topic":        vocabulary.CoursesTopic,
	"skill":        vocabulary.CoursesSkill,
	"person":       vocabulary.SchemaPerson,
	"organization": vocabulary.SchemaEducationalOrganization,
	"university":   vocabulary.SchemaCollegeOrUniversity,
	"term":         vocabulary.SchemaDefinedTerm,
	"any":          search.AnyType,
	"*":            search.AnyType,
}

func resolveType(raw string) string {
	raw = strings.TrimSpace(raw)
	if v, ok := typeAliases[strings.ToLower(raw)]; ok {
		return v
	}
	return raw
}

type searchPayload struct {
	Query   string             `json:"query"`
	Filters catalogue.Filters  `json:"filters"`
	Count   int                `json:"count"`
	Results []catalogue.Entity `json:"results"`
}

// GET /api/catalogue/search?q=&type=&topic=&limit=
func (h *CatalogueHandler) Search(c *gin.Context) {
	f := catalogue.Filters{
		Type:  resolveType(c.Query("type")),
		Topic: strings.TrimSpace(c.Query("topic")),
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxSearchLimit {
			response.RespondFault(c, faults.Validation("catalogue_search", []string{"limit"}))
			return
		}
		f.Limit = n
	}
	q := c.Query("q")
	results, err := h.svc.Search(c.Request.Context(), q, f)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, searchPayload{Query: q, Filters: f, Count: len(results), Results: results})
}

// GET /api/catalogue/courses
func (h *CatalogueHandler) ListCourses(c *gin.Context) {
	courses, err := h.svc.ListCourses(c.Request.Context())
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, gin.H{"count": len(courses), "courses": courses})
}

// GET /api/catalogue/entity?id=
func (h *CatalogueHandler) Entity(c *gin.Context) {
	id, ok := requireID(c, "catalogue_detail")
	if !ok {
		return
	}
	detail, err := h.svc.Detail(c.Request.Context(), id)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, detail)
}

// GET /api/catalogue/courses/summary?id=
func (h *CatalogueHandler) CourseSummary(c *gin.Context) {
	id, ok := requireID(c, "course_summary")
	if !ok {
		return
	}
	sum, err := h.svc.CourseSummary(c.Request.Context(), id)
	if err != nil {
		response.RespondFault(c, err)
		return
	}
	response.RespondOK(c, sum)
}

// GET /api/catalogue/stats
func (h *CatalogueHandler) Stats(c *gin.Context) {
	response.RespondOK(c, h.svc.Stats())
}

func requireID(c *gin.Context, op string) (string, bool) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		response.RespondFault(c, faults.Validation(op, []string{"id"}))
		return "", false
	}
	return id, true
}
