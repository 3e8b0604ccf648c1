package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/Teaching-Knowledge-Graph/TeachingKG/internal/http/handlers"
	httpMW "github.com/Teaching-Knowledge-Graph/TeachingKG/internal/http/middleware"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/observability"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	HealthHandler    *httpH.HealthHandler
	CatalogueHandler *httpH.CatalogueHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics, "/metrics"))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/status", cfg.HealthHandler.Status)
	}

	// Metrics
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Catalogue (read-only)
		if cfg.CatalogueHandler != nil {
			api.GET("/catalogue/search", cfg.CatalogueHandler.Search)
			api.GET("/catalogue/stats", cfg.CatalogueHandler.Stats)
			api.GET("/catalogue/courses", cfg.CatalogueHandler.ListCourses)
			api.GET("/catalogue/courses/summary", cfg.CatalogueHandler.CourseSummary)
			api.GET("/catalogue/entity", cfg.CatalogueHandler.Entity)
		}
	}

	return r
}
