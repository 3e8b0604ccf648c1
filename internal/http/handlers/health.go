package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/catalogue/search"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/catalogue"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/services"
)

// StoreStatus reports the property-store adapter state.
type StoreStatus interface {
	Status() services.Status
}

type HealthHandler struct {
	catalogue *search.Service
	store     StoreStatus
	version   string
	started   time.Time
}

func NewHealthHandler(cat *search.Service, store StoreStatus, version string) *HealthHandler {
	return &HealthHandler{catalogue: cat, store: store, version: version, started: time.Now()}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

type statusPayload struct {
	Version       string          `json:"version,omitempty"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Degraded      bool            `json:"degraded"`
	Catalogue     catalogue.Stats `json:"catalogue"`
	Store         services.Status `json:"store"`
}

// Status always answers 200. Degraded flags a catalogue that failed to load
// or skipped malformed lines, or a store that is not available.
func (h *HealthHandler) Status(c *gin.Context) {
	out := statusPayload{
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Store:         services.Status{Backend: "none", State: services.StateDisabled},
	}
	if h.catalogue != nil {
		out.Catalogue = h.catalogue.Stats()
	}
	if h.store != nil {
		out.Store = h.store.Status()
	}
	out.Degraded = out.Catalogue.Degraded || out.Store.State != services.StateAvailable
	c.JSON(http.StatusOK, out)
}
