package health

import (
	"net/http"

	"github.com/TomasB/geoalloc/internal/data"
	"github.com/gin-gonic/gin"
)

// Checker reports whether the allocation dataset can serve queries.
type Checker interface {
	Ready() error
	Stats() data.Stats
}

// Handler manages health check endpoints
type Handler struct {
	store Checker
}

// NewHandler creates a new health check handler. A nil store is always ready.
func NewHandler(store Checker) *Handler {
	return &Handler{store: store}
}

// Health is the liveness probe endpoint
// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready is the readiness probe endpoint. It fails until a dataset is loaded.
// GET /ready
func (h *Handler) Ready(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	if err := h.store.Ready(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"records": h.store.Stats().Records,
	})
}
