package check

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/TomasB/geoalloc/internal/geofence"
	"github.com/TomasB/geoalloc/internal/ipaddr"
	"github.com/TomasB/geoalloc/internal/lookup"
	"github.com/gin-gonic/gin"
)

// CheckRequest represents the JSON body for a country check.
type CheckRequest struct {
	IP               string   `json:"ip" binding:"required"`
	AllowedCountries []string `json:"allowed_countries" binding:"required,min=1"`
}

// CheckResponse represents the JSON response for a country check.
type CheckResponse struct {
	Allowed bool   `json:"allowed"`
	Country string `json:"country"`
	State   string `json:"state,omitempty"`
	Source  string `json:"source,omitempty"`
	Error   string `json:"error"`
}

// Handler manages IP geolocation check endpoints.
type Handler struct {
	checker *geofence.Checker
}

// NewHandler creates a new check handler.
func NewHandler(checker *geofence.Checker) *Handler {
	return &Handler{checker: checker}
}

// Check handles POST /api/v1/check
func (h *Handler) Check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, CheckResponse{
			Error: "invalid request: " + err.Error(),
		})
		return
	}

	slog.Debug("check request received", "ip", req.IP, "allowed_countries", req.AllowedCountries)

	d, err := h.checker.Check(c.Request.Context(), req.IP, req.AllowedCountries)
	switch {
	case errors.Is(err, lookup.ErrAmbiguousInput):
		c.JSON(http.StatusBadRequest, CheckResponse{
			Error: "expected a single IP address, not a subnet",
		})
		return
	case errors.Is(err, ipaddr.ErrInvalidAddress):
		c.JSON(http.StatusBadRequest, CheckResponse{
			Error: "invalid IP address",
		})
		return
	case err != nil:
		slog.Error("country lookup failed", "ip", req.IP, "error", err)
		c.JSON(http.StatusInternalServerError, CheckResponse{
			Error: "lookup failed",
		})
		return
	}

	c.JSON(http.StatusOK, CheckResponse{
		Allowed: d.Allowed,
		Country: d.Location.CountryCode,
		State:   d.Location.StateCode,
		Source:  d.Source,
	})
}
