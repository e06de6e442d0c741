package allocation

import (
	"log/slog"
	"net/http"

	"github.com/TomasB/geoalloc/internal/data"
	"github.com/TomasB/geoalloc/internal/lookup"
	"github.com/gin-gonic/gin"
)

// LookupRequest holds the query string of a lookup.
type LookupRequest struct {
	IP string `form:"ip" binding:"required"`
}

// LookupResponse represents the JSON response for a lookup.
type LookupResponse struct {
	Query       string `json:"query"`
	Found       bool   `json:"found"`
	Network     string `json:"network,omitempty"`
	RangeStart  string `json:"range_start,omitempty"`
	RangeEnd    string `json:"range_end,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	CountryName string `json:"country_name,omitempty"`
	StateCode   string `json:"state_code,omitempty"`
	StateName   string `json:"state_name,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
}

// StatsSource exposes dataset statistics.
type StatsSource interface {
	Stats() data.Stats
}

// Handler serves allocation lookups over HTTP.
type Handler struct {
	locator lookup.Locator
	stats   StatsSource
}

// NewHandler creates a lookup handler. stats may be nil.
func NewHandler(locator lookup.Locator, stats StatsSource) *Handler {
	return &Handler{locator: locator, stats: stats}
}

// Lookup handles GET /api/v1/lookup?ip=
func (h *Handler) Lookup(c *gin.Context) {
	var req LookupRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, LookupResponse{
			Error:     "invalid request: " + err.Error(),
			ErrorKind: lookup.ErrorKindInvalidAddress,
		})
		return
	}

	res := h.locator.Lookup(c.Request.Context(), req.IP)
	slog.Debug("lookup request", "ip", res.Query, "result", res.Kind.String())

	c.JSON(statusFor(res), NewLookupResponse(res))
}

// Stats handles GET /api/v1/stats
func (h *Handler) Stats(c *gin.Context) {
	if h.stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "statistics unavailable"})
		return
	}
	c.JSON(http.StatusOK, h.stats.Stats())
}

// NewLookupResponse converts a lookup result to its JSON form.
func NewLookupResponse(res lookup.Result) LookupResponse {
	resp := LookupResponse{Query: res.Query}
	switch res.Kind {
	case lookup.KindLocated:
		rec := res.Record
		resp.Found = true
		resp.Network = rec.Network
		resp.RangeStart = rec.Start.String()
		resp.RangeEnd = rec.End.String()
		resp.CountryCode = rec.CountryCode
		resp.CountryName = rec.CountryName
		resp.StateCode = rec.StateCode
		resp.StateName = rec.StateName
	case lookup.KindError:
		resp.ErrorKind = res.ErrorKind()
		if resp.ErrorKind == lookup.ErrorKindStore {
			resp.Error = "lookup failed"
		} else {
			resp.Error = res.Err.Error()
		}
	}
	return resp
}

func statusFor(res lookup.Result) int {
	switch res.Kind {
	case lookup.KindLocated:
		return http.StatusOK
	case lookup.KindNotFound:
		return http.StatusNotFound
	}
	if res.ErrorKind() == lookup.ErrorKindStore {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}
