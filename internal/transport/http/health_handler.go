package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"nftgate/internal/config"
	"nftgate/internal/infrastructure"
	"nftgate/internal/license"
)

// StoreStatus exposes request store counters
type StoreStatus interface {
	Stats() license.StoreStats
}

// OracleStatus exposes the ownership oracle's configuration and breaker state
type OracleStatus interface {
	BreakerState() string
}

// HealthResponse is the body of GET /api/health
type HealthResponse struct {
	Status    string                      `json:"status"`
	Version   string                      `json:"version"`
	Timestamp time.Time                   `json:"timestamp"`
	Requests  license.StoreStats          `json:"requests"`
	Oracle    OracleHealth                `json:"oracle"`
	Runtime   infrastructure.RuntimeStats `json:"runtime"`
}

// OracleHealth describes the ownership oracle
type OracleHealth struct {
	Kind    string `json:"kind"`
	Breaker string `json:"breaker"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	store      StoreStatus
	oracle     OracleStatus
	oracleKind string
	started    time.Time
	logger     *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store StoreStatus, oracle OracleStatus, oracleKind string, started time.Time, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:      store,
		oracle:     oracle,
		oracleKind: oracleKind,
		started:    started,
		logger:     infrastructure.WithComponent(logger, "health_handler"),
	}
}

// HealthCheck handles GET /api/health. An open breaker reports "degraded"
// with a 503 so load balancers can route around the instance.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Version:   config.AppVersion,
		Timestamp: time.Now().UTC(),
		Requests:  h.store.Stats(),
		Oracle: OracleHealth{
			Kind:    h.oracleKind,
			Breaker: h.oracle.BreakerState(),
		},
		Runtime: infrastructure.ReadRuntimeStats(h.started),
	}

	if resp.Oracle.Breaker == "open" {
		resp.Status = "degraded"
		h.logger.WarnContext(r.Context(), "health degraded", slog.String("breaker", resp.Oracle.Breaker))
		render.Status(r, http.StatusServiceUnavailable)
	}

	render.JSON(w, r, resp)
}

// LivenessCheck handles GET /api/health/live
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "alive"})
}
