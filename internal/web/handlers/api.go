package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/monolithe-geofix/internal/store"
)

// ProviderStore is the read side of the provider table.
type ProviderStore interface {
	FetchCandidates(ctx context.Context) ([]store.AddressRecord, error)
	Stats(ctx context.Context) (store.Stats, error)
}

// APIHandler handles general API endpoints
type APIHandler struct {
	Store  ProviderStore
	Logger *zap.Logger
}

// StatsResponse represents provider coordinate coverage.
type StatsResponse struct {
	store.Stats
	CoverageRate float64 `json:"coverage_rate"`
}

// GetHealth reports liveness.
func (h *APIHandler) GetHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// GetStats returns how many providers have coordinates.
func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Store.Stats(r.Context())
	if err != nil {
		h.Logger.Error("stats query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	resp := StatsResponse{Stats: st}
	if st.Providers > 0 {
		resp.CoverageRate = float64(st.WithCoordinates) / float64(st.Providers) * 100
	}
	writeJSON(w, http.StatusOK, resp)
}
