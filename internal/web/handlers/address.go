package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/monolithe-geofix/internal/normalize"
	"github.com/monolithe-geofix/internal/resolver"
)

// AddressResolver turns a raw address into coordinates.
type AddressResolver interface {
	Resolve(ctx context.Context, raw string) resolver.ResolutionResult
}

// AddressHandler exposes the cleaner and the resolver for manual checks.
type AddressHandler struct {
	Resolver AddressResolver
	Debug    bool

	// mu keeps resolutions one at a time so the geocoder pacing holds
	// across concurrent requests.
	mu sync.Mutex
}

// CleanResponse shows every step's output alongside the final variants.
type CleanResponse struct {
	normalize.Variants
	Steps []normalize.StepTrace `json:"steps"`
}

// Clean returns the query variants derived from ?address=.
func (h *AddressHandler) Clean(w http.ResponseWriter, r *http.Request) {
	raw, ok := addressParam(w, r)
	if !ok {
		return
	}

	resp := CleanResponse{Variants: normalize.BuildVariants(raw)}
	_, resp.Steps = normalize.Trace(raw)
	writeJSON(w, http.StatusOK, resp)
}

// Resolve runs the multi-pass resolver on ?address=.
func (h *AddressHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	raw, ok := addressParam(w, r)
	if !ok {
		return
	}

	h.mu.Lock()
	res := h.Resolver.Resolve(r.Context(), raw)
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, res)
}

func addressParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.URL.Query().Get("address")
	if strings.TrimSpace(raw) == "" {
		writeError(w, http.StatusBadRequest, "address query parameter is required")
		return "", false
	}
	return raw, true
}
