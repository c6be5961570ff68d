package handlers

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/monolithe-geofix/internal/report"
	"github.com/monolithe-geofix/internal/store"
)

// ExportHandler lists providers still waiting for coordinates.
type ExportHandler struct {
	Store  ProviderStore
	Logger *zap.Logger
}

// MissingResponse is the JSON form of the unresolved list.
type MissingResponse struct {
	Count     int                   `json:"count"`
	Providers []store.AddressRecord `json:"providers"`
}

// ListMissing returns providers with an address but no coordinates, as JSON
// or, with ?format=csv, in the unresolved report layout.
func (h *ExportHandler) ListMissing(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		writeError(w, http.StatusBadRequest, "unsupported format, use 'json' or 'csv'")
		return
	}

	records, err := h.Store.FetchCandidates(r.Context())
	if err != nil {
		h.Logger.Error("candidate query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if format == "json" {
		if records == nil {
			records = []store.AddressRecord{}
		}
		writeJSON(w, http.StatusOK, MissingResponse{Count: len(records), Providers: records})
		return
	}

	filename := fmt.Sprintf("unresolved_%s.csv", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := report.Write(w, report.FromRecords(records)); err != nil {
		h.Logger.Warn("csv export interrupted", zap.Error(err))
	}
}
