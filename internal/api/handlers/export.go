package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-planner/internal/api/middleware"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/snapshot"
)

// maxImportBytes bounds the snapshot body accepted by ImportSnapshot.
const maxImportBytes = 32 << 20

// ExportHandler serves ledger snapshots.
type ExportHandler struct {
	store ledger.Store
	now   func() time.Time
	log   zerolog.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(store ledger.Store, now func() time.Time, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{store: store, now: now, log: log}
}

// Export handles GET /api/export?format=json|csv&legacy_markers=true
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now()

	legacy, err := boolParam(r, "legacy_markers")
	if err != nil {
		writeServiceError(w, h.log, err, "")
		return
	}
	opts := snapshot.EncodeOptions{LegacyMarkers: legacy != nil && *legacy, Indent: true}

	snap, err := snapshot.Export(ctx, h.store, now, opts)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to export ledger")
		return
	}

	var buf bytes.Buffer
	var contentType, ext string
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		err = snapshot.Encode(&buf, snap, opts)
		contentType, ext = "application/json", "json"
	case "csv":
		l, convErr := snap.ToLedger()
		if convErr != nil {
			writeServiceError(w, h.log, convErr, "Failed to export ledger")
			return
		}
		err = snapshot.WriteSpendingCSV(&buf, l.Transactions, l.PlannedPayments)
		contentType, ext = "text/csv", "csv"
	default:
		middleware.WriteError(w, http.StatusBadRequest, "invalid format: expected json or csv")
		return
	}
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to encode export")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, snapshot.ObjectName("", ext, now)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Import handles POST /api/import. The body replaces the whole ledger.
func (h *ExportHandler) Import(w http.ResponseWriter, r *http.Request) {
	snap, err := snapshot.Decode(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := snapshot.Import(r.Context(), h.store, snap)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to import snapshot")
		return
	}

	h.log.Info().
		Int("transactions", report.Transactions).
		Int("planned_payments", report.PlannedPayments).
		Int("unlinked", report.Unlinked).
		Msg("Snapshot imported")
	middleware.WriteJSON(w, http.StatusOK, report)
}
