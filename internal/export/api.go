package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openclinic-ke/gbvcare/internal/patient"
	"github.com/openclinic-ke/gbvcare/internal/reporting"
	"github.com/openclinic-ke/gbvcare/internal/shared/auth"
	"github.com/openclinic-ke/gbvcare/internal/shared/errors"
	"github.com/openclinic-ke/gbvcare/internal/shared/events"
	"github.com/openclinic-ke/gbvcare/internal/shared/metrics"
	"github.com/openclinic-ke/gbvcare/internal/shared/middleware"
	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

// Handler provides HTTP handlers for report exports. Exports move
// identifiable records off the system, so they are admin-only.
type Handler struct {
	repo *Repository
	bus  events.EventBus
}

// NewHandler creates a new export handler
func NewHandler(repo *Repository, bus events.EventBus) *Handler {
	return &Handler{repo: repo, bus: bus}
}

// Routes registers the export routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(auth.RequireRole(auth.RoleAdmin))
	r.Get("/csv", h.CSV)
	r.Get("/xlsx", h.XLSX)

	return r
}

// CSV streams the flattened register as CSV
func (h *Handler) CSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv")
}

// XLSX streams the register workbook
func (h *Handler) XLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx")
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, format string) {
	q := r.URL.Query()
	window := reporting.Resolve(q.Get("period"), q.Get("from"), q.Get("to"), time.Now())

	// Same filter vocabulary as the report screen. The window owns the
	// time bounds.
	filter := patient.FilterFromQuery(q)
	filter.From, filter.To = "", ""

	ds, err := h.repo.Load(r.Context(), filter, window)
	if err != nil {
		writeError(w, err)
		return
	}

	// Render to a buffer first so a failure mid-file does not leave
	// the client with a truncated download and a 200.
	var buf bytes.Buffer
	switch format {
	case "csv":
		err = WriteCSV(&buf, ds)
	case "xlsx":
		err = WriteXLSX(&buf, ds)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	filename := Filename(format, window, time.Now())

	metrics.RecordExport(format)
	h.publish(r, map[string]any{
		"format":   format,
		"period":   window.Period,
		"filename": filename,
		"rows":     len(ds.Patients),
	})

	contentType := "text/csv"
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// publish emits the export event with the requesting admin attached
func (h *Handler) publish(r *http.Request, data map[string]any) {
	if h.bus == nil {
		return
	}

	actorID := types.ID("")
	if user := auth.GetUser(r.Context()); user != nil {
		actorID = user.ID
	}

	event := events.NewEvent("export.generated", "export", data).
		WithActor(actorID, "staff", middleware.ClientIP(r))

	h.bus.Publish(r.Context(), event)
}

// --- Helpers ---

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
