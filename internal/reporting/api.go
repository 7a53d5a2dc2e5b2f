package reporting

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openclinic-ke/gbvcare/internal/patient"
	"github.com/openclinic-ke/gbvcare/internal/shared/errors"
)

// Handler provides HTTP handlers for reports and the dashboard
type Handler struct {
	repo *Repository
}

// NewHandler creates a new reporting handler
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the reporting routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/reports", h.Report)
	r.Get("/dashboard", h.Dashboard)

	return r
}

// Report builds the aggregate report for the requested window
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window := Resolve(q.Get("period"), q.Get("from"), q.Get("to"), time.Now())

	report, err := h.repo.Build(r.Context(), reportFilter(q), window)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Dashboard builds the landing-page report. Without an explicit
// window it covers the last 30 days.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := time.Now()

	window := Resolve(q.Get("period"), q.Get("from"), q.Get("to"), now)
	if !window.Bounded && q.Get("period") == "" && q.Get("from") == "" && q.Get("to") == "" {
		window = Window{Period: PeriodAll, Start: now.AddDate(0, 0, -30), End: now, Bounded: true}
	}

	report, err := h.repo.Build(r.Context(), reportFilter(q), window)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// reportFilter parses the list filters for a report query. The window
// resolver owns the time bounds, so from/to are stripped here; Resolve
// has already applied its precedence rule to them.
func reportFilter(q url.Values) patient.Filter {
	f := patient.FilterFromQuery(q)
	f.From, f.To = "", ""
	return f
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

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
