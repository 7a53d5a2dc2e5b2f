package followup

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openclinic-ke/gbvcare/internal/shared/auth"
	"github.com/openclinic-ke/gbvcare/internal/shared/errors"
	"github.com/openclinic-ke/gbvcare/internal/shared/events"
	"github.com/openclinic-ke/gbvcare/internal/shared/metrics"
	"github.com/openclinic-ke/gbvcare/internal/shared/middleware"
	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

// Handler provides HTTP handlers for the follow-up module
type Handler struct {
	repo *Repository
	bus  events.EventBus
}

// NewHandler creates a new follow-up handler
func NewHandler(repo *Repository, bus events.EventBus) *Handler {
	return &Handler{repo: repo, bus: bus}
}

// PatientRoutes registers the patient-scoped follow-up routes. The
// caller mounts them under the patient resource.
func (h *Handler) PatientRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListByPatient)
	r.Post("/", h.Record)
	r.Get("/plan", h.Plan)

	return r
}

// Routes registers the record-scoped follow-up routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/{followUpID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.With(auth.RequireRole(auth.RoleAdmin)).Delete("/", h.Delete)
	})

	return r
}

// ListByPatient lists a patient's follow-ups in schedule order
func (h *Handler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	followUps, err := h.repo.ListByPatient(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": followUps})
}

// Plan returns the remaining schedule slots with due dates
func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	patientID, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	plan, err := h.repo.Plan(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

// Record records a follow-up visit in an open schedule slot
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	patientID, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	recordedBy := ""
	if user := auth.GetUser(r.Context()); user != nil {
		recordedBy = user.Username
	}

	fu, err := req.FollowUp(patientID, recordedBy)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.repo.Create(r.Context(), fu); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordFollowUp(string(fu.Type))
	h.publish(r, "followup.recorded", map[string]any{
		"follow_up_id":  fu.ID,
		"patient_id":    patientID,
		"followup_type": fu.Type,
	})

	writeJSON(w, http.StatusCreated, fu)
}

// Get gets a follow-up by ID
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "followUpID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid follow-up ID"))
		return
	}

	fu, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, fu)
}

// Update updates a follow-up visit
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "followUpID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid follow-up ID"))
		return
	}

	fu, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	// The schedule slot is fixed; re-submitting with a different one
	// is a mistake worth flagging.
	if req.Type != "" && Type(req.Type) != fu.Type {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"followup_type": "followup_type cannot be changed; delete and re-record instead",
		}))
		return
	}

	applyRequest(fu, &req)

	if err := h.repo.Update(r.Context(), fu); err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, "followup.updated", map[string]any{
		"follow_up_id":  fu.ID,
		"patient_id":    fu.PatientID,
		"followup_type": fu.Type,
	})

	writeJSON(w, http.StatusOK, fu)
}

// applyRequest overwrites the record with the re-submitted form. The
// form always posts every field, so this is a full replace apart from
// identity and the schedule slot.
func applyRequest(fu *FollowUp, req *Request) {
	if req.ReturnedAt != "" {
		if ts, err := types.ParseTimestamp(req.ReturnedAt); err == nil {
			fu.ReturnedAt = types.FormatTimestamp(ts)
		} else {
			fu.ReturnedAt = req.ReturnedAt
		}
	}
	if req.NextAppointment != "" {
		if ts, err := types.ParseTimestamp(req.NextAppointment); err == nil {
			fu.NextAppointment = types.FormatTimestamp(ts)
		} else {
			fu.NextAppointment = req.NextAppointment
		}
	}

	fu.TraumaCounseling = types.ParseTriState(req.TraumaCounseling)
	fu.AdherenceCounseling = types.ParseTriState(req.AdherenceCounseling)
	fu.PEPRefill = types.ParseTriState(req.PEPRefill)
	fu.PEPCompletion = types.ParseTriState(req.PEPCompletion)
	fu.HIVTest = types.ParseTriState(req.HIVTest)
	fu.PregnancyTest = types.ParseTriState(req.PregnancyTest)
	fu.HepBTest = types.ParseTriState(req.HepBTest)
	fu.SyphilisTest = types.ParseTriState(req.SyphilisTest)
	fu.Hb = req.Hb
	fu.ALT = req.ALT
	fu.TTGiven = types.ParseTriState(req.TTGiven)
	fu.Referral = req.Referral
	fu.Notes = req.Notes
}

// Delete removes a follow-up, reopening its schedule slot
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "followUpID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid follow-up ID"))
		return
	}

	fu, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, "followup.deleted", map[string]any{
		"follow_up_id":  fu.ID,
		"patient_id":    fu.PatientID,
		"followup_type": fu.Type,
	})

	w.WriteHeader(http.StatusNoContent)
}

// publish emits a domain event with the request's actor attached
func (h *Handler) publish(r *http.Request, eventType string, data map[string]any) {
	if h.bus == nil {
		return
	}

	actorID := types.ID("")
	if user := auth.GetUser(r.Context()); user != nil {
		actorID = user.ID
	}

	event := events.NewEvent(eventType, "followup", data).
		WithActor(actorID, "staff", middleware.ClientIP(r))

	h.bus.Publish(r.Context(), event)
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
