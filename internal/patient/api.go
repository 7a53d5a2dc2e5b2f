package patient

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openclinic-ke/gbvcare/internal/shared/auth"
	"github.com/openclinic-ke/gbvcare/internal/shared/errors"
	"github.com/openclinic-ke/gbvcare/internal/shared/events"
	"github.com/openclinic-ke/gbvcare/internal/shared/metrics"
	"github.com/openclinic-ke/gbvcare/internal/shared/middleware"
	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

// Handler provides HTTP handlers for the patient module
type Handler struct {
	repo *Repository
	bus  events.EventBus
}

// NewHandler creates a new patient handler
func NewHandler(repo *Repository, bus events.EventBus) *Handler {
	return &Handler{repo: repo, bus: bus}
}

// Routes registers the patient routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Register)

	r.Route("/{patientID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.With(auth.RequireRole(auth.RoleAdmin)).Delete("/", h.Delete)

		r.Put("/initial-visit", h.UpsertInitialVisit)
		r.Put("/outcome", h.RecordOutcome)
	})

	return r
}

// List lists patients matching the query filters
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := FilterFromQuery(r.URL.Query())

	patients, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  patients,
		"total": total,
	})
}

// Get gets a full patient record by ID
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	detail, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// Register creates a new patient record
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	p, err := patientFromRequest(&req)
	if err != nil {
		writeError(w, err)
		return
	}

	var visit *InitialVisit
	if req.InitialVisit != nil {
		visit = req.InitialVisit.Visit(p.ID)
	}

	if err := h.repo.Register(r.Context(), p, visit); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordPatientRegistered("web")
	h.publish(r, "patient.registered", map[string]any{
		"patient_id": p.ID,
		"opd_no":     p.OPDNo,
	})

	writeJSON(w, http.StatusCreated, p)
}

// patientFromRequest validates a registration request and builds the
// patient record from it.
func patientFromRequest(req *RegisterRequest) (*Patient, error) {
	details := map[string]string{}
	if req.OPDNo == "" {
		details["opd_no"] = "opd_no is required"
	}
	if req.Name == "" {
		details["name"] = "name is required"
	}
	if req.Age < 0 {
		details["age"] = "age must not be negative"
	}

	sex, err := types.ParseSex(req.Sex)
	if err != nil {
		details["sex"] = "sex must be F or M"
	}

	arrival := time.Now()
	if req.ArrivalAt != "" {
		arrival, err = types.ParseTimestamp(req.ArrivalAt)
		if err != nil {
			details["arrival_at"] = "arrival_at is not a valid timestamp"
		}
	}

	incident := req.IncidentAt
	if incident != "" {
		if t, err := types.ParseTimestamp(incident); err == nil {
			incident = types.FormatTimestamp(t)
		}
	}

	if len(details) > 0 {
		return nil, errors.Validation("validation failed", details)
	}

	return &Patient{
		ID:                  types.NewID(),
		OPDNo:               req.OPDNo,
		SerialNo:            req.SerialNo,
		NationalID:          req.NationalID,
		Name:                req.Name,
		Age:                 req.Age,
		Sex:                 sex,
		MaritalStatus:       req.MaritalStatus,
		Address:             req.Address,
		ContactNo:           req.ContactNo,
		NextOfKin:           req.NextOfKin,
		OVC:                 types.ParseTriState(req.OVC),
		Disability:          types.ParseTriState(req.Disability),
		IncidentAt:          incident,
		MedicalFormFilled:   types.ParseTriState(req.MedicalFormFilled),
		P3Form:              types.ParseTriState(req.P3Form),
		PerpetratorRelation: req.PerpetratorRelation,
		ViolenceType:        req.ViolenceType,
		CaseType:            req.CaseType,
		FacilityName:        req.FacilityName,
		ArrivalAt:           types.FormatTimestamp(arrival),
	}, nil
}

// Update applies partial updates to a patient record
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	detail, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	p := detail.Patient

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := applyUpdate(&p, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.repo.Update(r.Context(), &p); err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, "patient.updated", map[string]any{
		"patient_id": p.ID,
		"opd_no":     p.OPDNo,
	})

	writeJSON(w, http.StatusOK, p)
}

func applyUpdate(p *Patient, req *UpdateRequest) error {
	if req.SerialNo != nil {
		p.SerialNo = *req.SerialNo
	}
	if req.NationalID != nil {
		p.NationalID = *req.NationalID
	}
	if req.Name != nil {
		if *req.Name == "" {
			return errors.Validation("validation failed", map[string]string{"name": "name must not be empty"})
		}
		p.Name = *req.Name
	}
	if req.Age != nil {
		if *req.Age < 0 {
			return errors.Validation("validation failed", map[string]string{"age": "age must not be negative"})
		}
		p.Age = *req.Age
	}
	if req.Sex != nil {
		sex, err := types.ParseSex(*req.Sex)
		if err != nil {
			return errors.Validation("validation failed", map[string]string{"sex": "sex must be F or M"})
		}
		p.Sex = sex
	}
	if req.MaritalStatus != nil {
		p.MaritalStatus = *req.MaritalStatus
	}
	if req.Address != nil {
		p.Address = *req.Address
	}
	if req.ContactNo != nil {
		p.ContactNo = *req.ContactNo
	}
	if req.NextOfKin != nil {
		p.NextOfKin = *req.NextOfKin
	}
	if req.OVC != nil {
		p.OVC = types.ParseTriState(*req.OVC)
	}
	if req.Disability != nil {
		p.Disability = types.ParseTriState(*req.Disability)
	}
	if req.IncidentAt != nil {
		incident := *req.IncidentAt
		if t, err := types.ParseTimestamp(incident); err == nil {
			incident = types.FormatTimestamp(t)
		}
		p.IncidentAt = incident
	}
	if req.MedicalFormFilled != nil {
		p.MedicalFormFilled = types.ParseTriState(*req.MedicalFormFilled)
	}
	if req.P3Form != nil {
		p.P3Form = types.ParseTriState(*req.P3Form)
	}
	if req.PerpetratorRelation != nil {
		p.PerpetratorRelation = *req.PerpetratorRelation
	}
	if req.ViolenceType != nil {
		p.ViolenceType = *req.ViolenceType
	}
	if req.CaseType != nil {
		p.CaseType = *req.CaseType
	}
	if req.FacilityName != nil {
		p.FacilityName = *req.FacilityName
	}
	if req.ArrivalAt != nil {
		t, err := types.ParseTimestamp(*req.ArrivalAt)
		if err != nil {
			return errors.Validation("validation failed", map[string]string{"arrival_at": "arrival_at is not a valid timestamp"})
		}
		p.ArrivalAt = types.FormatTimestamp(t)
	}
	return nil
}

// Delete removes a patient and all dependent records
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, "patient.deleted", map[string]any{"patient_id": id})

	w.WriteHeader(http.StatusNoContent)
}

// UpsertInitialVisit records or replaces the initial visit workup
func (h *Handler) UpsertInitialVisit(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	var req InitialVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	visit := req.Visit(id)
	if err := h.repo.UpsertInitialVisit(r.Context(), visit); err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, "visit.updated", map[string]any{"patient_id": id})

	writeJSON(w, http.StatusOK, visit)
}

// RecordOutcome records or replaces the client outcome
func (h *Handler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	var req OutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Status == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"status": "status is required",
		}))
		return
	}

	date := req.OutcomeDate
	if date != "" {
		if t, err := types.ParseTimestamp(date); err == nil {
			date = types.FormatTimestamp(t)
		}
	}

	outcome := &Outcome{
		PatientID:   id,
		Status:      req.Status,
		Description: req.Description,
		OutcomeDate: date,
	}

	if err := h.repo.UpsertOutcome(r.Context(), outcome); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordOutcome(outcome.Status)
	h.publish(r, "outcome.recorded", map[string]any{
		"patient_id": id,
		"status":     outcome.Status,
	})

	writeJSON(w, http.StatusOK, outcome)
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

	event := events.NewEvent(eventType, "patient", data).
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
