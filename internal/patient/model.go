package patient

import (
	"time"

	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

// Patient is a survivor record created at intake. Clinical timestamps
// (IncidentAt, ArrivalAt) use the sortable text form from types.
type Patient struct {
	ID         types.ID `json:"id"`
	OPDNo      string   `json:"opd_no"`
	SerialNo   string   `json:"serial_no,omitempty"`
	NationalID string   `json:"national_id,omitempty"`

	Name          string    `json:"name"`
	Age           int       `json:"age"`
	Sex           types.Sex `json:"sex"`
	MaritalStatus string    `json:"marital_status,omitempty"`
	Address       string    `json:"address,omitempty"`
	ContactNo     string    `json:"contact_no,omitempty"`
	NextOfKin     string    `json:"next_of_kin,omitempty"`

	OVC        types.TriState `json:"ovc"`
	Disability types.TriState `json:"disability"`

	IncidentAt          string         `json:"incident_at,omitempty"`
	MedicalFormFilled   types.TriState `json:"medical_form_filled"`
	P3Form              types.TriState `json:"p3_form"`
	PerpetratorRelation string         `json:"perpetrator_relation,omitempty"`
	ViolenceType        string         `json:"violence_type,omitempty"`
	CaseType            string         `json:"case_type,omitempty"`
	FacilityName        string         `json:"facility_name,omitempty"`
	ArrivalAt           string         `json:"arrival_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InitialVisit holds the clinical workup recorded on the first visit.
// One row per patient; writes are upserts.
type InitialVisit struct {
	PatientID types.ID `json:"patient_id"`

	// Tests
	HIVTest       types.TriState `json:"hiv_test"`
	PregnancyTest types.TriState `json:"pregnancy_test"`
	AnalSwab      types.TriState `json:"anal_swab"`
	HVS           types.TriState `json:"hvs"`
	Spermatozoa   types.TriState `json:"spermatozoa"`
	Urinalysis    types.TriState `json:"urinalysis"`
	HepBTest      types.TriState `json:"hep_b_test"`
	SyphilisTest  types.TriState `json:"syphilis_test"`

	// Treatment and prophylaxis
	ECPGiven            types.TriState `json:"ecp_given"`
	PEPGiven            types.TriState `json:"pep_given"`
	STITreatment        types.TriState `json:"sti_treatment"`
	TraumaCounseling    types.TriState `json:"trauma_counseling"`
	AdherenceCounseling types.TriState `json:"adherence_counseling"`
	TTGiven             types.TriState `json:"tt_given"`
	HepBVaccine         types.TriState `json:"hep_b_vaccine"`
	SyphilisTreatment   types.TriState `json:"syphilis_treatment"`

	Referral  string    `json:"referral,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Outcome is the closing status of a client's care. One row per
// patient; recording again replaces the previous outcome.
type Outcome struct {
	PatientID   types.ID  `json:"patient_id"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	OutcomeDate string    `json:"outcome_date,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Detail is a full patient record: demographics plus initial visit and
// outcome when they exist, and the count of recorded follow-ups.
type Detail struct {
	Patient       Patient       `json:"patient"`
	InitialVisit  *InitialVisit `json:"initial_visit,omitempty"`
	Outcome       *Outcome      `json:"outcome,omitempty"`
	FollowUpCount int           `json:"follow_up_count"`
}

// RegisterRequest creates a patient, optionally with the initial visit
// workup in the same call.
type RegisterRequest struct {
	OPDNo      string `json:"opd_no"`
	SerialNo   string `json:"serial_no"`
	NationalID string `json:"national_id"`

	Name          string `json:"name"`
	Age           int    `json:"age"`
	Sex           string `json:"sex"`
	MaritalStatus string `json:"marital_status"`
	Address       string `json:"address"`
	ContactNo     string `json:"contact_no"`
	NextOfKin     string `json:"next_of_kin"`

	OVC        string `json:"ovc"`
	Disability string `json:"disability"`

	IncidentAt          string `json:"incident_at"`
	MedicalFormFilled   string `json:"medical_form_filled"`
	P3Form              string `json:"p3_form"`
	PerpetratorRelation string `json:"perpetrator_relation"`
	ViolenceType        string `json:"violence_type"`
	CaseType            string `json:"case_type"`
	FacilityName        string `json:"facility_name"`
	ArrivalAt           string `json:"arrival_at"`

	InitialVisit *InitialVisitRequest `json:"initial_visit,omitempty"`
}

// InitialVisitRequest carries the workup form values as submitted.
// Values are normalized through types.ParseTriState.
type InitialVisitRequest struct {
	HIVTest       string `json:"hiv_test"`
	PregnancyTest string `json:"pregnancy_test"`
	AnalSwab      string `json:"anal_swab"`
	HVS           string `json:"hvs"`
	Spermatozoa   string `json:"spermatozoa"`
	Urinalysis    string `json:"urinalysis"`
	HepBTest      string `json:"hep_b_test"`
	SyphilisTest  string `json:"syphilis_test"`

	ECPGiven            string `json:"ecp_given"`
	PEPGiven            string `json:"pep_given"`
	STITreatment        string `json:"sti_treatment"`
	TraumaCounseling    string `json:"trauma_counseling"`
	AdherenceCounseling string `json:"adherence_counseling"`
	TTGiven             string `json:"tt_given"`
	HepBVaccine         string `json:"hep_b_vaccine"`
	SyphilisTreatment   string `json:"syphilis_treatment"`

	Referral string `json:"referral"`
}

// Visit converts the form values into an InitialVisit for the patient.
func (r *InitialVisitRequest) Visit(patientID types.ID) *InitialVisit {
	return &InitialVisit{
		PatientID:           patientID,
		HIVTest:             types.ParseTriState(r.HIVTest),
		PregnancyTest:       types.ParseTriState(r.PregnancyTest),
		AnalSwab:            types.ParseTriState(r.AnalSwab),
		HVS:                 types.ParseTriState(r.HVS),
		Spermatozoa:         types.ParseTriState(r.Spermatozoa),
		Urinalysis:          types.ParseTriState(r.Urinalysis),
		HepBTest:            types.ParseTriState(r.HepBTest),
		SyphilisTest:        types.ParseTriState(r.SyphilisTest),
		ECPGiven:            types.ParseTriState(r.ECPGiven),
		PEPGiven:            types.ParseTriState(r.PEPGiven),
		STITreatment:        types.ParseTriState(r.STITreatment),
		TraumaCounseling:    types.ParseTriState(r.TraumaCounseling),
		AdherenceCounseling: types.ParseTriState(r.AdherenceCounseling),
		TTGiven:             types.ParseTriState(r.TTGiven),
		HepBVaccine:         types.ParseTriState(r.HepBVaccine),
		SyphilisTreatment:   types.ParseTriState(r.SyphilisTreatment),
		Referral:            r.Referral,
	}
}

// UpdateRequest applies partial demographic and intake updates.
// Nil fields are left unchanged.
type UpdateRequest struct {
	SerialNo   *string `json:"serial_no"`
	NationalID *string `json:"national_id"`

	Name          *string `json:"name"`
	Age           *int    `json:"age"`
	Sex           *string `json:"sex"`
	MaritalStatus *string `json:"marital_status"`
	Address       *string `json:"address"`
	ContactNo     *string `json:"contact_no"`
	NextOfKin     *string `json:"next_of_kin"`

	OVC        *string `json:"ovc"`
	Disability *string `json:"disability"`

	IncidentAt          *string `json:"incident_at"`
	MedicalFormFilled   *string `json:"medical_form_filled"`
	P3Form              *string `json:"p3_form"`
	PerpetratorRelation *string `json:"perpetrator_relation"`
	ViolenceType        *string `json:"violence_type"`
	CaseType            *string `json:"case_type"`
	FacilityName        *string `json:"facility_name"`
	ArrivalAt           *string `json:"arrival_at"`
}

// OutcomeRequest records or replaces a client outcome.
type OutcomeRequest struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	OutcomeDate string `json:"outcome_date"`
}
