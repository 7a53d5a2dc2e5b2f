package patient

import (
	"testing"

	"github.com/openclinic-ke/gbvcare/internal/shared/errors"
	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

func TestPatientFromRequest(t *testing.T) {
	req := &RegisterRequest{
		OPDNo:        "OPD-1001",
		Name:         "Jane Doe",
		Age:          23,
		Sex:          "f",
		OVC:          "N",
		P3Form:       "Y",
		ViolenceType: "sexual",
		ArrivalAt:    "2026-03-02 09:15:00",
		IncidentAt:   "2026-03-01",
	}

	p, err := patientFromRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.ID.IsZero() {
		t.Error("expected generated ID")
	}
	if p.Sex != types.SexFemale {
		t.Errorf("sex not normalized: %s", p.Sex)
	}
	if p.OVC != types.TriNo || p.P3Form != types.TriYes {
		t.Errorf("tri-state fields not normalized: ovc=%s p3=%s", p.OVC, p.P3Form)
	}
	if p.ArrivalAt != "2026-03-02T09:15:00" {
		t.Errorf("arrival not normalized: %s", p.ArrivalAt)
	}
	if p.IncidentAt != "2026-03-01T00:00:00" {
		t.Errorf("incident not normalized: %s", p.IncidentAt)
	}
}

func TestPatientFromRequestValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   RegisterRequest
		field string
	}{
		{"missing opd", RegisterRequest{Name: "x", Sex: "F"}, "opd_no"},
		{"missing name", RegisterRequest{OPDNo: "1", Sex: "F"}, "name"},
		{"bad sex", RegisterRequest{OPDNo: "1", Name: "x", Sex: "Q"}, "sex"},
		{"negative age", RegisterRequest{OPDNo: "1", Name: "x", Sex: "F", Age: -1}, "age"},
		{"bad arrival", RegisterRequest{OPDNo: "1", Name: "x", Sex: "F", ArrivalAt: "soon"}, "arrival_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := patientFromRequest(&tt.req)
			appErr, ok := err.(*errors.AppError)
			if !ok {
				t.Fatalf("expected AppError, got %v", err)
			}
			if _, found := appErr.Details[tt.field]; !found {
				t.Errorf("expected detail for %s, got %v", tt.field, appErr.Details)
			}
		})
	}
}

func TestPatientFromRequestDefaultArrival(t *testing.T) {
	p, err := patientFromRequest(&RegisterRequest{OPDNo: "1", Name: "x", Sex: "M"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ArrivalAt == "" {
		t.Error("expected arrival defaulted to now")
	}
	if _, err := types.ParseTimestamp(p.ArrivalAt); err != nil {
		t.Errorf("default arrival not parseable: %q", p.ArrivalAt)
	}
}

func TestApplyUpdate(t *testing.T) {
	p := Patient{Name: "Jane", Age: 20, Sex: types.SexFemale}

	name := "Jane A."
	age := 21
	ovc := "yes"
	arrival := "2026-04-01"
	if err := applyUpdate(&p, &UpdateRequest{Name: &name, Age: &age, OVC: &ovc, ArrivalAt: &arrival}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Name != "Jane A." || p.Age != 21 {
		t.Errorf("update not applied: %+v", p)
	}
	if p.OVC != types.TriYes {
		t.Errorf("ovc not normalized: %s", p.OVC)
	}
	if p.ArrivalAt != "2026-04-01T00:00:00" {
		t.Errorf("arrival not normalized: %s", p.ArrivalAt)
	}

	empty := ""
	if err := applyUpdate(&p, &UpdateRequest{Name: &empty}); err == nil {
		t.Error("expected validation error for empty name")
	}

	bad := "tomorrow"
	if err := applyUpdate(&p, &UpdateRequest{ArrivalAt: &bad}); err == nil {
		t.Error("expected validation error for malformed arrival")
	}
}

func TestInitialVisitRequestNormalization(t *testing.T) {
	req := InitialVisitRequest{
		HIVTest:  "ND",
		PEPGiven: "Y",
		ECPGiven: "NA",
		Referral: "police",
	}

	v := req.Visit(types.ID("p1"))
	if v.PatientID != types.ID("p1") {
		t.Errorf("patient ID not set: %s", v.PatientID)
	}
	if v.HIVTest != types.TriNotDone {
		t.Errorf("hiv_test = %s", v.HIVTest)
	}
	if v.PEPGiven != types.TriYes {
		t.Errorf("pep_given = %s", v.PEPGiven)
	}
	if v.ECPGiven != types.TriNotApplicable {
		t.Errorf("ecp_given = %s", v.ECPGiven)
	}
	// Fields absent from the form come back unknown, not empty.
	if v.Urinalysis != types.TriUnknown {
		t.Errorf("urinalysis = %s", v.Urinalysis)
	}
}
