package his

import (
	"strings"
	"testing"
	"time"

	"github.com/openclinic-ke/gbvcare/internal/shared/config"
	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

func TestRegistrationPatient(t *testing.T) {
	reg := Registration{
		RegistrationID: "REG-881",
		OPDNo:          "OPD-2026-0042",
		SerialNo:       "42",
		NationalID:     "12345678",
		Name:           "Jane Wanjiru",
		Age:            24,
		Sex:            "female",
		MaritalStatus:  "single",
		Address:        "Kibera",
		ContactNo:      "0712345678",
		NextOfKin:      "Mary Wanjiru",
		RegisteredAt:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}

	p := reg.Patient()

	if p.ID.IsZero() {
		t.Error("expected a generated ID")
	}
	if p.OPDNo != "OPD-2026-0042" {
		t.Errorf("OPDNo = %q", p.OPDNo)
	}
	if p.Sex != types.SexFemale {
		t.Errorf("Sex = %q, want F", p.Sex)
	}
	if p.ArrivalAt != "2026-03-14T09:30:00" {
		t.Errorf("ArrivalAt = %q", p.ArrivalAt)
	}

	// The HIS never captures incident details; those fields wait for
	// the nurse.
	if p.IncidentAt != "" || p.ViolenceType != "" || p.CaseType != "" {
		t.Errorf("incident fields should be empty: %q %q %q",
			p.IncidentAt, p.ViolenceType, p.CaseType)
	}
	if p.OVC != types.TriUnknown || p.MedicalFormFilled != types.TriUnknown {
		t.Errorf("form flags should default to unknown: %q %q", p.OVC, p.MedicalFormFilled)
	}
}

func TestRegistrationPatientUnknownGender(t *testing.T) {
	reg := Registration{
		OPDNo:        "OPD-1",
		Name:         "Test",
		Sex:          "9",
		RegisteredAt: time.Now(),
	}

	p := reg.Patient()
	if p.Sex != "" {
		t.Errorf("unmappable gender code should leave sex unset, got %q", p.Sex)
	}
}

func TestConnString(t *testing.T) {
	cfg := config.HISConfig{
		Host:     "his.local",
		Port:     1433,
		User:     "reader",
		Password: "secret",
		Database: "hmis",
		SSLMode:  "disable",
	}

	s := connString(cfg)
	if !strings.Contains(s, "server=his.local") || !strings.Contains(s, "database=hmis") {
		t.Errorf("connString = %q", s)
	}
	if strings.Contains(s, "encrypt=true") {
		t.Error("sslmode=disable should not enable encryption")
	}

	cfg.SSLMode = "require"
	if !strings.Contains(connString(cfg), "encrypt=true") {
		t.Error("non-disable sslmode should enable encryption")
	}
}
