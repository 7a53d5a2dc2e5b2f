package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/openclinic-ke/gbvcare/internal/followup"
	"github.com/openclinic-ke/gbvcare/internal/patient"
	"github.com/openclinic-ke/gbvcare/internal/reporting"
	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

func fixtureDataset() *Dataset {
	p1 := patient.Patient{
		ID: "11111111-1111-1111-1111-111111111111", OPDNo: "OPD-1001",
		Name: "Jane Doe", Age: 23, Sex: types.SexFemale,
		OVC: types.TriNo, Disability: types.TriNo,
		MedicalFormFilled: types.TriYes, P3Form: types.TriYes,
		ViolenceType: "sexual", CaseType: "new",
		ArrivalAt: "2026-03-02T09:15:00",
	}
	p2 := patient.Patient{
		ID: "22222222-2222-2222-2222-222222222222", OPDNo: "OPD-1002",
		Name: "John Roe", Age: 9, Sex: types.SexMale,
		OVC: types.TriYes, Disability: types.TriUnknown,
		MedicalFormFilled: types.TriNo, P3Form: types.TriNotDone,
		ViolenceType: "physical",
		ArrivalAt:    "2026-03-05T11:00:00",
	}

	return &Dataset{
		Window:   reporting.Window{Period: reporting.PeriodMonthly},
		Patients: []patient.Patient{p1, p2},
		Visits: map[types.ID]*patient.InitialVisit{
			p1.ID: {
				PatientID: p1.ID,
				HIVTest:   types.TriYes, PregnancyTest: types.TriNo,
				ECPGiven: types.TriYes, PEPGiven: types.TriYes,
				TraumaCounseling: types.TriYes, Referral: "police",
			},
		},
		FollowUps: map[types.ID][]followup.FollowUp{
			p1.ID: {
				{PatientID: p1.ID, Type: followup.TypeTwoWeeks, ReturnedAt: "2026-03-16T10:00:00"},
				{PatientID: p1.ID, Type: followup.TypeOneMonth, ReturnedAt: "2026-04-02T10:00:00"},
			},
		},
		Outcomes: map[types.ID]*patient.Outcome{
			p1.ID: {PatientID: p1.ID, Status: "recovered", OutcomeDate: "2026-09-02T00:00:00"},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, fixtureDataset()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("re-parsing CSV: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}

	header := records[0]
	if header[0] != "opd_no" || header[len(header)-1] != "outcome_date" {
		t.Errorf("unexpected header bounds: %v", header)
	}

	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("missing column %s", name)
		return -1
	}

	row1 := records[1]
	if row1[col("opd_no")] != "OPD-1001" || row1[col("name")] != "Jane Doe" {
		t.Errorf("unexpected first row: %v", row1)
	}
	if row1[col("pep_given")] != "yes" {
		t.Errorf("pep_given = %q", row1[col("pep_given")])
	}
	if row1[col("follow_ups_recorded")] != "2weeks;1month" {
		t.Errorf("follow_ups_recorded = %q", row1[col("follow_ups_recorded")])
	}
	if row1[col("outcome_status")] != "recovered" {
		t.Errorf("outcome_status = %q", row1[col("outcome_status")])
	}

	// Patient without visit or outcome gets empty cells, not a short row.
	row2 := records[2]
	if len(row2) != len(header) {
		t.Fatalf("row 2 has %d cells, header has %d", len(row2), len(header))
	}
	if row2[col("hiv_test")] != "" || row2[col("outcome_status")] != "" {
		t.Errorf("expected empty dependent cells: %v", row2)
	}
	if row2[col("ovc")] != "yes" {
		t.Errorf("ovc = %q", row2[col("ovc")])
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, fixtureDataset()); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("re-opening workbook: %v", err)
	}
	defer f.Close()

	for _, sheet := range []string{"Register", "Initial Visits", "Follow-ups", "Outcomes"} {
		if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
			t.Errorf("missing sheet %s", sheet)
		}
	}

	rows, err := f.GetRows("Register")
	if err != nil {
		t.Fatalf("reading register sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("expected header + 2 register rows, got %d", len(rows))
	}

	fuRows, err := f.GetRows("Follow-ups")
	if err != nil {
		t.Fatalf("reading follow-ups sheet: %v", err)
	}
	if len(fuRows) != 3 {
		t.Errorf("expected header + 2 follow-up rows, got %d", len(fuRows))
	}
	if len(fuRows) > 1 && !strings.Contains(strings.Join(fuRows[1], ","), "2weeks") {
		t.Errorf("first follow-up row missing slot: %v", fuRows[1])
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	got := Filename("csv", reporting.Window{Period: reporting.PeriodMonthly}, now)
	if got != "gbv_report_monthly_20260826.csv" {
		t.Errorf("Filename = %q", got)
	}

	got = Filename("xlsx", reporting.Window{}, now)
	if got != "gbv_report_all_20260826.xlsx" {
		t.Errorf("Filename = %q", got)
	}
}
