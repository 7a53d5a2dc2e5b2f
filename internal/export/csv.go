package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/openclinic-ke/gbvcare/internal/reporting"
	"github.com/openclinic-ke/gbvcare/internal/shared/errors"
)

// registerHeader is the flattened register layout: intake fields, the
// initial visit summary, schedule progress and the outcome.
var registerHeader = []string{
	"opd_no", "serial_no", "national_id",
	"name", "age", "sex", "marital_status", "address", "contact_no", "next_of_kin",
	"ovc", "disability",
	"incident_at", "arrival_at",
	"medical_form_filled", "p3_form", "perpetrator_relation",
	"violence_type", "case_type", "facility_name",
	"hiv_test", "pregnancy_test", "hep_b_test", "syphilis_test",
	"ecp_given", "pep_given", "sti_treatment",
	"trauma_counseling", "adherence_counseling",
	"tt_given", "hep_b_vaccine", "referral",
	"follow_ups_recorded",
	"outcome_status", "outcome_date",
}

// registerRow flattens one patient with their dependent records.
func registerRow(ds *Dataset, i int) []string {
	p := ds.Patients[i]

	row := []string{
		p.OPDNo, p.SerialNo, p.NationalID,
		p.Name, fmt.Sprintf("%d", p.Age), string(p.Sex), p.MaritalStatus, p.Address, p.ContactNo, p.NextOfKin,
		string(p.OVC), string(p.Disability),
		p.IncidentAt, p.ArrivalAt,
		string(p.MedicalFormFilled), string(p.P3Form), p.PerpetratorRelation,
		p.ViolenceType, p.CaseType, p.FacilityName,
	}

	if v := ds.Visits[p.ID]; v != nil {
		row = append(row,
			string(v.HIVTest), string(v.PregnancyTest), string(v.HepBTest), string(v.SyphilisTest),
			string(v.ECPGiven), string(v.PEPGiven), string(v.STITreatment),
			string(v.TraumaCounseling), string(v.AdherenceCounseling),
			string(v.TTGiven), string(v.HepBVaccine), v.Referral,
		)
	} else {
		row = append(row, make([]string, 12)...)
	}

	var slots []string
	for _, f := range ds.FollowUps[p.ID] {
		slots = append(slots, string(f.Type))
	}
	row = append(row, strings.Join(slots, ";"))

	if o := ds.Outcomes[p.ID]; o != nil {
		row = append(row, o.Status, o.OutcomeDate)
	} else {
		row = append(row, "", "")
	}

	return row
}

// WriteCSV writes the flattened register for the dataset
func WriteCSV(w io.Writer, ds *Dataset) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(registerHeader); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}

	for i := range ds.Patients {
		if err := cw.Write(registerRow(ds, i)); err != nil {
			return errors.Wrap(err, "failed to write CSV row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, "failed to flush CSV")
	}

	return nil
}

// Filename names an export file by window and generation date, e.g.
// gbv_report_monthly_20260826.csv.
func Filename(format string, w reporting.Window, now time.Time) string {
	period := string(w.Period)
	if period == "" {
		period = "all"
	}
	return fmt.Sprintf("gbv_report_%s_%s.%s", period, now.Format("20060102"), format)
}
