package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/openclinic-ke/gbvcare/internal/shared/errors"
)

// WriteXLSX writes the dataset as a workbook with one sheet per
// record type, plus the flattened register as the first sheet.
func WriteXLSX(w io.Writer, ds *Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeRegisterSheet(f, ds); err != nil {
		return err
	}
	if err := writeVisitSheet(f, ds); err != nil {
		return err
	}
	if err := writeFollowUpSheet(f, ds); err != nil {
		return err
	}
	if err := writeOutcomeSheet(f, ds); err != nil {
		return err
	}

	// Drop the default sheet left by NewFile.
	f.DeleteSheet("Sheet1")

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "failed to write workbook")
	}

	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return errors.Wrap(err, "failed to compute cell name")
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return errors.Wrap(err, "failed to set sheet row")
	}
	return nil
}

func headerRow(header []string) []any {
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	return row
}

func stringRow(values []string) []any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

func writeRegisterSheet(f *excelize.File, ds *Dataset) error {
	const sheet = "Register"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "failed to create sheet")
	}

	if err := setRow(f, sheet, 1, headerRow(registerHeader)); err != nil {
		return err
	}
	for i := range ds.Patients {
		if err := setRow(f, sheet, i+2, stringRow(registerRow(ds, i))); err != nil {
			return err
		}
	}
	return nil
}

func writeVisitSheet(f *excelize.File, ds *Dataset) error {
	const sheet = "Initial Visits"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "failed to create sheet")
	}

	header := []string{
		"opd_no", "name",
		"hiv_test", "pregnancy_test", "anal_swab", "hvs", "spermatozoa", "urinalysis",
		"hep_b_test", "syphilis_test",
		"ecp_given", "pep_given", "sti_treatment",
		"trauma_counseling", "adherence_counseling",
		"tt_given", "hep_b_vaccine", "syphilis_treatment", "referral",
	}
	if err := setRow(f, sheet, 1, headerRow(header)); err != nil {
		return err
	}

	rowNum := 2
	for _, p := range ds.Patients {
		v := ds.Visits[p.ID]
		if v == nil {
			continue
		}
		row := []any{
			p.OPDNo, p.Name,
			string(v.HIVTest), string(v.PregnancyTest), string(v.AnalSwab), string(v.HVS),
			string(v.Spermatozoa), string(v.Urinalysis),
			string(v.HepBTest), string(v.SyphilisTest),
			string(v.ECPGiven), string(v.PEPGiven), string(v.STITreatment),
			string(v.TraumaCounseling), string(v.AdherenceCounseling),
			string(v.TTGiven), string(v.HepBVaccine), string(v.SyphilisTreatment), v.Referral,
		}
		if err := setRow(f, sheet, rowNum, row); err != nil {
			return err
		}
		rowNum++
	}
	return nil
}

func writeFollowUpSheet(f *excelize.File, ds *Dataset) error {
	const sheet = "Follow-ups"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "failed to create sheet")
	}

	header := []string{
		"opd_no", "name", "followup_type", "returned_at", "next_appointment",
		"trauma_counseling", "adherence_counseling", "pep_refill", "pep_completion",
		"hiv_test", "pregnancy_test", "hep_b_test", "syphilis_test",
		"hb", "alt", "tt_given", "referral", "notes", "recorded_by",
	}
	if err := setRow(f, sheet, 1, headerRow(header)); err != nil {
		return err
	}

	rowNum := 2
	for _, p := range ds.Patients {
		for _, fu := range ds.FollowUps[p.ID] {
			hb := ""
			if fu.Hb != nil {
				hb = fmt.Sprintf("%.1f", *fu.Hb)
			}
			alt := ""
			if fu.ALT != nil {
				alt = fmt.Sprintf("%d", *fu.ALT)
			}

			row := []any{
				p.OPDNo, p.Name, string(fu.Type), fu.ReturnedAt, fu.NextAppointment,
				string(fu.TraumaCounseling), string(fu.AdherenceCounseling),
				string(fu.PEPRefill), string(fu.PEPCompletion),
				string(fu.HIVTest), string(fu.PregnancyTest),
				string(fu.HepBTest), string(fu.SyphilisTest),
				hb, alt, string(fu.TTGiven), fu.Referral, fu.Notes, fu.RecordedBy,
			}
			if err := setRow(f, sheet, rowNum, row); err != nil {
				return err
			}
			rowNum++
		}
	}
	return nil
}

func writeOutcomeSheet(f *excelize.File, ds *Dataset) error {
	const sheet = "Outcomes"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "failed to create sheet")
	}

	header := []string{"opd_no", "name", "status", "description", "outcome_date"}
	if err := setRow(f, sheet, 1, headerRow(header)); err != nil {
		return err
	}

	rowNum := 2
	for _, p := range ds.Patients {
		o := ds.Outcomes[p.ID]
		if o == nil {
			continue
		}
		row := []any{p.OPDNo, p.Name, o.Status, o.Description, o.OutcomeDate}
		if err := setRow(f, sheet, rowNum, row); err != nil {
			return err
		}
		rowNum++
	}
	return nil
}
