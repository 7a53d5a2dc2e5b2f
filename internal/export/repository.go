package export

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openclinic-ke/gbvcare/internal/followup"
	"github.com/openclinic-ke/gbvcare/internal/patient"
	"github.com/openclinic-ke/gbvcare/internal/reporting"
	"github.com/openclinic-ke/gbvcare/internal/shared/errors"
	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

// Dataset is everything an export file carries: the register rows for
// a window plus their dependent records keyed by patient.
type Dataset struct {
	Window    reporting.Window
	Patients  []patient.Patient
	Visits    map[types.ID]*patient.InitialVisit
	FollowUps map[types.ID][]followup.FollowUp
	Outcomes  map[types.ID]*patient.Outcome
}

// Repository loads export datasets
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new export repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Load fetches the records matching a filter and window, oldest first
// so the register reads chronologically. The file carries exactly the
// result set the report screen shows.
func (r *Repository) Load(ctx context.Context, f patient.Filter, w reporting.Window) (*Dataset, error) {
	ds := &Dataset{
		Window:    w,
		Visits:    make(map[types.ID]*patient.InitialVisit),
		FollowUps: make(map[types.ID][]followup.FollowUp),
		Outcomes:  make(map[types.ID]*patient.Outcome),
	}

	where, args := reporting.WhereFor(f, w)

	query := fmt.Sprintf(`
		SELECT p.id, p.opd_no, p.serial_no, p.national_id,
			p.name, p.age, p.sex, p.marital_status, p.address, p.contact_no, p.next_of_kin,
			p.ovc, p.disability,
			p.incident_at, p.medical_form_filled, p.p3_form, p.perpetrator_relation,
			p.violence_type, p.case_type, p.facility_name, p.arrival_at,
			p.created_at, p.updated_at
		FROM patients p
		%s
		ORDER BY p.arrival_at`, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load patients for export")
	}
	defer rows.Close()

	ids := []any{}
	for rows.Next() {
		var p patient.Patient
		err := rows.Scan(
			&p.ID, &p.OPDNo, &p.SerialNo, &p.NationalID,
			&p.Name, &p.Age, &p.Sex, &p.MaritalStatus, &p.Address, &p.ContactNo, &p.NextOfKin,
			&p.OVC, &p.Disability,
			&p.IncidentAt, &p.MedicalFormFilled, &p.P3Form, &p.PerpetratorRelation,
			&p.ViolenceType, &p.CaseType, &p.FacilityName, &p.ArrivalAt,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan patient for export")
		}
		ds.Patients = append(ds.Patients, p)
		ids = append(ids, p.ID)
	}
	rows.Close()

	if len(ds.Patients) == 0 {
		return ds, nil
	}

	if err := r.loadVisits(ctx, ds, ids); err != nil {
		return nil, err
	}
	if err := r.loadFollowUps(ctx, ds, ids); err != nil {
		return nil, err
	}
	if err := r.loadOutcomes(ctx, ds, ids); err != nil {
		return nil, err
	}

	return ds, nil
}

func (r *Repository) loadVisits(ctx context.Context, ds *Dataset, ids []any) error {
	rows, err := r.pool.Query(ctx, `
		SELECT patient_id,
			hiv_test, pregnancy_test, anal_swab, hvs, spermatozoa, urinalysis,
			hep_b_test, syphilis_test,
			ecp_given, pep_given, sti_treatment, trauma_counseling, adherence_counseling,
			tt_given, hep_b_vaccine, syphilis_treatment,
			referral, updated_at
		FROM initial_visits
		WHERE patient_id = ANY($1)`, idList(ids))
	if err != nil {
		return errors.Wrap(err, "failed to load initial visits for export")
	}
	defer rows.Close()

	for rows.Next() {
		v := &patient.InitialVisit{}
		err := rows.Scan(
			&v.PatientID,
			&v.HIVTest, &v.PregnancyTest, &v.AnalSwab, &v.HVS, &v.Spermatozoa, &v.Urinalysis,
			&v.HepBTest, &v.SyphilisTest,
			&v.ECPGiven, &v.PEPGiven, &v.STITreatment, &v.TraumaCounseling, &v.AdherenceCounseling,
			&v.TTGiven, &v.HepBVaccine, &v.SyphilisTreatment,
			&v.Referral, &v.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "failed to scan initial visit for export")
		}
		ds.Visits[v.PatientID] = v
	}

	return nil
}

func (r *Repository) loadFollowUps(ctx context.Context, ds *Dataset, ids []any) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, followup_type, returned_at, next_appointment,
			trauma_counseling, adherence_counseling, pep_refill, pep_completion,
			hiv_test, pregnancy_test, hep_b_test, syphilis_test,
			hb, alt, tt_given, referral, notes, recorded_by,
			created_at, updated_at
		FROM follow_ups
		WHERE patient_id = ANY($1)
		ORDER BY patient_id,
			CASE followup_type
				WHEN '2weeks' THEN 1
				WHEN '1month' THEN 2
				WHEN '3months' THEN 3
				WHEN '6months' THEN 4
				ELSE 5
			END`, idList(ids))
	if err != nil {
		return errors.Wrap(err, "failed to load follow-ups for export")
	}
	defer rows.Close()

	for rows.Next() {
		var f followup.FollowUp
		err := rows.Scan(
			&f.ID, &f.PatientID, &f.Type, &f.ReturnedAt, &f.NextAppointment,
			&f.TraumaCounseling, &f.AdherenceCounseling, &f.PEPRefill, &f.PEPCompletion,
			&f.HIVTest, &f.PregnancyTest, &f.HepBTest, &f.SyphilisTest,
			&f.Hb, &f.ALT, &f.TTGiven, &f.Referral, &f.Notes, &f.RecordedBy,
			&f.CreatedAt, &f.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "failed to scan follow-up for export")
		}
		ds.FollowUps[f.PatientID] = append(ds.FollowUps[f.PatientID], f)
	}

	return nil
}

func (r *Repository) loadOutcomes(ctx context.Context, ds *Dataset, ids []any) error {
	rows, err := r.pool.Query(ctx, `
		SELECT patient_id, status, description, outcome_date, updated_at
		FROM client_outcomes
		WHERE patient_id = ANY($1)`, idList(ids))
	if err != nil {
		return errors.Wrap(err, "failed to load outcomes for export")
	}
	defer rows.Close()

	for rows.Next() {
		o := &patient.Outcome{}
		if err := rows.Scan(&o.PatientID, &o.Status, &o.Description, &o.OutcomeDate, &o.UpdatedAt); err != nil {
			return errors.Wrap(err, "failed to scan outcome for export")
		}
		ds.Outcomes[o.PatientID] = o
	}

	return nil
}

// idList converts the collected IDs to the string slice pgx binds to
// a uuid[] parameter.
func idList(ids []any) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.(types.ID).String()
	}
	return out
}
