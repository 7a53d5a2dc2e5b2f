package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openclinic-ke/gbvcare/internal/shared/errors"
	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

// Repository provides database operations for patient records
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new patient repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const patientColumns = `
	id, opd_no, serial_no, national_id,
	name, age, sex, marital_status, address, contact_no, next_of_kin,
	ovc, disability,
	incident_at, medical_form_filled, p3_form, perpetrator_relation,
	violence_type, case_type, facility_name, arrival_at,
	created_at, updated_at`

func scanPatient(row pgx.Row, p *Patient) error {
	return row.Scan(
		&p.ID, &p.OPDNo, &p.SerialNo, &p.NationalID,
		&p.Name, &p.Age, &p.Sex, &p.MaritalStatus, &p.Address, &p.ContactNo, &p.NextOfKin,
		&p.OVC, &p.Disability,
		&p.IncidentAt, &p.MedicalFormFilled, &p.P3Form, &p.PerpetratorRelation,
		&p.ViolenceType, &p.CaseType, &p.FacilityName, &p.ArrivalAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
}

// Register creates a patient, with the initial visit workup in the
// same transaction when provided.
func (r *Repository) Register(ctx context.Context, p *Patient, visit *InitialVisit) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO patients (
			id, opd_no, serial_no, national_id,
			name, age, sex, marital_status, address, contact_no, next_of_kin,
			ovc, disability,
			incident_at, medical_form_filled, p3_form, perpetrator_relation,
			violence_type, case_type, facility_name, arrival_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10, $11,
			$12, $13,
			$14, $15, $16, $17,
			$18, $19, $20, $21
		)`

	_, err = tx.Exec(ctx, query,
		p.ID, p.OPDNo, p.SerialNo, p.NationalID,
		p.Name, p.Age, p.Sex, p.MaritalStatus, p.Address, p.ContactNo, p.NextOfKin,
		p.OVC, p.Disability,
		p.IncidentAt, p.MedicalFormFilled, p.P3Form, p.PerpetratorRelation,
		p.ViolenceType, p.CaseType, p.FacilityName, p.ArrivalAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("patient with this OPD number already exists")
		}
		return errors.Wrap(err, "failed to register patient")
	}

	if visit != nil {
		if err := upsertInitialVisit(ctx, tx, visit); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// Get retrieves a full patient record by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Detail, error) {
	query := fmt.Sprintf(`SELECT %s FROM patients WHERE id = $1`, patientColumns)

	detail := &Detail{}
	err := scanPatient(r.pool.QueryRow(ctx, query, id), &detail.Patient)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("patient", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get patient")
	}

	visit, err := r.getInitialVisit(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.InitialVisit = visit

	outcome, err := r.getOutcome(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Outcome = outcome

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM follow_ups WHERE patient_id = $1`, id,
	).Scan(&detail.FollowUpCount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count follow-ups")
	}

	return detail, nil
}

// GetByOPD retrieves a patient by OPD number
func (r *Repository) GetByOPD(ctx context.Context, opdNo string) (*Patient, error) {
	query := fmt.Sprintf(`SELECT %s FROM patients WHERE opd_no = $1`, patientColumns)

	p := &Patient{}
	err := scanPatient(r.pool.QueryRow(ctx, query, opdNo), p)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("patient", opdNo)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get patient by OPD number")
	}

	return p, nil
}

// Update updates a patient record. The OPD number is immutable.
func (r *Repository) Update(ctx context.Context, p *Patient) error {
	query := `
		UPDATE patients SET
			serial_no = $2, national_id = $3,
			name = $4, age = $5, sex = $6, marital_status = $7,
			address = $8, contact_no = $9, next_of_kin = $10,
			ovc = $11, disability = $12,
			incident_at = $13, medical_form_filled = $14, p3_form = $15,
			perpetrator_relation = $16, violence_type = $17, case_type = $18,
			facility_name = $19, arrival_at = $20,
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		p.ID, p.SerialNo, p.NationalID,
		p.Name, p.Age, p.Sex, p.MaritalStatus,
		p.Address, p.ContactNo, p.NextOfKin,
		p.OVC, p.Disability,
		p.IncidentAt, p.MedicalFormFilled, p.P3Form,
		p.PerpetratorRelation, p.ViolenceType, p.CaseType,
		p.FacilityName, p.ArrivalAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update patient")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("patient", p.ID.String())
	}

	return nil
}

// Delete removes a patient. The initial visit, follow-ups and outcome
// go with it through the foreign keys.
func (r *Repository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete patient")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("patient", id.String())
	}

	return nil
}

// List lists patients matching the filter, newest arrivals first
func (r *Repository) List(ctx context.Context, filter Filter) ([]Patient, int, error) {
	conditions, args, argNum := filter.Conditions(1)

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM patients p %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count patients")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 200 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.opd_no, p.serial_no, p.national_id,
			p.name, p.age, p.sex, p.marital_status, p.address, p.contact_no, p.next_of_kin,
			p.ovc, p.disability,
			p.incident_at, p.medical_form_filled, p.p3_form, p.perpetrator_relation,
			p.violence_type, p.case_type, p.facility_name, p.arrival_at,
			p.created_at, p.updated_at
		FROM patients p
		%s
		ORDER BY p.arrival_at DESC
		LIMIT $%d OFFSET $%d`, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list patients")
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		var p Patient
		if err := scanPatient(rows, &p); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan patient")
		}
		patients = append(patients, p)
	}

	return patients, total, nil
}

// --- Initial visit ---

const visitColumns = `
	patient_id,
	hiv_test, pregnancy_test, anal_swab, hvs, spermatozoa, urinalysis,
	hep_b_test, syphilis_test,
	ecp_given, pep_given, sti_treatment, trauma_counseling, adherence_counseling,
	tt_given, hep_b_vaccine, syphilis_treatment,
	referral, updated_at`

func (r *Repository) getInitialVisit(ctx context.Context, patientID types.ID) (*InitialVisit, error) {
	query := fmt.Sprintf(`SELECT %s FROM initial_visits WHERE patient_id = $1`, visitColumns)

	v := &InitialVisit{}
	err := r.pool.QueryRow(ctx, query, patientID).Scan(
		&v.PatientID,
		&v.HIVTest, &v.PregnancyTest, &v.AnalSwab, &v.HVS, &v.Spermatozoa, &v.Urinalysis,
		&v.HepBTest, &v.SyphilisTest,
		&v.ECPGiven, &v.PEPGiven, &v.STITreatment, &v.TraumaCounseling, &v.AdherenceCounseling,
		&v.TTGiven, &v.HepBVaccine, &v.SyphilisTreatment,
		&v.Referral, &v.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get initial visit")
	}

	return v, nil
}

// execer is satisfied by both the pool and a transaction, so the
// upsert can run standalone or inside Register.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// UpsertInitialVisit creates or replaces the initial visit workup
func (r *Repository) UpsertInitialVisit(ctx context.Context, v *InitialVisit) error {
	return upsertInitialVisit(ctx, r.pool, v)
}

func upsertInitialVisit(ctx context.Context, db execer, v *InitialVisit) error {
	query := `
		INSERT INTO initial_visits (
			patient_id,
			hiv_test, pregnancy_test, anal_swab, hvs, spermatozoa, urinalysis,
			hep_b_test, syphilis_test,
			ecp_given, pep_given, sti_treatment, trauma_counseling, adherence_counseling,
			tt_given, hep_b_vaccine, syphilis_treatment,
			referral
		) VALUES (
			$1,
			$2, $3, $4, $5, $6, $7,
			$8, $9,
			$10, $11, $12, $13, $14,
			$15, $16, $17,
			$18
		)
		ON CONFLICT (patient_id) DO UPDATE SET
			hiv_test = EXCLUDED.hiv_test,
			pregnancy_test = EXCLUDED.pregnancy_test,
			anal_swab = EXCLUDED.anal_swab,
			hvs = EXCLUDED.hvs,
			spermatozoa = EXCLUDED.spermatozoa,
			urinalysis = EXCLUDED.urinalysis,
			hep_b_test = EXCLUDED.hep_b_test,
			syphilis_test = EXCLUDED.syphilis_test,
			ecp_given = EXCLUDED.ecp_given,
			pep_given = EXCLUDED.pep_given,
			sti_treatment = EXCLUDED.sti_treatment,
			trauma_counseling = EXCLUDED.trauma_counseling,
			adherence_counseling = EXCLUDED.adherence_counseling,
			tt_given = EXCLUDED.tt_given,
			hep_b_vaccine = EXCLUDED.hep_b_vaccine,
			syphilis_treatment = EXCLUDED.syphilis_treatment,
			referral = EXCLUDED.referral,
			updated_at = NOW()`

	_, err := db.Exec(ctx, query,
		v.PatientID,
		v.HIVTest, v.PregnancyTest, v.AnalSwab, v.HVS, v.Spermatozoa, v.Urinalysis,
		v.HepBTest, v.SyphilisTest,
		v.ECPGiven, v.PEPGiven, v.STITreatment, v.TraumaCounseling, v.AdherenceCounseling,
		v.TTGiven, v.HepBVaccine, v.SyphilisTreatment,
		v.Referral,
	)
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return errors.NotFound("patient", v.PatientID.String())
		}
		return errors.Wrap(err, "failed to save initial visit")
	}

	return nil
}

// --- Outcome ---

func (r *Repository) getOutcome(ctx context.Context, patientID types.ID) (*Outcome, error) {
	o := &Outcome{}
	err := r.pool.QueryRow(ctx, `
		SELECT patient_id, status, description, outcome_date, updated_at
		FROM client_outcomes WHERE patient_id = $1`, patientID,
	).Scan(&o.PatientID, &o.Status, &o.Description, &o.OutcomeDate, &o.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get outcome")
	}

	return o, nil
}

// UpsertOutcome records or replaces the client outcome
func (r *Repository) UpsertOutcome(ctx context.Context, o *Outcome) error {
	query := `
		INSERT INTO client_outcomes (patient_id, status, description, outcome_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (patient_id) DO UPDATE SET
			status = EXCLUDED.status,
			description = EXCLUDED.description,
			outcome_date = EXCLUDED.outcome_date,
			updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query, o.PatientID, o.Status, o.Description, o.OutcomeDate)
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return errors.NotFound("patient", o.PatientID.String())
		}
		return errors.Wrap(err, "failed to save outcome")
	}

	return nil
}
