package followup

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openclinic-ke/gbvcare/internal/shared/errors"
	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

// Repository provides database operations for follow-up visits
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new follow-up repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const followUpColumns = `
	id, patient_id, followup_type, returned_at, next_appointment,
	trauma_counseling, adherence_counseling, pep_refill, pep_completion,
	hiv_test, pregnancy_test, hep_b_test, syphilis_test,
	hb, alt, tt_given, referral, notes, recorded_by,
	created_at, updated_at`

// slotOrder keeps listings in schedule order rather than insertion or
// alphabetical order ("1month" sorts before "2weeks" as text).
const slotOrder = `
	CASE followup_type
		WHEN '2weeks' THEN 1
		WHEN '1month' THEN 2
		WHEN '3months' THEN 3
		WHEN '6months' THEN 4
		ELSE 5
	END`

func scanFollowUp(row pgx.Row, f *FollowUp) error {
	return row.Scan(
		&f.ID, &f.PatientID, &f.Type, &f.ReturnedAt, &f.NextAppointment,
		&f.TraumaCounseling, &f.AdherenceCounseling, &f.PEPRefill, &f.PEPCompletion,
		&f.HIVTest, &f.PregnancyTest, &f.HepBTest, &f.SyphilisTest,
		&f.Hb, &f.ALT, &f.TTGiven, &f.Referral, &f.Notes, &f.RecordedBy,
		&f.CreatedAt, &f.UpdatedAt,
	)
}

// Create records a follow-up visit. Each schedule slot can be recorded
// once per patient.
func (r *Repository) Create(ctx context.Context, f *FollowUp) error {
	query := `
		INSERT INTO follow_ups (
			id, patient_id, followup_type, returned_at, next_appointment,
			trauma_counseling, adherence_counseling, pep_refill, pep_completion,
			hiv_test, pregnancy_test, hep_b_test, syphilis_test,
			hb, alt, tt_given, referral, notes, recorded_by
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19
		)`

	_, err := r.pool.Exec(ctx, query,
		f.ID, f.PatientID, f.Type, f.ReturnedAt, f.NextAppointment,
		f.TraumaCounseling, f.AdherenceCounseling, f.PEPRefill, f.PEPCompletion,
		f.HIVTest, f.PregnancyTest, f.HepBTest, f.SyphilisTest,
		f.Hb, f.ALT, f.TTGiven, f.Referral, f.Notes, f.RecordedBy,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("follow-up already recorded for this schedule slot")
		}
		if strings.Contains(err.Error(), "foreign key") {
			return errors.NotFound("patient", f.PatientID.String())
		}
		return errors.Wrap(err, "failed to record follow-up")
	}

	return nil
}

// Get retrieves a follow-up by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*FollowUp, error) {
	query := `SELECT ` + followUpColumns + ` FROM follow_ups WHERE id = $1`

	f := &FollowUp{}
	err := scanFollowUp(r.pool.QueryRow(ctx, query, id), f)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("follow-up", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get follow-up")
	}

	return f, nil
}

// Update updates a follow-up visit. The patient and schedule slot are
// immutable once recorded.
func (r *Repository) Update(ctx context.Context, f *FollowUp) error {
	query := `
		UPDATE follow_ups SET
			returned_at = $2, next_appointment = $3,
			trauma_counseling = $4, adherence_counseling = $5,
			pep_refill = $6, pep_completion = $7,
			hiv_test = $8, pregnancy_test = $9, hep_b_test = $10, syphilis_test = $11,
			hb = $12, alt = $13, tt_given = $14,
			referral = $15, notes = $16,
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		f.ID, f.ReturnedAt, f.NextAppointment,
		f.TraumaCounseling, f.AdherenceCounseling,
		f.PEPRefill, f.PEPCompletion,
		f.HIVTest, f.PregnancyTest, f.HepBTest, f.SyphilisTest,
		f.Hb, f.ALT, f.TTGiven,
		f.Referral, f.Notes,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update follow-up")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("follow-up", f.ID.String())
	}

	return nil
}

// Delete removes a follow-up, reopening its schedule slot
func (r *Repository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM follow_ups WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete follow-up")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("follow-up", id.String())
	}

	return nil
}

// ListByPatient lists a patient's follow-ups in schedule order
func (r *Repository) ListByPatient(ctx context.Context, patientID types.ID) ([]FollowUp, error) {
	query := `SELECT ` + followUpColumns + ` FROM follow_ups
		WHERE patient_id = $1 ORDER BY ` + slotOrder

	rows, err := r.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list follow-ups")
	}
	defer rows.Close()

	var followUps []FollowUp
	for rows.Next() {
		var f FollowUp
		if err := scanFollowUp(rows, &f); err != nil {
			return nil, errors.Wrap(err, "failed to scan follow-up")
		}
		followUps = append(followUps, f)
	}

	return followUps, nil
}

// Plan computes the remaining schedule for a patient from their
// arrival timestamp and the slots already recorded.
func (r *Repository) Plan(ctx context.Context, patientID types.ID) (*Plan, error) {
	var arrivalAt string
	err := r.pool.QueryRow(ctx,
		`SELECT arrival_at FROM patients WHERE id = $1`, patientID,
	).Scan(&arrivalAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("patient", patientID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get patient arrival")
	}

	rows, err := r.pool.Query(ctx,
		`SELECT followup_type FROM follow_ups WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list recorded slots")
	}
	defer rows.Close()

	var recorded []Type
	for rows.Next() {
		var t Type
		if err := rows.Scan(&t); err != nil {
			return nil, errors.Wrap(err, "failed to scan slot")
		}
		recorded = append(recorded, t)
	}

	plan := BuildPlan(patientID, arrivalAt, recorded)
	return &plan, nil
}
