package reporting

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openclinic-ke/gbvcare/internal/patient"
	"github.com/openclinic-ke/gbvcare/internal/shared/errors"
)

// Repository computes report aggregates over the patient tables
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new reporting repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WhereFor combines the structured filter conditions with the window's
// arrival bounds into a single WHERE clause over the patients table
// aliased p, with placeholders from $1. The report, dashboard and
// export paths all build their queries through it.
func WhereFor(f patient.Filter, w Window) (string, []any) {
	conditions, args, argNum := f.Conditions(1)

	if w.Bounded {
		from, to := w.Bounds()
		conditions = append(conditions,
			fmt.Sprintf("p.arrival_at >= $%d", argNum),
			fmt.Sprintf("p.arrival_at <= $%d", argNum+1))
		args = append(args, from, to)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// Build assembles the full report for a filter and window
func (r *Repository) Build(ctx context.Context, f patient.Filter, w Window) (*Report, error) {
	report := &Report{Window: w}
	where, args := WhereFor(f, w)

	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM patients p %s`, where), args...,
	).Scan(&report.Total)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count patients")
	}

	if report.KPIs, err = r.kpis(ctx, where, args, report.Total); err != nil {
		return nil, err
	}
	if report.ByViolenceType, err = r.groupBy(ctx, where, args, "COALESCE(NULLIF(p.violence_type, ''), 'unspecified')", report.Total); err != nil {
		return nil, err
	}
	if report.BySex, err = r.groupBy(ctx, where, args, "p.sex", report.Total); err != nil {
		return nil, err
	}
	if report.ByAgeBand, err = r.ageBandCounts(ctx, where, args, report.Total); err != nil {
		return nil, err
	}
	if report.ByMonth, err = r.monthCounts(ctx, where, args, report.Total); err != nil {
		return nil, err
	}
	if report.Interventions, err = r.interventionCounts(ctx, where, args, report.Total); err != nil {
		return nil, err
	}
	if report.FollowUp, err = r.followUpStats(ctx, where, args, report.Total); err != nil {
		return nil, err
	}
	if report.Outcomes, err = r.outcomeCounts(ctx, where, args, report.Total); err != nil {
		return nil, err
	}

	return report, nil
}

// kpis computes the dashboard headline shares in one pass
func (r *Repository) kpis(ctx context.Context, where string, args []any, total int) (KPIs, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) FILTER (WHERE p.sex = 'F'),
			COUNT(*) FILTER (WHERE p.age < 18),
			COUNT(*) FILTER (WHERE v.pep_given = 'yes'),
			COUNT(*) FILTER (WHERE COALESCE(v.referral, '') <> '')
		FROM patients p
		LEFT JOIN initial_visits v ON v.patient_id = p.id
		%s`, where)

	var female, minors, pep, referred int
	err := r.pool.QueryRow(ctx, query, args...).Scan(&female, &minors, &pep, &referred)
	if err != nil {
		return KPIs{}, errors.Wrap(err, "failed to compute KPIs")
	}

	return KPIs{
		FemalePct:   Pct(female, total),
		MinorPct:    Pct(minors, total),
		PEPGivenPct: Pct(pep, total),
		ReferredPct: Pct(referred, total),
	}, nil
}

// groupBy counts patients grouped by an expression over the patients
// table aliased p. The expression is code-controlled, never user input.
func (r *Repository) groupBy(ctx context.Context, where string, args []any, expr string, total int) ([]Count, error) {
	query := fmt.Sprintf(`
		SELECT %s AS label, COUNT(*)
		FROM patients p
		%s
		GROUP BY label
		ORDER BY COUNT(*) DESC, label`, expr, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to group patients")
	}
	defer rows.Close()

	var counts []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Label, &c.Count); err != nil {
			return nil, errors.Wrap(err, "failed to scan group count")
		}
		c.Pct = Pct(c.Count, total)
		counts = append(counts, c)
	}

	return counts, nil
}

// ageBandCounts buckets patients into the fixed report bands. Empty
// bands still appear so the report table keeps its shape.
func (r *Repository) ageBandCounts(ctx context.Context, where string, args []any, total int) ([]Count, error) {
	counts := make([]Count, 0, len(ageBands))
	for _, band := range ageBands {
		cond := fmt.Sprintf("p.age >= %d", band.Min)
		if band.Max >= 0 {
			cond = fmt.Sprintf("p.age BETWEEN %d AND %d", band.Min, band.Max)
		}

		query := fmt.Sprintf(`SELECT COUNT(*) FROM patients p %s`, andWhere(where, cond))

		var n int
		if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
			return nil, errors.Wrap(err, "failed to count age band")
		}
		counts = append(counts, Count{Label: band.Label, Count: n, Pct: Pct(n, total)})
	}

	return counts, nil
}

// monthCounts counts arrivals per calendar month, oldest first. The
// stored timestamp form makes the month its first seven characters.
func (r *Repository) monthCounts(ctx context.Context, where string, args []any, total int) ([]Count, error) {
	query := fmt.Sprintf(`
		SELECT SUBSTRING(p.arrival_at FROM 1 FOR 7) AS month, COUNT(*)
		FROM patients p
		%s
		GROUP BY month
		ORDER BY month`, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count by month")
	}
	defer rows.Close()

	var counts []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Label, &c.Count); err != nil {
			return nil, errors.Wrap(err, "failed to scan month count")
		}
		c.Pct = Pct(c.Count, total)
		counts = append(counts, c)
	}

	return counts, nil
}

// interventionColumns maps report labels to initial visit columns.
var interventionColumns = []struct {
	Label  string
	Column string
}{
	{"pep_given", "v.pep_given"},
	{"ecp_given", "v.ecp_given"},
	{"sti_treatment", "v.sti_treatment"},
	{"hiv_tested", "v.hiv_test"},
	{"trauma_counseling", "v.trauma_counseling"},
	{"tt_given", "v.tt_given"},
	{"hep_b_vaccine", "v.hep_b_vaccine"},
	{"p3_form", "p.p3_form"},
	{"medical_form_filled", "p.medical_form_filled"},
}

// interventionCounts counts patients with each service recorded as
// given on the initial visit (or intake, for the form fields).
func (r *Repository) interventionCounts(ctx context.Context, where string, args []any, total int) ([]Count, error) {
	counts := make([]Count, 0, len(interventionColumns))
	for _, iv := range interventionColumns {
		query := fmt.Sprintf(`
			SELECT COUNT(*)
			FROM patients p
			LEFT JOIN initial_visits v ON v.patient_id = p.id
			%s`, andWhere(where, iv.Column+" = 'yes'"))

		var n int
		if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
			return nil, errors.Wrap(err, "failed to count intervention")
		}
		counts = append(counts, Count{Label: iv.Label, Count: n, Pct: Pct(n, total)})
	}

	return counts, nil
}

// followUpStats buckets patients by schedule progress
func (r *Repository) followUpStats(ctx context.Context, where string, args []any, total int) (FollowUpStats, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) FILTER (WHERE fc.n = 0),
			COUNT(*) FILTER (WHERE fc.n BETWEEN 1 AND 3),
			COUNT(*) FILTER (WHERE fc.n >= 4)
		FROM patients p
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS n FROM follow_ups f WHERE f.patient_id = p.id
		) fc ON TRUE
		%s`, where)

	var stats FollowUpStats
	err := r.pool.QueryRow(ctx, query, args...).Scan(&stats.None, &stats.Partial, &stats.Complete)
	if err != nil {
		return stats, errors.Wrap(err, "failed to compute follow-up stats")
	}
	stats.CompletionPct = Pct(stats.Complete, total)

	return stats, nil
}

// outcomeCounts counts recorded outcomes by status for patients in
// the window
func (r *Repository) outcomeCounts(ctx context.Context, where string, args []any, total int) ([]Count, error) {
	query := fmt.Sprintf(`
		SELECT o.status, COUNT(*)
		FROM patients p
		JOIN client_outcomes o ON o.patient_id = p.id
		%s
		GROUP BY o.status
		ORDER BY COUNT(*) DESC, o.status`, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count outcomes")
	}
	defer rows.Close()

	var counts []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Label, &c.Count); err != nil {
			return nil, errors.Wrap(err, "failed to scan outcome count")
		}
		c.Pct = Pct(c.Count, total)
		counts = append(counts, c)
	}

	return counts, nil
}

// andWhere appends a condition to an optional WHERE clause
func andWhere(where, cond string) string {
	if where == "" {
		return "WHERE " + cond
	}
	return where + " AND " + cond
}
