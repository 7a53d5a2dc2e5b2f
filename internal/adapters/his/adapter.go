// Package his imports OPD registrations from the facility's hospital
// information system (SQL Server) into the clinic register. The adapter
// polls a registration table for rows routed to the GBV department and
// registers each one as a patient, so walk-ins captured at the main
// OPD desk do not have to be re-entered.
package his

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/rs/zerolog"

	"github.com/openclinic-ke/gbvcare/internal/patient"
	"github.com/openclinic-ke/gbvcare/internal/shared/config"
	"github.com/openclinic-ke/gbvcare/internal/shared/errors"
	"github.com/openclinic-ke/gbvcare/internal/shared/events"
	"github.com/openclinic-ke/gbvcare/internal/shared/metrics"
	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

// Adapter polls the HIS registration table and imports new rows
type Adapter struct {
	cfg  config.HISConfig
	repo *patient.Repository
	bus  events.EventBus
	log  zerolog.Logger

	db       *sql.DB
	running  bool
	mu       sync.RWMutex
	cancel   context.CancelFunc
	lastPoll time.Time
	wg       sync.WaitGroup
}

// New creates a HIS import adapter. The bus may be nil; imports are
// then recorded without event streaming.
func New(cfg config.HISConfig, repo *patient.Repository, bus events.EventBus, log zerolog.Logger) *Adapter {
	return &Adapter{
		cfg:  cfg,
		repo: repo,
		bus:  bus,
		log:  log.With().Str("component", "his").Logger(),
	}
}

// Start opens the SQL Server connection and starts the poll loop
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("adapter already running")
	}

	db, err := sql.Open("sqlserver", connString(a.cfg))
	if err != nil {
		return fmt.Errorf("failed to open HIS database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping HIS database: %w", err)
	}

	a.db = db
	a.running = true
	a.lastPoll = time.Now().Add(-a.cfg.PollInterval)

	pollCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go a.pollLoop(pollCtx)

	a.log.Info().
		Str("table", a.cfg.RegistrationTable).
		Dur("interval", a.cfg.PollInterval).
		Msg("HIS import started")

	return nil
}

// Stop stops polling and closes the connection
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if a.db != nil {
		a.db.Close()
	}

	a.running = false
	return nil
}

// Health checks HIS database connectivity
func (a *Adapter) Health(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.running {
		return fmt.Errorf("adapter not running")
	}
	return a.db.PingContext(ctx)
}

// connString builds the SQL Server connection string
func connString(cfg config.HISConfig) string {
	s := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)

	if cfg.SSLMode != "disable" {
		s += ";encrypt=true;TrustServerCertificate=true"
	}
	return s
}

func (a *Adapter) pollLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			since := a.lastPoll
			a.lastPoll = time.Now()
			a.mu.Unlock()

			if err := a.poll(ctx, since); err != nil {
				a.log.Error().Err(err).Msg("HIS poll failed")
			}
		}
	}
}

// Registration is one row from the HIS registration table
type Registration struct {
	RegistrationID string
	OPDNo          string
	SerialNo       string
	NationalID     string
	Name           string
	Age            int
	Sex            string
	MaritalStatus  string
	Address        string
	ContactNo      string
	NextOfKin      string
	RegisteredAt   time.Time
}

// Patient maps a HIS registration to an intake record. Fields the HIS
// does not capture (incident details, violence type) stay empty for
// the nurse to complete; the form flags default to unknown.
func (r Registration) Patient() *patient.Patient {
	sex, err := types.ParseSex(r.Sex)
	if err != nil {
		// HIS gender codes outside F/M; keep the record but leave
		// sex unset so it shows up in the intake review queue.
		sex = ""
	}

	return &patient.Patient{
		ID:            types.NewID(),
		OPDNo:         r.OPDNo,
		SerialNo:      r.SerialNo,
		NationalID:    r.NationalID,
		Name:          r.Name,
		Age:           r.Age,
		Sex:           sex,
		MaritalStatus: r.MaritalStatus,
		Address:       r.Address,
		ContactNo:     r.ContactNo,
		NextOfKin:     r.NextOfKin,

		OVC:               types.TriUnknown,
		Disability:        types.TriUnknown,
		MedicalFormFilled: types.TriUnknown,
		P3Form:            types.TriUnknown,

		ArrivalAt: types.FormatTimestamp(r.RegisteredAt),
	}
}

// poll imports registrations recorded since the last poll
func (a *Adapter) poll(ctx context.Context, since time.Time) error {
	query := fmt.Sprintf(`
		SELECT
			RegistrationID,
			OPDNo,
			SerialNo,
			NationalID,
			FullName,
			Age,
			Gender,
			MaritalStatus,
			Address,
			Phone,
			NextOfKin,
			RegisteredAt
		FROM %s
		WHERE RegisteredAt > @since
		ORDER BY RegisteredAt ASC
	`, a.cfg.RegistrationTable)

	rows, err := a.db.QueryContext(ctx, query, sql.Named("since", since))
	if err != nil {
		return fmt.Errorf("failed to query registrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reg Registration
		var serialNo, nationalID, marital, address, phone, kin sql.NullString

		err := rows.Scan(
			&reg.RegistrationID,
			&reg.OPDNo,
			&serialNo,
			&nationalID,
			&reg.Name,
			&reg.Age,
			&reg.Sex,
			&marital,
			&address,
			&phone,
			&kin,
			&reg.RegisteredAt,
		)
		if err != nil {
			a.log.Error().Err(err).Msg("failed to scan HIS registration")
			metrics.RecordHISImport("error")
			continue
		}

		reg.SerialNo = serialNo.String
		reg.NationalID = nationalID.String
		reg.MaritalStatus = marital.String
		reg.Address = address.String
		reg.ContactNo = phone.String
		reg.NextOfKin = kin.String

		a.importRegistration(ctx, reg)
	}

	return rows.Err()
}

// importRegistration registers one HIS row, skipping OPD numbers that
// are already on the register. Re-polling the same window is safe.
func (a *Adapter) importRegistration(ctx context.Context, reg Registration) {
	if _, err := a.repo.GetByOPD(ctx, reg.OPDNo); err == nil {
		metrics.RecordHISImport("skipped")
		return
	}

	p := reg.Patient()
	if err := a.repo.Register(ctx, p, nil); err != nil {
		if stderrors.Is(err, errors.ErrConflict) {
			// Registered between the lookup and the insert.
			metrics.RecordHISImport("skipped")
			return
		}
		a.log.Error().Err(err).
			Str("opd_no", reg.OPDNo).
			Msg("failed to import HIS registration")
		metrics.RecordHISImport("error")
		return
	}

	metrics.RecordHISImport("imported")
	metrics.RecordPatientRegistered("his")
	a.log.Info().
		Str("opd_no", p.OPDNo).
		Str("patient_id", p.ID.String()).
		Msg("imported patient from HIS")

	if a.bus != nil {
		event := events.NewEvent("patient.registered", "his", map[string]any{
			"patient_id":      p.ID,
			"opd_no":          p.OPDNo,
			"registration_id": reg.RegistrationID,
		}).WithActor("", "system", "")
		if err := a.bus.Publish(ctx, event); err != nil {
			a.log.Error().Err(err).Msg("failed to publish import event")
		}
	}
}
