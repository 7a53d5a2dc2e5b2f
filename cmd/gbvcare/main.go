package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/openclinic-ke/gbvcare/internal/adapters/his"
	"github.com/openclinic-ke/gbvcare/internal/audit"
	"github.com/openclinic-ke/gbvcare/internal/export"
	"github.com/openclinic-ke/gbvcare/internal/followup"
	"github.com/openclinic-ke/gbvcare/internal/patient"
	"github.com/openclinic-ke/gbvcare/internal/reporting"
	"github.com/openclinic-ke/gbvcare/internal/shared/auth"
	"github.com/openclinic-ke/gbvcare/internal/shared/config"
	"github.com/openclinic-ke/gbvcare/internal/shared/database"
	"github.com/openclinic-ke/gbvcare/internal/shared/events"
	"github.com/openclinic-ke/gbvcare/internal/shared/metrics"
	secmiddleware "github.com/openclinic-ke/gbvcare/internal/shared/middleware"
	"github.com/openclinic-ke/gbvcare/internal/user"
)

// App holds the application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    events.EventBus
	HIS    *his.Adapter
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Server.Env)
	app := &App{Config: cfg}

	// The register lives in PostgreSQL; without it there is nothing to
	// serve.
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("database not available")
	}
	app.DB = db
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	// Event streaming is optional. Without it the audit trail only
	// receives what is written directly.
	if bus, err := events.NewBus(ctx, cfg.EventStore, log); err != nil {
		log.Warn().Err(err).Msg("event store not available, running without event streaming")
	} else {
		app.Bus = bus
		defer bus.Close()
		log.Info().Msg("event bus connected")
	}

	// Repositories
	patientRepo := patient.NewRepository(db.Pool)
	followupRepo := followup.NewRepository(db.Pool)
	reportingRepo := reporting.NewRepository(db.Pool)
	exportRepo := export.NewRepository(db.Pool)
	userRepo := user.NewRepository(db.Pool)
	auditRepo := audit.NewRepository(db.Pool)

	if err := auditRepo.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("audit initialization failed")
	}

	if app.Bus != nil {
		auditSubscriber := audit.NewSubscriber(auditRepo, log)
		if err := auditSubscriber.Start(ctx, app.Bus); err != nil {
			log.Warn().Err(err).Msg("audit subscriber failed to start")
		} else {
			log.Info().Msg("audit subscriber started")
		}
	}

	if err := user.Seed(ctx, userRepo, cfg.Auth, log); err != nil {
		log.Fatal().Err(err).Msg("admin seeding failed")
	}

	// Handlers
	patientHandler := patient.NewHandler(patientRepo, app.Bus)
	followupHandler := followup.NewHandler(followupRepo, app.Bus)
	reportingHandler := reporting.NewHandler(reportingRepo)
	exportHandler := export.NewHandler(exportRepo, app.Bus)
	userHandler := user.NewHandler(userRepo, cfg.Auth, app.Bus)
	auditHandler := audit.NewHandler(auditRepo)

	loginLimiter := secmiddleware.NewIPRateLimiter(cfg.Auth.LoginRatePerMinute, cfg.Auth.LoginBurst)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.BodyLimit)
	r.Use(secmiddleware.CORS(secmiddleware.DefaultCORSConfig()))
	r.Use(secmiddleware.RequestLogger(log))
	r.Use(metrics.Middleware)

	// Unauthenticated endpoints
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/", infoHandler)

	r.Route("/api/v1", func(r chi.Router) {
		// Login sits outside the auth middleware, behind the per-IP
		// rate limiter.
		r.Route("/auth", func(r chi.Router) {
			r.Use(loginLimiter.Middleware)
			r.Mount("/", userHandler.AuthRoutes())
		})

		// Everything else requires a valid token.
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Auth))

			r.Route("/patients", func(r chi.Router) {
				r.Mount("/{patientID}/follow-ups", followupHandler.PatientRoutes())
				r.Mount("/", patientHandler.Routes())
			})
			r.Mount("/follow-ups", followupHandler.Routes())
			r.Mount("/", reportingHandler.Routes())
			r.Mount("/exports", exportHandler.Routes())
			r.Mount("/users", userHandler.Routes())
			r.Mount("/audit", auditHandler.Routes())
		})
	})

	// HIS import runs alongside the API when configured
	if cfg.HIS.Enabled {
		adapter := his.New(cfg.HIS, patientRepo, app.Bus, log)
		if err := adapter.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("HIS adapter failed to start, continuing without imports")
		} else {
			app.HIS = adapter
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if app.HIS != nil {
			if err := app.HIS.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("HIS adapter shutdown error")
			}
		}

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
		close(done)
	}()

	log.Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Bool("event_bus", app.Bus != nil).
		Bool("his_import", app.HIS != nil).
		Msg("gbvcare server started")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}

	<-done
	log.Info().Msg("server stopped")
}

// newLogger builds the process logger. Development gets human-readable
// console output; everything else logs JSON.
func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "GBV Clinic Records Service",
		"version": "1.0.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"server": "ready"}

		if err := app.DB.Health(r.Context()); err != nil {
			checks["database"] = "not ready: " + err.Error()
		} else {
			checks["database"] = "ready"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["event_store"] = "not ready: " + err.Error()
			} else {
				checks["event_store"] = "ready"
			}
		} else {
			checks["event_store"] = "not configured"
		}

		if app.HIS != nil {
			if err := app.HIS.Health(r.Context()); err != nil {
				checks["his"] = "not ready: " + err.Error()
			} else {
				checks["his"] = "ready"
			}
		} else {
			checks["his"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
