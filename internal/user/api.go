package user

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/openclinic-ke/gbvcare/internal/shared/auth"
	"github.com/openclinic-ke/gbvcare/internal/shared/config"
	"github.com/openclinic-ke/gbvcare/internal/shared/errors"
	"github.com/openclinic-ke/gbvcare/internal/shared/events"
	"github.com/openclinic-ke/gbvcare/internal/shared/metrics"
	"github.com/openclinic-ke/gbvcare/internal/shared/middleware"
	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

// Handler provides HTTP handlers for authentication and account
// management
type Handler struct {
	repo *Repository
	cfg  config.AuthConfig
	bus  events.EventBus
}

// NewHandler creates a new user handler
func NewHandler(repo *Repository, cfg config.AuthConfig, bus events.EventBus) *Handler {
	return &Handler{repo: repo, cfg: cfg, bus: bus}
}

// AuthRoutes registers the public authentication routes. The caller
// mounts them behind the login rate limiter.
func (h *Handler) AuthRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	return r
}

// Routes registers the account management routes, all admin-only
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(auth.RequireRole(auth.RoleAdmin))
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Delete("/{userID}", h.Delete)

	return r
}

// Login verifies credentials and issues a token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	u, err := h.repo.GetByUsername(r.Context(), req.Username)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password))
	}
	if err != nil {
		metrics.RecordLogin(false)
		h.publish(r, "auth.login_failed", types.ID(""), map[string]any{
			"username": req.Username,
		})
		// Same answer for unknown user and wrong password.
		writeError(w, errors.Unauthorized("invalid username or password"))
		return
	}

	token, err := auth.IssueToken(h.cfg, u.ID, u.Username, u.Role, time.Now())
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	metrics.RecordLogin(true)
	h.publish(r, "auth.login", u.ID, map[string]any{
		"username": u.Username,
		"role":     u.Role,
	})

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: u})
}

// List lists all staff accounts
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.repo.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": users})
}

// Create creates a staff account
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := validateCreate(&req); err != nil {
		writeError(w, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	u := &User{
		ID:           types.NewID(),
		Username:     req.Username,
		PasswordHash: string(hash),
		Role:         auth.Role(req.Role),
	}

	if err := h.repo.Create(r.Context(), u); err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, "user.created", u.ID, map[string]any{
		"username": u.Username,
		"role":     u.Role,
	})

	writeJSON(w, http.StatusCreated, u)
}

func validateCreate(req *CreateRequest) error {
	details := map[string]string{}
	if req.Username == "" {
		details["username"] = "username is required"
	}
	if len(req.Password) < 8 {
		details["password"] = "password must be at least 8 characters"
	}
	if !auth.ValidRole(req.Role) {
		details["role"] = "role must be admin or nurse"
	}
	if len(details) > 0 {
		return errors.Validation("validation failed", details)
	}
	return nil
}

// Delete removes a staff account. Admins cannot delete themselves,
// which keeps at least one working admin login around.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid user ID"))
		return
	}

	if current := auth.GetUser(r.Context()); current != nil && current.ID == id {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"user_id": "you cannot delete your own account",
		}))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, "user.deleted", id, map[string]any{"user_id": id})

	w.WriteHeader(http.StatusNoContent)
}

// Seed creates the default admin account on an empty user table so a
// fresh install has a working login. A blank configured password
// disables seeding.
func Seed(ctx context.Context, repo *Repository, cfg config.AuthConfig, log zerolog.Logger) error {
	if cfg.DefaultAdminPassword == "" {
		return nil
	}

	n, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DefaultAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return errors.Internal(err)
	}

	u := &User{
		ID:           types.NewID(),
		Username:     cfg.DefaultAdminUser,
		PasswordHash: string(hash),
		Role:         auth.RoleAdmin,
	}

	if err := repo.Create(ctx, u); err != nil {
		return err
	}

	log.Info().Str("username", u.Username).Msg("seeded default admin account")
	return nil
}

// publish emits an auth or account event
func (h *Handler) publish(r *http.Request, eventType string, actorID types.ID, data map[string]any) {
	if h.bus == nil {
		return
	}

	if actorID == "" {
		if user := auth.GetUser(r.Context()); user != nil {
			actorID = user.ID
		}
	}

	event := events.NewEvent(eventType, "user", data).
		WithActor(actorID, "staff", middleware.ClientIP(r))

	h.bus.Publish(r.Context(), event)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
