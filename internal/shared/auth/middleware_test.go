package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openclinic-ke/gbvcare/internal/shared/config"
	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := testConfig()
	id := types.NewID()

	token, err := IssueToken(cfg, id, "nurse1", RoleNurse, time.Now())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	var got *User
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetUser(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got == nil {
		t.Fatal("user missing from context")
	}
	if got.ID != id || got.Username != "nurse1" || got.Role != RoleNurse {
		t.Errorf("user = %+v", got)
	}
}

func TestMiddlewareRejections(t *testing.T) {
	cfg := testConfig()
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestMiddlewareExpiredToken(t *testing.T) {
	cfg := testConfig()

	token, err := IssueToken(cfg, types.NewID(), "admin", RoleAdmin, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	admin := &User{ID: types.NewID(), Username: "admin", Role: RoleAdmin}
	nurse := &User{ID: types.NewID(), Username: "nurse", Role: RoleNurse}

	handler := RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name string
		user *User
		want int
	}{
		{"admin allowed", admin, http.StatusOK},
		{"nurse forbidden", nurse, http.StatusForbidden},
		{"anonymous unauthorized", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("DELETE", "/", nil)
			if tt.user != nil {
				req = req.WithContext(WithUser(req.Context(), tt.user))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
