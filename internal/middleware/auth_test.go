package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hud-code/binqr-server/internal/auth"
	"github.com/hud-code/binqr-server/internal/database"
	"github.com/hud-code/binqr-server/internal/lifecycle"
	"github.com/hud-code/binqr-server/internal/store"
)

func setupAuthMiddlewareDB(t *testing.T) (*store.SessionStore, *store.UserStore, *store.ProfileStore, *lifecycle.Manager) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	us := store.NewUserStore(db)
	ps := store.NewProfileStore(db)
	return store.NewSessionStore(db), us, ps, lifecycle.NewManager(us, ps)
}

func TestRequireAuthNoToken(t *testing.T) {
	ss, _, _, lm := setupAuthMiddlewareDB(t)

	handler := RequireAuth(ss, lm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/boxes", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	ss, _, _, lm := setupAuthMiddlewareDB(t)

	handler := RequireAuth(ss, lm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/boxes", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidSession(t *testing.T) {
	ss, us, _, lm := setupAuthMiddlewareDB(t)

	u, _ := us.Create("alice@example.com", "hash", "Alice")
	sess, _ := ss.Create(u.ID)

	var gotAC auth.AuthContext
	handler := RequireAuth(ss, lm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected AuthContext in request context")
		}
		gotAC = ac
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/auth/status", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotAC.UserID != u.ID {
		t.Errorf("UserID = %q, want %q", gotAC.UserID, u.ID)
	}
	if gotAC.State != lifecycle.StatePendingVerification {
		t.Errorf("State = %q, want %q (unverified user)", gotAC.State, lifecycle.StatePendingVerification)
	}
}

func TestRequireActiveBlocksPending(t *testing.T) {
	ss, us, _, lm := setupAuthMiddlewareDB(t)

	u, _ := us.Create("alice@example.com", "hash", "Alice")
	sess, _ := ss.Create(u.ID)

	handler := RequireAuth(ss, lm)(RequireActive(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("pending-verification session must not reach the inventory")
	})))

	req := httptest.NewRequest("GET", "/api/boxes", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequireActiveAllowsActive(t *testing.T) {
	ss, us, ps, lm := setupAuthMiddlewareDB(t)

	u, _ := us.Create("alice@example.com", "hash", "Alice")
	us.MarkEmailConfirmed(u.ID)
	ps.EnsureExists(u)
	ps.SetOnboardingComplete(u.ID)
	sess, _ := ss.Create(u.ID)

	reached := false
	handler := RequireAuth(ss, lm)(RequireActive(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest("GET", "/api/boxes", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !reached {
		t.Fatal("active session should reach the handler")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
