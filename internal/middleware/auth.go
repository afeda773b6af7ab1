package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hud-code/binqr-server/internal/auth"
	"github.com/hud-code/binqr-server/internal/lifecycle"
	"github.com/hud-code/binqr-server/internal/store"
)

// RequireAuth validates the bearer token, derives the caller's lifecycle
// state, and populates AuthContext. Every store operation downstream is
// scoped to the user id placed here; without a valid session nothing
// proceeds.
func RequireAuth(sessions *store.SessionStore, lm *lifecycle.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthenticated(w)
				return
			}

			sess, err := sessions.GetByToken(token)
			if err != nil || sess == nil {
				unauthenticated(w)
				return
			}

			state, _, err := lm.Evaluate(sess)
			if err != nil || state == lifecycle.StateUnauthenticated {
				unauthenticated(w)
				return
			}

			ac := auth.AuthContext{
				UserID:    sess.UserID,
				SessionID: sess.ID,
				State:     state,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActive gates the inventory surface: only sessions whose derived
// lifecycle state is Active may pass. Pending-verification and onboarding
// sessions get a 403 naming the state they are stuck in.
func RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := auth.State(r.Context())
		if state != lifecycle.StateActive {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "account is not active",
				"state": string(state),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return token
	}
	return ""
}

func unauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
