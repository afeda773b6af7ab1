package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hud-code/binqr-server/internal/auth"
	"github.com/hud-code/binqr-server/internal/email"
	"github.com/hud-code/binqr-server/internal/lifecycle"
	"github.com/hud-code/binqr-server/internal/model"
	"github.com/hud-code/binqr-server/internal/store"
	"github.com/hud-code/binqr-server/internal/websocket"
)

const (
	maxCodeAttempts   = 5
	minPasswordLength = 8
)

type AuthHandler struct {
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	codeStore    *store.VerificationStore
	profileStore *store.ProfileStore
	lifecycle    *lifecycle.Manager
	emailClient  *email.Client
	hub          *websocket.Hub
	logger       *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	ss *store.SessionStore,
	vs *store.VerificationStore,
	ps *store.ProfileStore,
	lm *lifecycle.Manager,
	ec *email.Client,
	hub *websocket.Hub,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:    us,
		sessionStore: ss,
		codeStore:    vs,
		profileStore: ps,
		lifecycle:    lm,
		emailClient:  ec,
		hub:          hub,
		logger:       logger,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	existing, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "an account with this email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user, err := h.userStore.Create(req.Email, string(hash), strings.TrimSpace(req.FullName))
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	h.issueCode(user.Email)
	h.watchConfirmation(user.ID)

	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	state, profile, err := h.lifecycle.Evaluate(sess)
	if err != nil {
		h.logger.Error("evaluate lifecycle", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token":   sess.Token,
		"state":   state,
		"profile": profile,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		// Same response for unknown email and wrong password
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	state, profile, err := h.lifecycle.Evaluate(sess)
	if err != nil {
		h.logger.Error("evaluate lifecycle", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":   sess.Token,
		"state":   state,
		"profile": profile,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.sessionStore.Delete(ac.SessionID); err != nil {
		h.logger.Error("delete session", "error", err)
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

// Status reports the caller's lifecycle state and profile. Clients poll this
// while waiting for email confirmation to complete on another device.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	profile, err := h.profileStore.GetByUserID(ac.UserID)
	if err != nil {
		h.logger.Error("load profile", "error", err)
		writeError(w, http.StatusInternalServerError, "status failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"state":   ac.State,
		"profile": profile,
	})
}

type verifyRequest struct {
	Code string `json:"code"`
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Code = strings.TrimSpace(req.Code)

	user, err := h.userStore.GetByID(ac.UserID)
	if err != nil || user == nil {
		h.logger.Error("verify lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "verification failed")
		return
	}
	if user.EmailConfirmed() {
		h.respondWithState(w, ac)
		return
	}

	vc, err := h.codeStore.GetActiveByEmail(user.Email, store.PurposeVerifyEmail)
	if err != nil {
		h.logger.Error("load verification code", "error", err)
		writeError(w, http.StatusInternalServerError, "verification failed")
		return
	}
	if vc == nil {
		writeError(w, http.StatusBadRequest, "code expired, request a new one")
		return
	}
	if vc.Attempts >= maxCodeAttempts {
		writeError(w, http.StatusBadRequest, "too many attempts, request a new code")
		return
	}
	if vc.Token != req.Code {
		if _, err := h.codeStore.IncrementAttempts(vc.ID); err != nil {
			h.logger.Error("increment attempts", "error", err)
		}
		writeError(w, http.StatusBadRequest, "incorrect code")
		return
	}

	if err := h.codeStore.MarkUsed(vc.ID); err != nil {
		h.logger.Error("mark code used", "error", err)
		writeError(w, http.StatusInternalServerError, "verification failed")
		return
	}
	if _, err := h.userStore.MarkEmailConfirmed(user.ID); err != nil {
		h.logger.Error("mark email confirmed", "error", err)
		writeError(w, http.StatusInternalServerError, "verification failed")
		return
	}

	h.hub.Broadcast(user.ID, websocket.NewMessage("account", "verified", user.ID, nil))
	h.respondWithState(w, ac)
}

func (h *AuthHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := h.userStore.GetByID(ac.UserID)
	if err != nil || user == nil {
		h.logger.Error("resend lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "resend failed")
		return
	}
	if user.EmailConfirmed() {
		writeError(w, http.StatusBadRequest, "email already confirmed")
		return
	}

	h.issueCode(user.Email)
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *AuthHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	state, profile, err := h.lifecycle.CompleteOnboarding(ac.UserID)
	if err != nil {
		h.logger.Error("complete onboarding", "error", err)
		writeStoreError(w, err, "onboarding failed")
		return
	}

	h.hub.Broadcast(ac.UserID, websocket.NewMessage("account", "onboarded", ac.UserID, nil))
	writeJSON(w, http.StatusOK, map[string]any{
		"state":   state,
		"profile": profile,
	})
}

// watchConfirmation polls the user's confirmation status for the lifetime
// of a verification code and pushes an account event when it flips, so a
// device parked on the pending screen hears about a confirmation made
// elsewhere. The watch expires with the code.
func (h *AuthHandler) watchConfirmation(userID string) {
	p := lifecycle.NewPoller(
		func(ctx context.Context) (bool, error) {
			user, err := h.userStore.GetByID(userID)
			if err != nil {
				return false, err
			}
			return user != nil && user.EmailConfirmed(), nil
		},
		func() {
			h.hub.Broadcast(userID, websocket.NewMessage("account", "verified", userID, nil))
		},
		h.logger.With("component", "confirmation_watch"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	p.Start(ctx)
	go func() {
		<-ctx.Done()
		cancel()
		p.Stop()
	}()
}

// issueCode creates a fresh verification code and emails it. Without a
// configured email client the code is logged instead so local setups can
// still complete verification.
func (h *AuthHandler) issueCode(emailAddr string) {
	vc, err := h.codeStore.Create(emailAddr, store.PurposeVerifyEmail)
	if err != nil {
		h.logger.Error("create verification code", "error", err)
		return
	}

	if !h.emailClient.Configured() {
		h.logger.Info("verification code issued (email disabled)", "email", emailAddr, "code", vc.Token)
		return
	}
	if err := h.emailClient.SendVerificationCode(emailAddr, vc.Token); err != nil {
		h.logger.Error("send verification email", "error", err, "email", emailAddr)
	}
}

// respondWithState recomputes the lifecycle state after a mutation so the
// client sees the stage it just advanced to, not the one it arrived with.
func (h *AuthHandler) respondWithState(w http.ResponseWriter, ac auth.AuthContext) {
	state, profile, err := h.lifecycle.Evaluate(&model.Session{ID: ac.SessionID, UserID: ac.UserID})
	if err != nil {
		h.logger.Error("evaluate lifecycle", "error", err)
		writeError(w, http.StatusInternalServerError, "verification failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"state":   state,
		"profile": profile,
	})
}
