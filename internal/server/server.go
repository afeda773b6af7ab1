package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hud-code/binqr-server/internal/email"
	"github.com/hud-code/binqr-server/internal/handler"
	"github.com/hud-code/binqr-server/internal/images"
	"github.com/hud-code/binqr-server/internal/lifecycle"
	"github.com/hud-code/binqr-server/internal/middleware"
	"github.com/hud-code/binqr-server/internal/store"
	ws "github.com/hud-code/binqr-server/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	profileH     *handler.ProfileHandler
	locationH    *handler.LocationHandler
	boxH         *handler.BoxHandler
	scanH        *handler.ScanHandler
	imageH       *handler.ImageHandler
	sessionStore *store.SessionStore
	codeStore    *store.VerificationStore
	lifecycle    *lifecycle.Manager
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, emailClient *email.Client, imageCfg images.S3Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	codeStore := store.NewVerificationStore(db)
	profileStore := store.NewProfileStore(db)
	locationStore := store.NewLocationStore(db)
	boxStore := store.NewBoxStore(db)

	lm := lifecycle.NewManager(userStore, profileStore)
	imageStore := images.NewStore(imageCfg)

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, sessionStore, codeStore, profileStore, lm, emailClient, hub, logger.With("component", "auth")),
		profileH:     handler.NewProfileHandler(profileStore, logger.With("component", "profile")),
		locationH:    handler.NewLocationHandler(locationStore, hub, logger.With("component", "location")),
		boxH:         handler.NewBoxHandler(boxStore, hub, logger.With("component", "box")),
		scanH:        handler.NewScanHandler(boxStore, logger.With("component", "scan")),
		imageH:       handler.NewImageHandler(imageStore, boxStore, hub, logger.With("component", "image")),
		sessionStore: sessionStore,
		codeStore:    codeStore,
		lifecycle:    lm,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// VerificationStore returns the verification code store for cleanup tasks.
func (s *Server) VerificationStore() *store.VerificationStore {
	return s.codeStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Authenticated routes reachable from any lifecycle stage; a user who
	// has not confirmed their email still needs these to make progress.
	authedMux := http.NewServeMux()
	authedMux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	authedMux.HandleFunc("GET /api/auth/status", s.authH.Status)
	authedMux.HandleFunc("POST /api/auth/verify", s.authH.Verify)
	authedMux.HandleFunc("POST /api/auth/resend", s.rateLimitedHandler(s.authH.ResendCode))
	authedMux.HandleFunc("POST /api/auth/onboarding/complete", s.authH.CompleteOnboarding)
	authedMux.HandleFunc("GET /api/profile", s.profileH.Get)
	authedMux.HandleFunc("PUT /api/profile", s.profileH.Update)

	// Real-time sync. Available from any stage so a device waiting on
	// email confirmation hears about it without polling.
	authedMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	// Inventory routes require a fully active account
	activeMux := http.NewServeMux()
	s.registerInventoryRoutes(activeMux)
	authedMux.Handle("/", middleware.RequireActive(activeMux))

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.lifecycle)
	outerMux.Handle("/", authMiddleware(authedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerInventoryRoutes(mux *http.ServeMux) {
	// Location routes
	mux.HandleFunc("GET /api/locations", s.locationH.List)
	mux.HandleFunc("POST /api/locations", s.locationH.Create)
	mux.HandleFunc("GET /api/locations/{id}", s.locationH.Get)
	mux.HandleFunc("PUT /api/locations/{id}", s.locationH.Update)
	mux.HandleFunc("DELETE /api/locations/{id}", s.locationH.Delete)

	// Box routes
	mux.HandleFunc("GET /api/boxes", s.boxH.List)
	mux.HandleFunc("POST /api/boxes", s.boxH.Create)
	mux.HandleFunc("GET /api/boxes/search", s.boxH.Search)
	mux.HandleFunc("GET /api/boxes/{id}", s.boxH.Get)
	mux.HandleFunc("PUT /api/boxes/{id}", s.boxH.Update)
	mux.HandleFunc("DELETE /api/boxes/{id}", s.boxH.Delete)
	mux.HandleFunc("POST /api/boxes/{id}/qr/reissue", s.boxH.ReissueQR)
	mux.HandleFunc("POST /api/boxes/{id}/image", s.imageH.Upload)

	// Scan routes
	mux.HandleFunc("POST /api/scan", s.scanH.Resolve)
	mux.HandleFunc("GET /api/scan", s.scanH.Status)
	mux.HandleFunc("POST /api/scan/reset", s.scanH.Reset)
}
