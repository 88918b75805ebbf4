// Package api provides the HTTP API for the world and its time and frame
// services. GET endpoints are public. Admin POST endpoints require a bearer
// token. The conversion endpoints are rate limited per client.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/metaverse/internal/engine"
	"github.com/talgya/metaverse/internal/iers"
	"github.com/talgya/metaverse/internal/persistence"
)

const maxStreamConns = 16

// Server serves the world over HTTP.
type Server struct {
	Sim         *engine.Simulation
	Eng         *engine.Engine
	DB          *persistence.DB // Optional
	IERS        *iers.Provider  // Optional; nil serves the built-in tables
	WorldID     string
	Addr        string
	SnapshotDir string    // Empty disables snapshot files
	AdminKey    string    // Bearer token for admin endpoints. Empty = admin disabled.
	CORSOrigins []string  // Allowed in addition to local dev servers
	Proxies     ProxyList // Peers whose X-Forwarded-For is believed

	RateLimit     int // Conversions per RateWindow per client
	RateWindow    time.Duration
	ClockInterval time.Duration // Period of clock frames on the stream

	streamConns atomic.Int32
	upgrader    websocket.Upgrader
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	limit, window := s.RateLimit, s.RateWindow
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	convertLimiter := NewRateLimiter(limit, window)
	origins := s.allowedOrigins()
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origins[origin] || sameHost(origin, r.Host)
		},
	}

	mux := http.NewServeMux()

	// Public observation.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/time", s.handleTime)
	mux.HandleFunc("GET /api/v1/leapseconds", s.handleLeapSeconds)
	mux.HandleFunc("GET /api/v1/terrain", s.handleTerrain)
	mux.HandleFunc("GET /api/v1/sky", s.handleSky)
	mux.HandleFunc("GET /api/v1/weather", s.handleWeather)
	mux.HandleFunc("GET /api/v1/volcanoes", s.handleVolcanoes)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/contracts/findings", s.handleFindings)
	mux.HandleFunc("GET /api/v1/players", s.handlePlayers)
	mux.HandleFunc("GET /api/v1/players/{id}", s.handlePlayer)
	mux.HandleFunc("GET /api/v1/speed", s.handleSpeed)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Conversions.
	mux.HandleFunc("POST /api/v1/time/convert", RateLimitMiddleware(convertLimiter, s.Proxies, s.handleConvert))
	mux.HandleFunc("POST /api/v1/frames/transform", RateLimitMiddleware(convertLimiter, s.Proxies, s.handleTransform))
	mux.HandleFunc("POST /api/v1/contracts/verify", RateLimitMiddleware(convertLimiter, s.Proxies, s.handleVerify))
	mux.HandleFunc("POST /api/v1/players/{id}/position", s.handleMovePlayer)

	// Admin.
	mux.HandleFunc("POST /api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("POST /api/v1/snapshot", s.adminOnly(s.handleSnapshot))
	mux.HandleFunc("POST /api/v1/volcanoes/{id}/erupt", s.adminOnly(s.handleErupt))

	return corsMiddleware(origins, mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "")

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP shutdown", "error", err)
			return err
		}
		slog.Info("HTTP API stopped")
		return nil
	}
}

func (s *Server) allowedOrigins() map[string]bool {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range s.CORSOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed[origin] = true
		}
	}
	return allowed
}

// corsMiddleware adds CORS headers for allowed frontend origins.
func corsMiddleware(allowed map[string]bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sameHost(origin, host string) bool {
	origin = strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
	return origin == host
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly rejects requests without the admin bearer token.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			writeError(w, http.StatusForbidden, "admin endpoints disabled (no METAVERSE_ADMIN_KEY set)")
			return
		}
		if !s.checkBearerToken(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"world_id": s.WorldID,
		"speed":    s.Eng.Speed(),
		"running":  s.Eng.Running(),
		"status":   s.Sim.Status(),
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
