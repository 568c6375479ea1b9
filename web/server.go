// Package web serves the REST API for displays and dashboards that pull
// rather than subscribe.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"linesign/config"
	"linesign/logging"
	"linesign/poller"
)

// DataProvider is the read surface the API serves from.
type DataProvider interface {
	Last() (poller.Update, bool)
	Status() poller.Status
}

// ProductionResponse is the JSON payload of GET /api/production.
type ProductionResponse struct {
	Line          string  `json:"line"`
	Plan          int     `json:"plan"`
	Actual        int     `json:"actual"`
	Remaining     int     `json:"remaining"`
	ProductType   int     `json:"product_type"`
	ProductName   string  `json:"product_name,omitempty"`
	RemainPallets int     `json:"remain_pallets"`
	RemainMinutes float64 `json:"remain_minutes"`
	InOperating   bool    `json:"in_operating"`
	Stale         bool    `json:"stale"`
	CapturedAt    string  `json:"captured_at"`
	PLCTime       string  `json:"plc_time"`
}

// SystemResponse is the JSON payload of GET /api/system.
type SystemResponse struct {
	Version   string `json:"version"`
	Line      string `json:"line"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Server is the HTTP server for the REST API.
type Server struct {
	config   config.WebConfig
	line     string
	version  string
	provider DataProvider

	server    *http.Server
	router    chi.Router
	running   bool
	startedAt time.Time
	mu        sync.RWMutex
}

// NewServer creates the web server.
func NewServer(cfg config.WebConfig, line, version string, provider DataProvider) *Server {
	s := &Server{
		config:   cfg,
		line:     line,
		version:  version,
		provider: provider,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/production", s.handleProduction)
		r.Get("/status", s.handleStatus)
		r.Get("/system", s.handleSystem)
	})

	s.router = r
}

// corsMiddleware adds CORS headers for API access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (s *Server) handleProduction(w http.ResponseWriter, r *http.Request) {
	update, ok := s.provider.Last()
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, "no production data captured yet")
		return
	}

	snap := update.Snapshot
	resp := ProductionResponse{
		Line:          s.line,
		Plan:          snap.Plan,
		Actual:        snap.Actual,
		Remaining:     snap.Remaining(),
		ProductType:   snap.ProductType,
		ProductName:   update.Product.Name,
		RemainPallets: update.RemainPallets,
		RemainMinutes: update.RemainMinutes,
		InOperating:   snap.InOperating,
		Stale:         update.Stale,
		CapturedAt:    snap.CapturedAt.UTC().Format(time.RFC3339),
		PLCTime:       snap.PLCTime.UTC().Format(time.RFC3339),
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.provider.Status())
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	startedAt := s.startedAt
	s.mu.RUnlock()

	uptime := time.Duration(0)
	if !startedAt.IsZero() {
		uptime = time.Since(startedAt).Round(time.Second)
	}
	s.writeJSON(w, SystemResponse{
		Version:   s.version,
		Line:      s.line,
		GoVersion: runtime.Version(),
		Uptime:    uptime.String(),
	})
}

// Start begins serving.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("web: server stopped: %v", err)
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}
	}()

	s.startedAt = time.Now()
	s.running = true
	return nil
}

// Stop halts the server gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.running = false
	s.server = nil
	return err
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Address returns the server address.
func (s *Server) Address() string {
	return fmt.Sprintf("http://%s:%d", s.config.Host, s.config.Port)
}
