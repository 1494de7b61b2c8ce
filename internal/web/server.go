// Package web serves editable tables over HTTP: HTML pages, a JSON API that
// drives each table's controller, and a websocket change feed.
package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/editgrid/internal/config"
	mw "github.com/JonMunkholm/editgrid/internal/web/middleware"
)

//go:embed static
var staticFiles embed.FS

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Server is the HTTP server for the table UI and API.
type Server struct {
	cfg     *config.Config
	tables  *Tables
	hub     *Hub
	router  *chi.Mux
	server  *http.Server
	limiter *rateLimiter
}

// NewServer creates a Server. hub may be nil, which disables the change feed.
func NewServer(cfg *config.Config, tables *Tables, hub *Hub) *Server {
	s := &Server{
		cfg:    cfg,
		tables: tables,
		hub:    hub,
		router: chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.limiter = newRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures middleware and all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger("/healthz"))
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "ok", "tables": len(s.tables.All())})
	})

	// The change feed stays open, so it skips compression and the timeout.
	if s.hub != nil {
		s.router.With(s.tableCtx).Get("/ws/{tableKey}", func(w http.ResponseWriter, r *http.Request) {
			ServeWs(s.hub, tableFrom(r.Context()), w, r)
		})
	}

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
		r.Use(s.securityHeaders)
		if s.limiter != nil {
			r.Use(s.limiter.middleware)
		}

		staticFS, err := fs.Sub(staticFiles, "static")
		if err != nil {
			panic(fmt.Sprintf("static files: %v", err))
		}
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

		// Pages
		r.Get("/", s.handleIndex)
		r.With(s.tableCtx).Get("/tables/{tableKey}", s.handleTablePage)

		r.Route("/api", func(r chi.Router) {
			r.Use(mw.APIKeyAuth(s.cfg.Security))

			r.Get("/tables", s.handleListTables)

			r.Route("/tables/{tableKey}", func(r chi.Router) {
				r.Use(s.tableCtx)

				r.Get("/", s.handleDefinition)
				r.Get("/state", s.handleState)
				r.Get("/view", s.handleView)
				r.Get("/export", s.handleExport)
				r.Get("/operations/{op}", s.handleOperation)

				r.Post("/reload", s.handleReload)
				r.Post("/pagination", s.handlePagination)
				r.Post("/selection", s.handleSelection)

				// Bulk editing
				r.Post("/edit-all", s.handleEditAll)
				r.Post("/cancel-all", s.handleCancelAll)
				r.Post("/save-all", s.handleSaveAll)

				// Row editing
				r.Post("/rows/{rowKey}/edit", s.handleStartEditing)
				r.Post("/rows/{rowKey}/cancel", s.handleCancelEditing)
				r.Post("/rows/{rowKey}/save", s.handleSaveRow)
				r.Patch("/rows/{rowKey}", s.handleUpdateField)
				r.Delete("/rows/{rowKey}", s.handleDeleteRow)

				// Adding rows
				r.Post("/draft", s.handleStartAdd)
				r.Patch("/draft", s.handleUpdateDraft)
				r.Delete("/draft", s.handleCancelAdd)
				r.Post("/draft/commit", s.handleCommitAdd)
			})
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if s.cfg.Security.EnableCSP {
			// The page script opens the websocket feed on the same host.
			w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self' ws: wss:")
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimiter is a fixed-window limiter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	now      func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every window until stop.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if rl.now().Sub(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[ip]
	if !exists || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware rate limits by client IP. TrustedRealIP has already resolved
// RemoteAddr.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if !rl.allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			respondErrorStatus(w, r, fmt.Errorf("rate limit exceeded for %s", ip), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
