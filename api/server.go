/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client IP from X-Forwarded-For / X-Real-IP
  3. Logger:     Request logging through zap
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the frontend
  6. Identity:   Resolves the signed-in user from proxy headers

ROUTE GROUPS:
  /api/user, /api/types   Current user and leave types
  /api/entries            Record listing
  /api/entry/batch        Batch submission
  /api/leave/*            Approval links (rate limited per IP)
  /api/employees/*        Usage reports
  /api/admin/*            Directory administration (admin role)
  /api/debug/headers      Identity diagnostics (debug only)
  /*                      Static files (frontend)

SECURITY NOTE:
  Authentication is delegated to the reverse proxy. Approval links are
  authorized by their token alone.

SEE ALSO:
  - handlers.go: Handler implementations
  - identity.go: Identity middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Identity       *IdentityResolver
	AllowedOrigins []string
	StaticDir      string
	Debug          bool

	// Approval link throttling per client IP.
	RatePerSecond float64
	RateBurst     int
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	if opts.Identity != nil {
		r.Use(opts.Identity.Middleware)
	}

	perSecond, burst := opts.RatePerSecond, opts.RateBurst
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 10
	}
	linkLimiter := NewIPRateLimiter(rate.Limit(perSecond), burst)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/user", h.GetUser)
		r.Get("/types", h.ListTypes)
		r.Get("/entries", h.ListEntries)
		r.Post("/entry/batch", h.SubmitBatch)

		// Approval link routes
		r.Route("/leave", func(r chi.Router) {
			r.Use(RateLimitByIP(linkLimiter))
			r.Get("/approve", h.ApproveLeave)
			r.Get("/reject", h.RejectLeave)
		})

		r.Get("/employees/{id}/summary", h.GetSummary)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/users", h.ListUsers)
			r.Post("/users", h.UpsertUser)
			r.Patch("/users/{employeeId}", h.SetUserRole)
			r.Delete("/users/{employeeId}", h.DeleteUser)
		})

		if opts.Debug {
			r.Get("/debug/headers", h.DebugHeaders)
		}
	})

	mountStatic(r, opts.StaticDir)
	return r
}

// mountStatic serves the frontend from dir, falling back to index.html for
// client-side routes, or a placeholder page when dir does not exist.
func mountStatic(r chi.Router, staticDir string) {
	if staticDir != "" {
		if _, err := os.Stat(staticDir); err == nil {
			fileServer := http.FileServer(http.Dir(staticDir))
			r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
				fullPath := filepath.Join(staticDir, filepath.Clean("/"+r.URL.Path))

				// Check if file exists
				if _, err := os.Stat(fullPath); os.IsNotExist(err) {
					http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
					return
				}
				fileServer.ServeHTTP(w, r)
			})
			return
		}
	}

	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Leave Tracker</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Leave Tracker API</h1>
<p>The frontend is not deployed. Set <code>server.static_dir</code> to the built UI.</p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/user">/api/user</a> - Current user</li>
<li><a href="/api/entries">/api/entries</a> - All entries</li>
<li><a href="/api/types">/api/types</a> - Leave types</li>
</ul>
</body>
</html>`))
	})
}

// RequestLogger logs one line per request through zap.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("elapsed", time.Since(start)),
					zap.String("remote_ip", r.RemoteAddr),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
