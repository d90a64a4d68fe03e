// internal/server/server.go
package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"trcinventory/internal/auth"
	"trcinventory/internal/dashboard"
	"trcinventory/internal/data"
	"trcinventory/internal/ingredients"
	"trcinventory/internal/inventory"
	"trcinventory/internal/logger"
	"trcinventory/internal/middleware"
	"trcinventory/internal/pettycash"
	"trcinventory/internal/security"
)

const (
	requestTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Deps are the long-lived pieces the HTTP surface is built from.
type Deps struct {
	Backend  data.Backend
	Sessions *security.SessionManager
	Throttle *security.LoginThrottle
	Location *time.Location
}

type App struct {
	addr          string
	mux           *http.ServeMux
	connections   sync.WaitGroup
	totalRequests int64

	Auth        *auth.Service
	Ingredients *ingredients.Service
	Inventory   *inventory.Service
	PettyCash   *pettycash.Service
	Dashboard   *dashboard.Service
}

func New(addr string, d Deps) *App {
	a := &App{
		addr:        addr,
		Auth:        auth.NewService(d.Backend, d.Sessions, d.Throttle),
		Ingredients: ingredients.NewService(d.Backend),
		Inventory:   inventory.NewService(d.Backend, d.Location),
		PettyCash:   pettycash.NewService(d.Backend, d.Location),
		Dashboard:   dashboard.NewService(d.Backend),
	}
	a.mux = a.routes(d.Sessions)
	return a
}

// routes sets up the JSON API and the browser pages
func (a *App) routes(sessions *security.SessionManager) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	api := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.APIMiddleware(middleware.RequireSession(sessions, middleware.RejectAPI)(h))
	}
	page := middleware.RequireSession(sessions, middleware.RejectPage)

	mux.HandleFunc("/api/login", middleware.APIMiddleware(a.Auth.LoginHandler))
	mux.HandleFunc("/api/logout", api(a.Auth.LogoutHandler))
	mux.HandleFunc("/api/session", api(a.Auth.SessionHandler))
	mux.HandleFunc("/api/dashboard", api(a.Dashboard.SummaryHandler))

	mux.HandleFunc("/api/ingredients", api(a.Ingredients.CollectionHandler))
	mux.HandleFunc("/api/ingredients/{id}", api(a.Ingredients.ItemHandler))

	mux.HandleFunc("/api/inventory/snapshots", api(a.Inventory.SnapshotsHandler))
	mux.HandleFunc("/api/inventory/snapshots/{group}/lines", api(a.Inventory.LinesHandler))
	mux.HandleFunc("/api/inventory/lines/{id}", api(a.Inventory.LineHandler))

	mux.HandleFunc("/api/petty-cash/capitals", api(a.PettyCash.CapitalsHandler))
	mux.HandleFunc("/api/petty-cash/capitals/{group}/expenses", api(a.PettyCash.ExpensesHandler))
	mux.HandleFunc("/api/petty-cash/expenses/{id}", api(a.PettyCash.ExpenseHandler))

	pages := dashboard.NewPages(a.Dashboard, a.Auth)
	mux.HandleFunc("/login", pages.LoginHandler)
	mux.HandleFunc("/logout", page(pages.LogoutHandler))
	mux.HandleFunc("/dashboard", page(pages.DashboardHandler))
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})

	return mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         a.addr,
		Handler:      a.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	failed := make(chan error, 1)
	go func() {
		logger.LogInfo("Starting server on %s", a.addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			failed <- err
		}
	}()

	select {
	case err := <-failed:
		return err
	case <-ctx.Done():
	}
	logger.LogInfo("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.LogError("Server shutdown error: %v", err)
	}

	logger.LogInfo("Waiting for active connections to finish...")
	a.connections.Wait()
	logger.LogInfo("All connections closed. Total requests handled: %d", atomic.LoadInt64(&a.totalRequests))
	logger.LogInfo("Server shut down gracefully")
	return nil
}

// Handler assembles all middleware around the main mux
func (a *App) Handler() http.Handler {
	var handler http.Handler = a.mux

	handler = a.withCustom404(handler)
	handler = a.trackConnections(handler)
	handler = security.AddCORSHeaders(handler)
	handler = withTimeout(handler, requestTimeout)

	return handler
}

// Middleware: timeout handler
func withTimeout(h http.Handler, timeout time.Duration) http.Handler {
	return http.TimeoutHandler(h, timeout, "Request timed out")
}

// Middleware: track active connections and total requests
func (a *App) trackConnections(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.connections.Add(1)
		atomic.AddInt64(&a.totalRequests, 1)
		defer a.connections.Done()

		h.ServeHTTP(w, r)
	})
}

// Middleware: unknown routes get a JSON error under /api and a small page elsewhere.
// Handlers that answer 404 themselves are left alone.
func (a *App) withCustom404(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, pattern := a.mux.Handler(r); pattern != "" {
			h.ServeHTTP(w, r)
			return
		}

		logger.LogInfo("404 not found: %s", r.URL.Path)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			middleware.WriteAPIError(w, r, http.StatusNotFound, "not_found", "No such endpoint", r.URL.Path)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`
			<html><body>
				<h1>404 - Page Not Found</h1>
				<p>Sorry, the page you requested was not found.</p>
				<a href="/dashboard">Return to Dashboard</a>
			</body></html>
		`))
	})
}
