// Package httpapi is the HTTP surface of the lending service. Form posts are
// answered with a redirect plus a flash message; read views are JSON
// documents for an external renderer.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/booklend/internal/logging"
	"github.com/dmitrijs2005/booklend/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

// Pinger reports store reachability for the health endpoint.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	address string
	logger  logging.Logger
	users   *services.UserService
	lending *services.LendingService
	catalog *services.CatalogService
	store   Pinger

	// SecureCookies marks session cookies Secure; enable behind TLS.
	SecureCookies bool
}

func NewServer(address string, l logging.Logger, us *services.UserService, ls *services.LendingService, cs *services.CatalogService, store Pinger) *Server {
	return &Server{
		address: address,
		logger:  l.With("module", "http_server"),
		users:   us,
		lending: ls,
		catalog: cs,
		store:   store,
	}
}

// Handler returns the routed handler wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.root)
	mux.HandleFunc("GET /health", s.health)

	mux.HandleFunc("GET /signup", s.signupForm)
	mux.HandleFunc("POST /signup", s.signup)
	mux.HandleFunc("GET /login", s.loginForm)
	mux.HandleFunc("POST /login", s.login)
	mux.HandleFunc("GET /logout", s.logout)
	mux.HandleFunc("POST /logout", s.logout)

	mux.HandleFunc("GET /catalog", s.listCatalog)
	mux.HandleFunc("GET /book/{id}", s.bookDetail)

	mux.HandleFunc("POST /borrow/{id}", s.borrow)
	mux.HandleFunc("POST /return/{id}", s.returnBook)
	mux.HandleFunc("GET /my-borrows", s.myBorrows)

	mux.HandleFunc("GET /admin", s.adminDashboard)
	mux.HandleFunc("POST /admin/add", s.addBook)
	mux.HandleFunc("GET /admin/edit/{id}", s.editBookForm)
	mux.HandleFunc("POST /admin/edit/{id}", s.editBook)
	mux.HandleFunc("POST /admin/delete/{id}", s.deleteBook)
	mux.HandleFunc("POST /admin/covers/{id}", s.requestCoverUpload)

	return s.logRequests(s.identify(mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/catalog", http.StatusSeeOther)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.PingContext(r.Context()); err != nil {
		s.logger.Error(r.Context(), "store unreachable", "error", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}
