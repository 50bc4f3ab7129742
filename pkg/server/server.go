package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gorilla/websocket"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energydash/pkg/display"
	"github.com/raterudder/energydash/pkg/log"
)

// tokenVerifier validates an OIDC ID token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)

// Poller is the polling controller as seen by the API: the single toggle for
// all feeds plus the last realtime reading.
type Poller interface {
	Enabled() bool
	SetEnabled(enabled bool)
	LastSample() (float64, bool)
}

// Dashboard is the source of dashboard snapshots.
type Dashboard interface {
	Snapshot() display.Snapshot
	Subscribe() (<-chan struct{}, func())
}

// Server exposes the dashboard state and the polling toggle over HTTP.
type Server struct {
	polling   Poller
	dashboard Dashboard

	listenAddr string
	httpServer *http.Server
	upgrader   websocket.Upgrader
	now        func() time.Time

	adminEmails  []string
	oidcAudience string
	verifier     tokenVerifier
	serverName   string
}

// New returns a Server without authentication.
func New(polling Poller, dashboard Dashboard, listenAddr string) *Server {
	return &Server{
		polling:    polling,
		dashboard:  dashboard,
		listenAddr: listenAddr,
		now:        time.Now,
		serverName: "energydash",
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(polling Poller, dashboard Dashboard) *Server {
	srv := New(polling, dashboard, "")
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	adminEmails := lflag.String("admin-emails", "", "comma-delimited list of email addresses allowed to toggle polling")
	oidcAudience := lflag.String("oidc-audience", "", "audience to validate id tokens against, empty disables authentication")
	oidcIssuer := lflag.String("oidc-issuer", "https://accounts.google.com", "issuer of the id tokens")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		if *adminEmails != "" {
			for _, email := range strings.Split(*adminEmails, ",") {
				if email = strings.TrimSpace(email); email != "" {
					srv.adminEmails = append(srv.adminEmails, email)
				}
			}
		}
		if *oidcAudience == "" {
			if len(srv.adminEmails) > 0 {
				log.Ctx(context.Background()).Warn("admin-emails is ignored without oidc-audience")
			}
			return
		}
		if len(srv.adminEmails) == 0 {
			log.Ctx(context.Background()).Error("admin-emails is required when oidc-audience is set")
			os.Exit(1)
		}
		provider, err := oidc.NewProvider(context.Background(), *oidcIssuer)
		if err != nil {
			log.Ctx(context.Background()).Error("failed to initialize OIDC provider", slog.String("issuer", *oidcIssuer), slog.Any("error", err))
			os.Exit(1)
		}
		srv.oidcAudience = *oidcAudience
		srv.verifier = provider.Verifier(&oidc.Config{ClientID: *oidcAudience}).Verify
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	apiMux.HandleFunc("GET /api/polling", s.handleGetPolling)
	apiMux.Handle("POST /api/polling", s.authMiddleware(http.HandlerFunc(s.handleSetPolling)))

	mux := http.NewServeMux()
	mux.Handle("/api/", gziphandler.GzipHandler(apiMux))
	// the stream bypasses gzip since the upgrade needs to hijack the connection
	mux.HandleFunc("GET /api/stream", s.handleStream)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(s.securityHeadersMiddleware(mux))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}
