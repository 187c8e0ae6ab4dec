package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dubline/internal/api"
	"dubline/internal/config"
	"dubline/internal/logging"
	"dubline/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	handler  http.Handler
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("POST /api/workflows", srv.handleCreate)
	mux.HandleFunc("GET /api/workflows", srv.handleList)
	mux.HandleFunc("GET /api/workflows/{id}", srv.handleShow)
	mux.HandleFunc("DELETE /api/workflows/{id}", srv.handleDelete)
	mux.HandleFunc("POST /api/workflows/{id}/upload", srv.handleUpload)
	mux.HandleFunc("POST /api/workflows/{id}/ingest", srv.handleIngest)
	mux.HandleFunc("POST /api/workflows/{id}/transcribe", srv.handleTranscribe)
	mux.HandleFunc("PUT /api/workflows/{id}/transcript", srv.handleSaveTranscript)
	mux.HandleFunc("POST /api/workflows/{id}/translate", srv.handleTranslate)
	mux.HandleFunc("PUT /api/workflows/{id}/translations", srv.handleSaveTranslations)
	mux.HandleFunc("POST /api/workflows/{id}/synthesize", srv.handleSynthesize)
	mux.HandleFunc("POST /api/workflows/{id}/lipsync", srv.handleLipSync)
	mux.HandleFunc("POST /api/workflows/{id}/lipsync/await", srv.handleAwait)
	mux.HandleFunc("DELETE /api/workflows/{id}/lipsync/{lang}", srv.handleCancel)
	mux.HandleFunc("GET /api/download/{key...}", srv.handleDownload)

	srv.handler = srv.withRequestContext(withCORS(mux))
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.log().Info("api server disabled (no bind address)")
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		// Uploads and lip-sync awaits hold the connection for minutes.
		ReadTimeout: 10 * time.Minute,
		IdleTimeout: 60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.server = nil
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// withCORS allows browser clients on any origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		ctx := services.WithRequestID(r.Context(), requestID)
		started := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		logging.WithContext(ctx, s.log()).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		Store:        status.Store,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Languages:    status.Languages,
		Workflows:    status.Workflows,
		ActivePolls:  status.ActivePolls,
		StageHealth:  api.FromHealth(status.StageHealth),
		Dependencies: api.FromDependencies(status.Dependencies),
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

// writeError maps err to a status and the structured error body.
func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := api.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.log()).Warn("api request failed",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.FromError(err))
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
