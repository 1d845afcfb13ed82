package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ServiceVersion is reported in /health responses; set by the binary at
// build time via -ldflags if a real version string is wanted.
var ServiceVersion = "dev"

// Server is the long-running HTTP front door, mirroring the teacher's
// mux/health/readiness/graceful-shutdown shape, adapted from the bd RPC
// protocol to raw operation envelopes.
type Server struct {
	dispatch  func(ctx context.Context, env []byte) (*Response, error)
	log       *slog.Logger
	startedAt time.Time
	http      *http.Server
}

// NewServer wires a Server around dispatch, the function that turns a raw
// envelope body into a rendered wire Response.
func NewServer(addr string, dispatch func(ctx context.Context, env []byte) (*Response, error), log *slog.Logger) *Server {
	s := &Server{dispatch: dispatch, log: log, startedAt: time.Now()}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/", s.handleOperation)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start blocks serving until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutdownCtx)
	}()
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	requestID := uuid.NewString()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":            "healthy",
		"service":           "ironlake",
		"version":           ServiceVersion,
		"request_id":        requestID,
		"execution_time_ms": time.Since(s.startedAt).Milliseconds(),
	})
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeWire(w, CORSPreamble())
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeWire(w, FromError("", fmt.Errorf("read body: %w", err), 0))
		return
	}

	resp, err := s.dispatch(r.Context(), body)
	if err != nil {
		writeWire(w, FromError("", err, 0))
		return
	}
	writeWire(w, resp)
}

func writeWire(w http.ResponseWriter, resp *Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write([]byte(resp.Body))
}
