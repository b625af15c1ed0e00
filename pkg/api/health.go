package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/metrics"
)

// Version is reported by /health; set by the binary at startup
var Version = "dev"

// ReadinessCheck is one named readiness probe. Check returns a short status
// string on success.
type ReadinessCheck struct {
	Name  string
	Check func() (string, error)
}

// ComponentsCheck passes once every critical component registered with
// metrics.SetCriticalComponents reports healthy
func ComponentsCheck() ReadinessCheck {
	return ReadinessCheck{
		Name: "components",
		Check: func() (string, error) {
			r := metrics.GetReadiness()
			if r.Status != "ready" {
				return "", errors.New(r.Message)
			}
			return "ready", nil
		},
	}
}

// HealthServer provides HTTP health check endpoints
type HealthServer struct {
	checks []ReadinessCheck
	mux    *http.ServeMux

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// NewHealthServer creates a new health check HTTP handler
func NewHealthServer(checks ...ReadinessCheck) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		checks: checks,
		mux:    mux,
	}

	// Register endpoints
	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	mux.HandleFunc("/components", metrics.HealthHandler())

	return hs
}

// Start serves the health endpoints until Shutdown. It returns
// http.ErrServerClosed once shut down, including when Shutdown came first.
func (hs *HealthServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	hs.mu.Lock()
	if hs.closed {
		hs.mu.Unlock()
		return http.ErrServerClosed
	}
	hs.server = server
	hs.mu.Unlock()

	return server.ListenAndServe()
}

// Shutdown stops the HTTP server, waiting for in-flight requests until ctx
// expires
func (hs *HealthServer) Shutdown(ctx context.Context) error {
	hs.mu.Lock()
	hs.closed = true
	server := hs.server
	hs.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler implements the /health endpoint
// This is a simple liveness check - returns 200 if the process is alive
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   Version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// readyHandler implements the /ready endpoint; every check must pass
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string, len(hs.checks))
	ready := true
	var message string

	for _, c := range hs.checks {
		result, err := c.Check()
		if err != nil {
			checks[c.Name] = "error: " + err.Error()
			ready = false
			if message == "" {
				message = c.Name + " not ready"
			}
			continue
		}
		checks[c.Name] = result
	}

	status := "ready"
	statusCode := http.StatusOK

	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// GetHandler returns the HTTP handler for embedding in other servers
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}
