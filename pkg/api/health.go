package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/caephub/pkg/engine"
	"github.com/cuemby/caephub/pkg/metrics"
)

// HealthServer provides HTTP health check endpoints.
type HealthServer struct {
	engine *engine.Engine
	mux    *http.ServeMux
}

// NewHealthServer creates a new health check HTTP server over eng. A nil
// engine is accepted so the server can be constructed and its handlers
// exercised before the engine has finished joining a cluster.
func NewHealthServer(eng *engine.Engine) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		engine: eng,
		mux:    mux,
	}

	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start starts the health check HTTP server.
func (hs *HealthServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// HealthResponse is the /health endpoint's body.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ReadyResponse is the /ready endpoint's body.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler is a liveness check: 200 if the process is alive,
// independent of whether the engine has a leader or the store is
// reachable (that's /ready's job).
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   "0.1.0",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// readyHandler checks whether the service is ready to accept tool calls:
// the engine is initialized (its Raft role, leader or follower, is
// reported but does not affect readiness) and the underlying store
// answers a basic read.
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true
	var message string

	if hs.engine != nil {
		if hs.engine.IsLeader() {
			checks["raft"] = "leader"
		} else {
			checks["raft"] = "follower"
		}
	} else {
		checks["raft"] = "not initialized"
		ready = false
		message = "engine not initialized"
	}

	if hs.engine != nil {
		if _, err := hs.engine.Store().ListAgents(); err != nil {
			checks["storage"] = fmt.Sprintf("error: %v", err)
			ready = false
			if message == "" {
				message = "storage not accessible"
			}
		} else {
			checks["storage"] = "ok"
		}
	} else {
		checks["storage"] = "not initialized"
		ready = false
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

// GetHandler returns the HTTP handler for embedding in other servers.
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}
