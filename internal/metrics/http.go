package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hardscan/hardscan/internal/util"
)

// HTTPHandler serves scrape and health endpoints for the daemon
type HTTPHandler struct {
	registry  *Registry
	startTime time.Time
}

// NewHTTPHandler creates an HTTP handler backed by the registry
func NewHTTPHandler(registry *Registry) *HTTPHandler {
	return &HTTPHandler{
		registry:  registry,
		startTime: time.Now(),
	}
}

// HandleHealth reports liveness of the daemon process
func (h *HTTPHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":  "healthy",
		"uptime":  time.Since(h.startTime).Seconds(),
		"version": "1.0.0",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// HandleReady reports readiness to serve scrapes
func (h *HTTPHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ready := map[string]interface{}{
		"status": "ready",
		"uptime": time.Since(h.startTime).Seconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(ready)
}

// HandleMetrics serves the registry in Prometheus text format
func (h *HTTPHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, h.registry.ExportPrometheus())
}

// StartServer serves metrics and health endpoints in the background.
// The caller owns the returned server and shuts it down on exit.
func StartServer(addr string, registry *Registry) *http.Server {
	handler := NewHTTPHandler(registry)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handler.HandleHealth)
	mux.HandleFunc("/ready", handler.HandleReady)
	mux.HandleFunc("/metrics", handler.HandleMetrics)

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.GetLogger().Error("metrics server failed", zap.Error(err))
		}
	}()

	return server
}
