package monitoring

import (
	"context"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// ServiceHealth is the body served on /health
type ServiceHealth struct {
	Service       string                `json:"service"`
	Version       string                `json:"version"`
	Status        string                `json:"status"` // "healthy", "degraded", "unhealthy"
	UptimeSeconds int64                 `json:"uptime_seconds"`
	StartTime     time.Time             `json:"start_time"`
	Connections   map[string]ConnStatus `json:"connections"`
	Documents     DocumentProgress      `json:"documents"`
}

// ConnStatus reports the last check of an external service
type ConnStatus struct {
	Status    string `json:"status"` // "connected", "error"
	Latency   int64  `json:"latency_ms,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// DocumentProgress counts the documents a run has finished
type DocumentProgress struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// HealthChecker tracks external connections and document progress
type HealthChecker struct {
	serviceName string
	version     string
	startTime   time.Time

	mu          sync.RWMutex
	connections map[string]ConnStatus
	documents   DocumentProgress
}

// NewHealthChecker creates a new health checker instance
func NewHealthChecker(serviceName, version string) *HealthChecker {
	return &HealthChecker{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		connections: make(map[string]ConnStatus),
	}
}

// UpdateConnection updates the status of a connection
func (h *HealthChecker) UpdateConnection(name, status string, latencyMs int64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cs := ConnStatus{Status: status, Latency: latencyMs}
	if err != nil {
		cs.LastError = err.Error()
	}
	h.connections[name] = cs
}

// DocumentDone records a finished document
func (h *HealthChecker) DocumentDone(success bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if success {
		h.documents.Succeeded++
	} else {
		h.documents.Failed++
	}
}

// GetHealth returns the current health status
func (h *HealthChecker) GetHealth() ServiceHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	errorCount := 0
	connections := make(map[string]ConnStatus, len(h.connections))
	for name, conn := range h.connections {
		if conn.Status == "error" {
			errorCount++
		}
		connections[name] = conn
	}

	// healthy -> degraded -> unhealthy
	status := "healthy"
	switch {
	case errorCount > 0 && errorCount*2 > len(h.connections):
		status = "unhealthy"
	case errorCount > 0, h.documents.Failed > 0:
		status = "degraded"
	}

	return ServiceHealth{
		Service:       h.serviceName,
		Version:       h.version,
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		StartTime:     h.startTime,
		Connections:   connections,
		Documents:     h.documents,
	}
}

// HealthHandler returns an HTTP handler for health checks
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		if err := json.NewEncoder(w).Encode(health); err != nil {
			RecordError("health", "encode")
		}
	}
}

// ConnectionMonitor periodically checks an external service
type ConnectionMonitor struct {
	name          string
	healthChecker *HealthChecker
	checkFunc     func(context.Context) error
	interval      time.Duration
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewConnectionMonitor creates a new connection monitor
func NewConnectionMonitor(name string, hc *HealthChecker, checkFunc func(context.Context) error, interval time.Duration) *ConnectionMonitor {
	return &ConnectionMonitor{
		name:          name,
		healthChecker: hc,
		checkFunc:     checkFunc,
		interval:      interval,
	}
}

// Start begins monitoring the connection until ctx is done or Stop is called
func (cm *ConnectionMonitor) Start(ctx context.Context) {
	ctx, cm.cancel = context.WithCancel(ctx)
	cm.done = make(chan struct{})
	go cm.monitor(ctx)
}

// Stop stops monitoring and waits for an in-flight check to finish
func (cm *ConnectionMonitor) Stop() {
	if cm.cancel == nil {
		return
	}
	cm.cancel()
	<-cm.done
}

func (cm *ConnectionMonitor) monitor(ctx context.Context) {
	defer close(cm.done)

	cm.performCheck(ctx)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cm.performCheck(ctx)
		}
	}
}

func (cm *ConnectionMonitor) performCheck(ctx context.Context) {
	start := time.Now()
	err := cm.checkFunc(ctx)
	latency := time.Since(start).Milliseconds()

	if ctx.Err() != nil {
		return
	}

	status := "connected"
	if err != nil {
		status = "error"
	}
	cm.healthChecker.UpdateConnection(cm.name, status, latency, err)
}
