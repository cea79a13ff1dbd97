package daemon

import (
	"sync"
	"time"
)

// ComponentStatus is the health state of one component.
type ComponentStatus string

const (
	ComponentHealthy  ComponentStatus = "healthy"
	ComponentDegraded ComponentStatus = "degraded"
	ComponentFailed   ComponentStatus = "failed"
)

// ComponentHealth is the health record for a single component.
type ComponentHealth struct {
	Status      ComponentStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
	LastChecked time.Time       `json:"lastChecked"`
	Details     map[string]any  `json:"details,omitempty"`
}

// HealthStatus is the aggregate health snapshot served over HTTP.
type HealthStatus struct {
	Status     string                     `json:"status"`
	Ready      bool                       `json:"ready"`
	Uptime     time.Duration              `json:"uptime"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// criticalComponents fail the whole daemon when unhealthy. Everything else
// only degrades it; the entity service in particular is designed to be
// optional.
var criticalComponents = map[string]bool{
	"graph":    true,
	"pipeline": true,
}

// HealthManager aggregates per-component health. Safe for concurrent use.
type HealthManager struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	startedAt  time.Time
}

// NewHealthManager creates an empty health manager.
func NewHealthManager() *HealthManager {
	return &HealthManager{
		components: make(map[string]ComponentHealth),
		startedAt:  time.Now(),
	}
}

// UpdateComponent records the latest health for one component.
func (h *HealthManager) UpdateComponent(name string, health ComponentHealth) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if health.LastChecked.IsZero() {
		health.LastChecked = time.Now()
	}
	h.components[name] = health
}

// Status computes the aggregate snapshot. A failed critical component makes
// the daemon unhealthy and not ready; any other non-healthy component only
// degrades it.
func (h *HealthManager) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	ready := true
	components := make(map[string]ComponentHealth, len(h.components))
	for name, c := range h.components {
		components[name] = c
		if c.Status == ComponentHealthy {
			continue
		}
		if c.Status == ComponentFailed && criticalComponents[name] {
			status = "unhealthy"
			ready = false
		} else if status == "healthy" {
			status = "degraded"
		}
	}

	return HealthStatus{
		Status:     status,
		Ready:      ready,
		Uptime:     time.Since(h.startedAt),
		Components: components,
	}
}
