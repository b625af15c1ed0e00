package metrics

import (
	"net/http"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Overall statuses reported by GetHealth and GetReadiness
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// HealthStatus is the JSON body of the component endpoints
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// ComponentHealth is the last reported state of one process component
type ComponentHealth struct {
	Name    string
	Healthy bool
	Message string
	Updated time.Time
}

type componentRegistry struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	critical   map[string]bool
	startTime  time.Time
	version    string
}

var healthChecker = newHealthChecker()

func newHealthChecker() *componentRegistry {
	return &componentRegistry{
		components: make(map[string]ComponentHealth),
		critical:   map[string]bool{"api": true},
		startTime:  time.Now(),
	}
}

// SetCriticalComponents replaces the components readiness waits for. An SCM
// waits for "raft" and "api", a datanode for "volume", "scm" and "api".
func SetCriticalComponents(names ...string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.critical = make(map[string]bool, len(names))
	for _, n := range names {
		healthChecker.critical[n] = true
	}
}

// SetVersion sets the version string for health responses
func SetVersion(version string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.version = version
}

// RegisterComponent records the state of a component, replacing any earlier
// report for the same name
func RegisterComponent(name string, healthy bool, message string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.components[name] = ComponentHealth{
		Name:    name,
		Healthy: healthy,
		Message: message,
		Updated: time.Now(),
	}
}

// UpdateComponent is RegisterComponent for components already announced
func UpdateComponent(name string, healthy bool, message string) {
	RegisterComponent(name, healthy, message)
}

// GetHealth reports every registered component. A failing critical
// component makes the process unhealthy; any other failure only degrades it.
func GetHealth() HealthStatus {
	r := healthChecker
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := StatusHealthy
	components := make(map[string]string, len(r.components))
	var failing []string
	for name, comp := range r.components {
		if comp.Healthy {
			components[name] = StatusHealthy
			continue
		}
		components[name] = StatusUnhealthy + ": " + comp.Message
		failing = append(failing, name)
		if r.critical[name] {
			status = StatusUnhealthy
		} else if status == StatusHealthy {
			status = StatusDegraded
		}
	}

	out := r.status(status, components)
	if len(failing) > 0 {
		sort.Strings(failing)
		out.Message = "failing: " + joinNames(failing)
	}
	return out
}

// GetReadiness passes once every critical component has reported healthy
func GetReadiness() HealthStatus {
	r := healthChecker
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.critical))
	for n := range r.critical {
		names = append(names, n)
	}
	sort.Strings(names)

	status := StatusReady
	var message string
	components := make(map[string]string, len(names))
	for _, name := range names {
		comp, ok := r.components[name]
		switch {
		case !ok:
			components[name] = "not registered"
		case !comp.Healthy:
			components[name] = "not ready: " + comp.Message
		default:
			components[name] = StatusReady
			continue
		}
		if status == StatusReady {
			status = StatusNotReady
			message = "waiting for " + name
		}
	}

	out := r.status(status, components)
	out.Message = message
	return out
}

func (r *componentRegistry) status(status string, components map[string]string) HealthStatus {
	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Version:    r.version,
		Uptime:     time.Since(r.startTime).Round(time.Second).String(),
	}
}

func joinNames(names []string) string {
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}

// HealthHandler serves GetHealth; only an unhealthy process answers 503
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		h := GetHealth()
		code := http.StatusOK
		if h.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, h)
	}
}

// ReadyHandler serves GetReadiness
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		r := GetReadiness()
		code := http.StatusOK
		if r.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, r)
	}
}

// LivenessHandler answers 200 for as long as the process can serve HTTP
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		healthChecker.mu.RLock()
		uptime := time.Since(healthChecker.startTime).Round(time.Second).String()
		healthChecker.mu.RUnlock()
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive", "uptime": uptime})
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
