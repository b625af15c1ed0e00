package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealth(critical ...string) {
	healthChecker = newHealthChecker()
	if len(critical) > 0 {
		SetCriticalComponents(critical...)
	}
}

func TestRegisterComponent(t *testing.T) {
	resetHealth()

	RegisterComponent("volume", true, "mounted")

	require.Len(t, healthChecker.components, 1)
	comp := healthChecker.components["volume"]
	assert.True(t, comp.Healthy)
	assert.Equal(t, "mounted", comp.Message)
}

func TestGetHealth(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]bool
		wantStatus string
	}{
		{"all healthy", map[string]bool{"api": true, "raft": true}, "healthy"},
		{"non-critical failing", map[string]bool{"api": true, "raft": false}, "degraded"},
		{"critical failing", map[string]bool{"api": false, "raft": true}, "unhealthy"},
		{"nothing registered", nil, "healthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth()
			SetVersion("1.0.0")
			for name, healthy := range tt.components {
				RegisterComponent(name, healthy, "not connected")
			}

			health := GetHealth()
			assert.Equal(t, tt.wantStatus, health.Status)
			assert.Equal(t, "1.0.0", health.Version)
			assert.Len(t, health.Components, len(tt.components))
		})
	}
}

func TestGetReadiness(t *testing.T) {
	tests := []struct {
		name       string
		critical   []string
		components map[string]bool
		wantStatus string
	}{
		{"scm ready", []string{"raft", "api"}, map[string]bool{"raft": true, "api": true}, "ready"},
		{"scm missing raft", []string{"raft", "api"}, map[string]bool{"api": true}, "not_ready"},
		{"scm raft unhealthy", []string{"raft", "api"}, map[string]bool{"raft": false, "api": true}, "not_ready"},
		{"datanode ready", []string{"volume", "scm", "api"}, map[string]bool{"volume": true, "scm": true, "api": true}, "ready"},
		{"default waits for api", nil, map[string]bool{}, "not_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(tt.critical...)
			for name, healthy := range tt.components {
				RegisterComponent(name, healthy, "leader not elected")
			}

			readiness := GetReadiness()
			assert.Equal(t, tt.wantStatus, readiness.Status)
			if tt.wantStatus == "not_ready" {
				assert.NotEmpty(t, readiness.Message)
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	resetHealth()
	SetVersion("test")
	RegisterComponent("api", true, "")

	w := httptest.NewRecorder()
	HealthHandler()(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var health HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)

	UpdateComponent("api", false, "broken")
	w = httptest.NewRecorder()
	HealthHandler()(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadyHandler(t *testing.T) {
	resetHealth("raft", "api")
	RegisterComponent("api", true, "")

	w := httptest.NewRecorder()
	ReadyHandler()(w, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	RegisterComponent("raft", true, "")
	w = httptest.NewRecorder()
	ReadyHandler()(w, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var readiness HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&readiness))
	assert.Equal(t, "ready", readiness.Status)
}

func TestLivenessHandler(t *testing.T) {
	resetHealth()

	w := httptest.NewRecorder()
	LivenessHandler()(w, httptest.NewRequest("GET", "/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "alive", response["status"])
	assert.NotEmpty(t, response["uptime"])
}
