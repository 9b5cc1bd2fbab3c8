package checks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/verimem/sentinel/internal/config"
	"github.com/verimem/sentinel/internal/probe"
)

func healthServer(t *testing.T, liveBody, readyBody string, readyStatus int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/health/live":
			w.Write([]byte(liveBody))
		case "/health/ready":
			w.WriteHeader(readyStatus)
			w.Write([]byte(readyBody))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestHealthCheckAllHealthy(t *testing.T) {
	srv := healthServer(t,
		`{"status":"alive"}`,
		`{"components":[
			{"name":"qdrant-primary","status":"ok"},
			{"name":"redis","status":"healthy"},
			{"name":"neo4j","status":"ok"}
		]}`, http.StatusOK)
	defer srv.Close()

	h := NewHealthCheck(probe.New(srv.URL, config.Credential{}), time.Second)
	res := h.Run(context.Background())

	assert.Equal(t, StatusPass, res.Status)
	assert.Equal(t, "S1-probes", res.CheckID)
	assert.Contains(t, res.Message, "OK")
}

func TestHealthCheckSecondaryDegradedStillPasses(t *testing.T) {
	srv := healthServer(t,
		`{"status":"alive"}`,
		`{"components":[
			{"name":"qdrant","status":"ok"},
			{"name":"redis","status":"healthy"},
			{"name":"neo4j","status":"degraded"}
		]}`, http.StatusOK)
	defer srv.Close()

	h := NewHealthCheck(probe.New(srv.URL, config.Credential{}), time.Second)
	res := h.Run(context.Background())

	assert.Equal(t, StatusPass, res.Status, "a degraded secondary dependency is tolerated")
	assert.Contains(t, res.Message, "secondary degraded: neo4j")
	assert.Equal(t, []string{"neo4j"}, res.Details["degraded"])
}

func TestHealthCheckCriticalDependencyFails(t *testing.T) {
	srv := healthServer(t,
		`{"status":"alive"}`,
		`{"components":[
			{"name":"qdrant","status":"down"},
			{"name":"redis","status":"ok"},
			{"name":"neo4j","status":"ok"}
		]}`, http.StatusOK)
	defer srv.Close()

	h := NewHealthCheck(probe.New(srv.URL, config.Credential{}), time.Second)
	res := h.Run(context.Background())

	assert.Equal(t, StatusFail, res.Status)
	assert.Contains(t, res.Message, "qdrant=down")
}

func TestHealthCheckMissingCriticalComponentFails(t *testing.T) {
	srv := healthServer(t,
		`{"status":"alive"}`,
		`{"components":[{"name":"redis","status":"ok"},{"name":"neo4j","status":"ok"}]}`, http.StatusOK)
	defer srv.Close()

	h := NewHealthCheck(probe.New(srv.URL, config.Credential{}), time.Second)
	res := h.Run(context.Background())

	assert.Equal(t, StatusFail, res.Status)
	assert.Contains(t, res.Message, "qdrant=missing")
}

func TestHealthCheckWrongLivenessStatus(t *testing.T) {
	srv := healthServer(t, `{"status":"starting"}`, `{}`, http.StatusOK)
	defer srv.Close()

	h := NewHealthCheck(probe.New(srv.URL, config.Credential{}), time.Second)
	res := h.Run(context.Background())

	assert.Equal(t, StatusFail, res.Status)
	assert.Contains(t, res.Message, `"starting"`)
}

func TestHealthCheckReadinessHTTPError(t *testing.T) {
	srv := healthServer(t, `{"status":"alive"}`, `{}`, http.StatusServiceUnavailable)
	defer srv.Close()

	h := NewHealthCheck(probe.New(srv.URL, config.Credential{}), time.Second)
	res := h.Run(context.Background())

	assert.Equal(t, StatusFail, res.Status)
	assert.Contains(t, res.Message, "readiness probe failed")
}

func TestHealthCheckUnreachableTarget(t *testing.T) {
	h := NewHealthCheck(probe.New("http://127.0.0.1:1", config.Credential{}), 200*time.Millisecond)
	res := h.Run(context.Background())

	assert.Equal(t, StatusFail, res.Status)
	assert.Contains(t, res.Message, "liveness probe failed")
}
