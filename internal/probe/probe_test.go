package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verimem/sentinel/internal/config"
)

func TestCheckEndpointHealthOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health/live", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"alive"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, config.Credential{})
	ok, msg, latency := c.CheckEndpointHealth(context.Background(), "/health/live", http.StatusOK, 2*time.Second)

	assert.True(t, ok)
	assert.Contains(t, msg, "OK")
	assert.GreaterOrEqual(t, latency, 0.0)
}

func TestCheckEndpointHealthStatusMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, config.Credential{})
	ok, msg, _ := c.CheckEndpointHealth(context.Background(), "/health/ready", http.StatusOK, 2*time.Second)

	assert.False(t, ok)
	assert.Contains(t, msg, "returned HTTP 503")
	assert.Contains(t, msg, "expected 200")
}

func TestCallJSONTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(srv.URL, config.Credential{})
	ok, msg, latency, _ := c.CallJSON(context.Background(), http.MethodGet, "/slow", nil, http.StatusOK, 50*time.Millisecond)

	assert.False(t, ok)
	assert.Contains(t, msg, "timed out")
	assert.GreaterOrEqual(t, latency, 50.0)
}

func TestCallJSONSendsOnlyKeyPortion(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cred, err := config.ParseCredential("vmk_abc_def123:alice:admin:false")
	require.NoError(t, err)

	c := New(srv.URL, cred)
	ok, _, _, _ := c.CallJSON(context.Background(), http.MethodGet, "/x", nil, http.StatusOK, time.Second)

	assert.True(t, ok)
	assert.Equal(t, "vmk_abc_def123", gotKey)
	assert.NotContains(t, gotKey, ":")
}

func TestCallJSONNoCredentialNoHeader(t *testing.T) {
	var hadHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadHeader = r.Header["X-Api-Key"]
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, config.Credential{})
	c.CallJSON(context.Background(), http.MethodGet, "/x", nil, http.StatusOK, time.Second)

	assert.False(t, hadHeader)
}

func TestCallJSONNonJSONBodyStillSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	c := New(srv.URL, config.Credential{})
	ok, msg, _, parsed := c.CallJSON(context.Background(), http.MethodGet, "/x", nil, http.StatusOK, time.Second)

	assert.True(t, ok)
	assert.Contains(t, msg, "non-JSON body")
	assert.Nil(t, parsed)
}

func TestCallJSONPostsBody(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"echo":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, config.Credential{})
	ok, _, _, parsed := c.CallJSON(context.Background(), http.MethodPost, "/x",
		map[string]any{"q": "hello"}, http.StatusOK, time.Second)

	assert.True(t, ok)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, true, parsed["echo"])
}

func TestCallJSONConnectionRefused(t *testing.T) {
	c := New("http://127.0.0.1:1", config.Credential{})
	ok, msg, _, _ := c.CallJSON(context.Background(), http.MethodGet, "/x", nil, http.StatusOK, time.Second)

	assert.False(t, ok)
	assert.Contains(t, msg, "failed")
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	c := New("http://svc:8000/", config.Credential{})
	assert.Equal(t, "http://svc:8000", c.BaseURL())
}
