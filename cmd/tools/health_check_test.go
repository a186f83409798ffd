package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStubService(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/accounts/alice", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"owner":"alice","staked":5}`))
	})
	mux.HandleFunc("/accounts/ghost", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"user account not found","kind":"account_not_found"}`))
	})
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("since") != "2024-01-02T03:04:05Z" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"id":"e1","kind":"staked","owner":"alice","amount":5}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHealthCommand(t *testing.T) {
	srv := newStubService(t)
	out, err := run(t, "health", "--addr", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Service is healthy!")
}

func TestAccountCommand(t *testing.T) {
	srv := newStubService(t)

	out, err := run(t, "account", "alice", "--addr", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, `"owner": "alice"`)

	_, err = run(t, "account", "ghost", "--addr", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account_not_found")
}

func TestCheckServiceHealthUnreachable(t *testing.T) {
	srv := newStubService(t)
	srv.Close()

	healthy, err := checkServiceHealth(client(), srv.URL+"/health")
	assert.Error(t, err)
	assert.False(t, healthy)
}

func TestEventsCommand(t *testing.T) {
	srv := newStubService(t)

	out, err := run(t, "events", "--addr", srv.URL, "--since", "2024-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.Contains(t, out, `"kind": "staked"`)

	out, err = run(t, "events", "--addr", srv.URL, "--since", "")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}
