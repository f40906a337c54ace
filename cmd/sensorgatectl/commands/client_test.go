package commands

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetJSONDecodesSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := newAdminClient(srv.Listener.Addr().String())
	var out map[string]string
	if err := c.getJSON("/healthz", nil, &out); err != nil {
		t.Fatalf("getJSON() error: %v", err)
	}
	if out["status"] != "ok" {
		t.Errorf("getJSON() status = %q, want ok", out["status"])
	}
}

func TestGetJSONReturnsProblemOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"title":"Not Found","status":404,"detail":"sensor not registered"}`))
	}))
	defer srv.Close()

	c := newAdminClient(srv.Listener.Addr().String())
	err := c.getJSON("/api/v1/sensors/9", nil, nil)
	if err == nil {
		t.Fatal("getJSON() error = nil, want non-nil")
	}

	var p problem
	if !errors.As(err, &p) {
		t.Fatalf("getJSON() error type = %T, want problem", err)
	}
	if p.Detail != "sensor not registered" {
		t.Errorf("problem.Detail = %q, want %q", p.Detail, "sensor not registered")
	}
}
