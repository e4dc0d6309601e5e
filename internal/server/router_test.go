package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loykin/cpusentry/internal/config"
	"github.com/loykin/cpusentry/internal/monitor"
)

type fakeSource struct {
	status monitor.StatusSnapshot
	cfg    *config.Config
}

func (f *fakeSource) Status() monitor.StatusSnapshot { return f.status }
func (f *fakeSource) Config() *config.Config         { return f.cfg }

func newFakeSource() *fakeSource {
	cfg := config.Default()
	cfg.ProcessNames = []string{"silverbullet"}
	now := time.Now()
	return &fakeSource{
		cfg: cfg,
		status: monitor.StatusSnapshot{
			At:          now,
			WindowStart: now.Add(-time.Minute),
			Capacity:    10,
			Instances: []monitor.InstanceStats{
				{
					Key:             monitor.Key{Pattern: "silverbullet", PID: 42, Command: "/opt/silverbullet"},
					PercentileValue: 97,
					LastCPU:         98,
					Count:           3,
				},
			},
		},
	}
}

func TestStatusEndpoint(t *testing.T) {
	h := NewRouter(newFakeSource(), "").Handler()
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body statusResp
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Tracked != 1 || body.Capacity != 10 {
		t.Fatalf("body = %+v", body)
	}
	if body.Instances[0].Key.PID != 42 {
		t.Fatalf("instance = %+v", body.Instances[0])
	}
}

func TestConfigEndpoint(t *testing.T) {
	h := NewRouter(newFakeSource(), "").Handler()
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/config")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var cfg config.Config
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cfg.ProcessNames) != 1 || cfg.ProcessNames[0] != "silverbullet" {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestHealthzAndBasePath(t *testing.T) {
	h := NewRouter(newFakeSource(), "agent/").Handler()
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/agent/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz under base path = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unprefixed path = %d, want 404", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewRouter(newFakeSource(), "").Handler()
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics = %d", resp.StatusCode)
	}
}

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{
		"":       "",
		"/":      "",
		"agent":  "/agent",
		"/agent": "/agent",
		"a/b/":   "/a/b",
	}
	for in, want := range cases {
		if got := sanitizeBase(in); got != want {
			t.Fatalf("sanitizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}
