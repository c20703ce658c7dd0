package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/jackzampolin/paperpulse/internal/config"
	"github.com/jackzampolin/paperpulse/internal/home"
	"github.com/jackzampolin/paperpulse/internal/server/endpoints"
)

// newConfiguredServer writes a config file into a temp home and returns an
// unstarted server bound to a free port.
func newConfiguredServer(t *testing.T, arxivURL string) (*Server, *home.Dir) {
	t.Helper()

	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.EnsureExists(); err != nil {
		t.Fatal(err)
	}

	content := fmt.Sprintf(`log_level: info
store:
  driver: sqlite
arxiv:
  base_url: %s
  delay_seconds: 0
`, arxivURL)
	if err := os.WriteFile(h.ConfigPath(), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	mgr, err := config.NewManager(h.ConfigPath())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	srv, err := New(Config{
		Host:          "127.0.0.1",
		Port:          "0",
		ConfigManager: mgr,
		Home:          h,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, h
}

// startServer runs srv in the background and returns its base URL and a
// stop function that waits for shutdown.
func startServer(t *testing.T, srv *Server) (string, func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(ctx)
	}()

	baseURL, err := waitForServer(srv, 30*time.Second)
	if err != nil {
		cancel()
		t.Fatalf("server did not start: %v", err)
	}

	stop := func() {
		cancel()
		select {
		case err := <-serverErr:
			if err != nil {
				t.Errorf("Start() returned error: %v", err)
			}
		case <-time.After(30 * time.Second):
			t.Fatal("server did not shut down within timeout")
		}
	}
	return baseURL, stop
}

func TestServer_FullLifecycle(t *testing.T) {
	srv, h := newConfiguredServer(t, "http://127.0.0.1:1/api/query")
	baseURL, stop := startServer(t, srv)

	t.Run("health_endpoint", func(t *testing.T) {
		var health endpoints.HealthResponse
		if code := getJSON(t, baseURL+"/health", &health); code != http.StatusOK {
			t.Errorf("health status = %d, want %d", code, http.StatusOK)
		}
		if health.Status != "ok" {
			t.Errorf("health.Status = %q, want %q", health.Status, "ok")
		}
	})

	t.Run("ready_endpoint", func(t *testing.T) {
		var ready endpoints.HealthResponse
		if code := getJSON(t, baseURL+"/ready", &ready); code != http.StatusOK {
			t.Errorf("ready status = %d, want %d", code, http.StatusOK)
		}
		if ready.Store != "ok" {
			t.Errorf("ready.Store = %q, want %q", ready.Store, "ok")
		}
	})

	t.Run("status_endpoint", func(t *testing.T) {
		var status endpoints.StatusResponse
		if code := getJSON(t, baseURL+"/status", &status); code != http.StatusOK {
			t.Errorf("status code = %d, want %d", code, http.StatusOK)
		}
		if status.Server != "running" || status.Store.Driver != "sqlite" {
			t.Errorf("status = %+v", status)
		}
	})

	t.Run("sqlite_in_home", func(t *testing.T) {
		if _, err := os.Stat(h.DatabasePath()); err != nil {
			t.Errorf("database not created in home: %v", err)
		}
	})

	t.Run("is_running", func(t *testing.T) {
		if !srv.IsRunning() {
			t.Error("IsRunning() = false, want true")
		}
		if srv.Services() == nil {
			t.Error("Services() = nil after start")
		}
	})

	t.Run("double_start", func(t *testing.T) {
		if err := srv.Start(context.Background()); err == nil {
			t.Error("second Start() should return error")
		}
	})

	stop()

	t.Run("not_running_after_shutdown", func(t *testing.T) {
		if srv.IsRunning() {
			t.Error("IsRunning() = true after shutdown, want false")
		}
	})
}

func TestServer_StartFailsOnBadHome(t *testing.T) {
	srv, h := newConfiguredServer(t, "http://127.0.0.1:1/api/query")

	// A file where the data directory should be makes EnsureExists fail.
	if err := os.RemoveAll(h.DataPath()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(h.DataPath(), nil, 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Start(ctx); err == nil {
		t.Fatal("Start() error = nil, want build failure")
	}
	if srv.IsRunning() {
		t.Error("IsRunning() = true after failed start")
	}
}

// waitForServer polls the server until /health responds or timeout.
func waitForServer(srv *Server, timeout time.Duration) (string, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)
	configured := srv.httpServer.Addr

	for time.Now().Before(deadline) {
		if addr := srv.Addr(); addr != configured {
			baseURL := "http://" + addr
			resp, err := client.Get(baseURL + "/health")
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return baseURL, nil
				}
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	return "", fmt.Errorf("server not ready after %s", timeout)
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp.StatusCode
}
