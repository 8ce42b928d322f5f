package discovery

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestScan(t *testing.T) {
	t.Run("returns exactly the reachable candidates", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/command" && r.URL.Query().Get("move") == "S" {
				w.WriteHeader(http.StatusOK)

				return
			}

			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()

		host, portStr, err := net.SplitHostPort(ts.Listener.Addr().String())
		if err != nil {
			t.Fatalf("error splitting address: %v", err)
		}

		port, _ := strconv.Atoi(portStr)

		scanner, err := New(&Config{
			Port:         port,
			ProbeTimeout: time.Millisecond * 300,
			// 192.0.2.x is TEST-NET, guaranteed unreachable
			Candidates: []string{"192.0.2.1", host, "192.0.2.2"},
		})
		if err != nil {
			t.Fatalf("error with discovery.New: %v", err)
		}

		found := scanner.Scan(context.Background())

		if len(found) != 1 || found[0] != host {
			t.Errorf("expected [%s], got %v", host, found)
		}
	})

	t.Run("empty result when nothing answers", func(t *testing.T) {
		scanner, err := New(&Config{
			Port:         9,
			ProbeTimeout: time.Millisecond * 200,
			Candidates:   []string{"192.0.2.1", "192.0.2.2"},
		})
		if err != nil {
			t.Fatalf("error with discovery.New: %v", err)
		}

		found := scanner.Scan(context.Background())

		if len(found) != 0 {
			t.Errorf("expected no devices, got %v", found)
		}
	})

	t.Run("default candidate set covers the expected subnets", func(t *testing.T) {
		candidates := DefaultCandidates()

		if candidates[0] != "192.168.4.1" {
			t.Errorf("expected the SoftAP default first, got %s", candidates[0])
		}

		if len(candidates) != 2+254+50 {
			t.Errorf("expected 306 candidates, got %d", len(candidates))
		}
	})
}
