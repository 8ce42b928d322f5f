package device

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

type fakeDevice struct {
	moves    []string
	posts    []string
	statuses int
	rawBody  string
}

func (d *fakeDevice) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/command", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			d.posts = append(d.posts, string(body))
			_, _ = w.Write([]byte(`{"status":"sent"}`))

			return
		}

		d.moves = append(d.moves, r.URL.Query().Get("move"))
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		d.statuses++

		if d.rawBody != "" {
			_, _ = w.Write([]byte(d.rawBody))

			return
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"battery": 87})
	})

	return mux
}

func startFakeDevice(t *testing.T) (*fakeDevice, string, int) {
	t.Helper()

	dev := &fakeDevice{}

	ts := httptest.NewServer(dev.handler())
	t.Cleanup(ts.Close)

	host, portStr, err := net.SplitHostPort(ts.Listener.Addr().String())
	if err != nil {
		t.Fatalf("error splitting address: %v", err)
	}

	port, _ := strconv.Atoi(portStr)

	return dev, host, port
}

func newTestSession(t *testing.T, port int) Interface {
	t.Helper()

	session, err := NewSession(&Config{
		Port:    port,
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("error with device.NewSession: %v", err)
	}

	return session
}

func TestSession_ConnectAndSend(t *testing.T) {
	dev, host, port := startFakeDevice(t)
	session := newTestSession(t, port)

	messages := session.Subscribe()

	if !session.Connect(host) {
		t.Fatalf("expected connect to succeed")
	}

	if !session.Connected() {
		t.Errorf("expected an active endpoint")
	}

	select {
	case msg := <-messages:
		if msg.Kind != MessageConnected {
			t.Errorf("expected connected message, got %+v", msg)
		}
	case <-time.After(time.Second):
		t.Errorf("expected a connected message on the broadcast channel")
	}

	if !session.SendCommand("Forward") {
		t.Fatalf("expected send to succeed")
	}

	// the liveness probe sends the no-op stop first
	if len(dev.moves) != 2 || dev.moves[0] != CodeStop || dev.moves[1] != CodeForward {
		t.Errorf("unexpected moves: %v", dev.moves)
	}

	select {
	case msg := <-messages:
		if msg.Kind != MessageResponse || msg.Body != "ok" {
			t.Errorf("expected the response body on the broadcast channel, got %+v", msg)
		}
	case <-time.After(time.Second):
		t.Errorf("expected a response message on the broadcast channel")
	}
}

func TestSession_ConnectFailureLeavesStateUntouched(t *testing.T) {
	// a freshly closed listener refuses connections
	ts := httptest.NewServer(http.NotFoundHandler())
	host, portStr, _ := net.SplitHostPort(ts.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	ts.Close()

	session := newTestSession(t, port)

	if session.Connect(host) {
		t.Fatalf("expected connect to fail")
	}

	if session.Endpoint() != nil {
		t.Errorf("expected no active endpoint")
	}

	if session.SendCommand("forward") {
		t.Errorf("expected send without a connection to fail")
	}
}

func TestSession_SendCommandForResponse(t *testing.T) {
	dev, host, port := startFakeDevice(t)
	session := newTestSession(t, port)

	if !session.Connect(host) {
		t.Fatalf("expected connect to succeed")
	}

	body, err := session.SendCommandForResponse("spin around")
	if err != nil {
		t.Fatalf("error sending command: %v", err)
	}

	if body != `{"status":"sent"}` {
		t.Errorf("unexpected response body %q", body)
	}

	if len(dev.posts) != 1 || dev.posts[0] != `{"command":"spin around"}` {
		t.Errorf("unexpected posted payloads: %v", dev.posts)
	}
}

func TestSession_Status(t *testing.T) {
	t.Run("parses a JSON status map", func(t *testing.T) {
		_, host, port := startFakeDevice(t)
		session := newTestSession(t, port)

		if !session.Connect(host) {
			t.Fatalf("expected connect to succeed")
		}

		status, err := session.Status()
		if err != nil {
			t.Fatalf("error fetching status: %v", err)
		}

		if status["battery"] != float64(87) {
			t.Errorf("unexpected status: %v", status)
		}
	})

	t.Run("degrades to a raw map on a non-JSON body", func(t *testing.T) {
		dev, host, port := startFakeDevice(t)
		dev.rawBody = "BATTERY LOW"

		session := newTestSession(t, port)

		if !session.Connect(host) {
			t.Fatalf("expected connect to succeed")
		}

		status, err := session.Status()
		if err != nil {
			t.Fatalf("error fetching status: %v", err)
		}

		if status["raw"] != "BATTERY LOW" {
			t.Errorf("expected the raw body, got %v", status)
		}
	})
}

func TestSession_Disconnect(t *testing.T) {
	_, host, port := startFakeDevice(t)
	session := newTestSession(t, port)

	if !session.Connect(host) {
		t.Fatalf("expected connect to succeed")
	}

	session.Disconnect()

	if session.Connected() {
		t.Errorf("expected no active endpoint after disconnect")
	}

	// idempotent
	session.Disconnect()
}
