package device

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	defaultPort    = 80
	defaultTimeout = time.Second * 5
)

var ErrNotConnected = errors.New("no active device connection")

type sessionImpl struct {
	port       int
	httpClient *http.Client

	mu          sync.Mutex
	endpoint    *Endpoint
	subscribers []chan Message
}

type Config struct {
	Port       int
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewSession(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, errors.New("missing parameter: cfg")
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &sessionImpl{
		port:       port,
		httpClient: httpClient,
	}, nil
}

// Connect probes the address with a no-op stop command. Only a 200
// establishes the endpoint; any failure leaves prior connection state
// untouched.
func (session *sessionImpl) Connect(ip string) bool {
	resp, err := session.httpClient.Get(session.commandURL(ip, session.port, CodeStop))
	if err != nil {
		log.Printf("device probe to %s failed: %v", ip, err)

		return false
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	session.mu.Lock()
	session.endpoint = &Endpoint{
		IP:          ip,
		Port:        session.port,
		ConnectedAt: time.Now(),
	}
	session.mu.Unlock()

	session.broadcast(Message{Kind: MessageConnected, Body: ip})

	return true
}

func (session *sessionImpl) Disconnect() {
	session.mu.Lock()
	wasConnected := session.endpoint != nil
	session.endpoint = nil
	session.mu.Unlock()

	if wasConnected {
		session.broadcast(Message{Kind: MessageDisconnected})
	}
}

func (session *sessionImpl) Connected() bool {
	return session.Endpoint() != nil
}

func (session *sessionImpl) Endpoint() *Endpoint {
	session.mu.Lock()
	defer session.mu.Unlock()

	return session.endpoint
}

// SendCommand maps the text to a device code and fires it at the
// active endpoint. Returns false without touching the network when no
// connection is active.
func (session *sessionImpl) SendCommand(text string) bool {
	endpoint := session.Endpoint()
	if endpoint == nil {
		return false
	}

	resp, err := session.httpClient.Get(session.commandURL(endpoint.IP, endpoint.Port, CommandCode(text)))
	if err != nil {
		log.Printf("sending command to %s failed: %v", endpoint.IP, err)

		return false
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}

	session.broadcast(Message{Kind: MessageResponse, Body: string(body)})

	return true
}

// SendCommandForResponse posts the raw text as JSON and returns the
// device's response body.
func (session *sessionImpl) SendCommandForResponse(text string) (string, error) {
	endpoint := session.Endpoint()
	if endpoint == nil {
		return "", ErrNotConnected
	}

	payload, err := json.Marshal(map[string]string{"command": text})
	if err != nil {
		return "", err
	}

	commandURL := fmt.Sprintf("http://%s:%d/command", endpoint.IP, endpoint.Port)

	resp, err := session.httpClient.Post(commandURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("device returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return string(body), nil
}

// Status fetches the device status map. A body that fails to parse is
// returned degraded under a raw key instead of failing outright.
func (session *sessionImpl) Status() (map[string]interface{}, error) {
	endpoint := session.Endpoint()
	if endpoint == nil {
		return nil, ErrNotConnected
	}

	resp, err := session.httpClient.Get(fmt.Sprintf("http://%s:%d/status", endpoint.IP, endpoint.Port))
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	status := make(map[string]interface{})
	if err := json.Unmarshal(body, &status); err != nil {
		return map[string]interface{}{"raw": string(body)}, nil
	}

	return status, nil
}

// Subscribe returns a channel receiving device-originated messages.
// Slow subscribers drop messages rather than blocking the session.
func (session *sessionImpl) Subscribe() <-chan Message {
	session.mu.Lock()
	defer session.mu.Unlock()

	ch := make(chan Message, 8)
	session.subscribers = append(session.subscribers, ch)

	return ch
}

func (session *sessionImpl) broadcast(msg Message) {
	session.mu.Lock()
	defer session.mu.Unlock()

	for _, ch := range session.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (session *sessionImpl) commandURL(ip string, port int, code string) string {
	return fmt.Sprintf("http://%s:%d/command?move=%s", ip, port, url.QueryEscape(code))
}
