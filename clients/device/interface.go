package device

import "time"

// Endpoint is the active device connection, at most one at a time.
type Endpoint struct {
	IP          string
	Port        int
	ConnectedAt time.Time
}

// Message is an asynchronous device-originated notification fanned
// out to subscribers.
type Message struct {
	Kind string
	Body string
}

const (
	MessageConnected    = "connected"
	MessageDisconnected = "disconnected"
	MessageResponse     = "response"
)

type Interface interface {
	Connect(ip string) bool
	Disconnect()
	Connected() bool
	Endpoint() *Endpoint
	SendCommand(text string) bool
	SendCommandForResponse(text string) (string, error)
	Status() (map[string]interface{}, error)
	Subscribe() <-chan Message
}
