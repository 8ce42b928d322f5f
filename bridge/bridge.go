package bridge

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"go.bug.st/serial"
)

// The bridge gives serial-only robots the same HTTP command surface as
// networked ones: commands posted to /send are written straight to the
// serial port, newline terminated.

type bridgeImpl struct {
	port io.ReadWriteCloser
}

type Config struct {
	Port io.ReadWriteCloser
}

type Interface interface {
	Handler() http.Handler
	Close() error
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, errors.New("missing parameter: cfg")
	}

	if cfg.Port == nil {
		return nil, errors.New("missing parameter: cfg.Port")
	}

	return &bridgeImpl{
		port: cfg.Port,
	}, nil
}

// OpenSerial opens the serial device in 8N1 at the given baud rate.
func OpenSerial(device string, baudRate int) (io.ReadWriteCloser, error) {
	return serial.Open(device, &serial.Mode{BaudRate: baudRate})
}

func (b *bridgeImpl) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/send", b.handleSend)

	return mux
}

func (b *bridgeImpl) Close() error {
	return b.port.Close()
}

func (b *bridgeImpl) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	var payload struct {
		Command string `json:"command"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	if _, err := b.port.Write([]byte(payload.Command + "\n")); err != nil {
		log.Printf("error writing to serial port: %v", err)
		http.Error(w, "serial write failed", http.StatusBadGateway)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "sent",
		"command": payload.Command,
	})
}
