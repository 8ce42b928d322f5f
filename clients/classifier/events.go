package classifier

import (
	"encoding/json"
	"strings"
)

// The result stream is line oriented: lines prefixed "data: " carry a
// JSON payload, everything else is framing noise.
const streamPrefix = "data: "

type EventKind string

const (
	EventHeartbeat   EventKind = "heartbeat"
	EventCompleted   EventKind = "completed"
	EventQueueFull   EventKind = "queue_full"
	EventServerError EventKind = "server_error"
	EventMalformed   EventKind = "malformed"
)

// Event is one decoded stream line.
type Event struct {
	Kind   EventKind
	Label  string
	Reason string
}

type streamPayload struct {
	Msg    string `json:"msg"`
	Output struct {
		Data []json.RawMessage `json:"data"`
	} `json:"output"`
	Error string `json:"error"`
}

// DecodeLine turns one raw stream line into a typed event. The second
// return is false for lines that carry nothing actionable: non-data
// lines and non-terminal progress messages.
func DecodeLine(line string) (Event, bool) {
	if !strings.HasPrefix(line, streamPrefix) {
		return Event{}, false
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, streamPrefix))

	if payload == `"PING"` || payload == "PING" {
		return Event{Kind: EventHeartbeat}, true
	}

	var decoded streamPayload
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return Event{Kind: EventMalformed}, true
	}

	switch decoded.Msg {
	case "process_completed":
		return Event{Kind: EventCompleted, Label: completedLabel(&decoded)}, true
	case "queue_full":
		reason := decoded.Error
		if reason == "" {
			reason = "queue full"
		}

		return Event{Kind: EventQueueFull, Reason: reason}, true
	case "error":
		reason := decoded.Error
		if reason == "" {
			reason = "classification failed"
		}

		return Event{Kind: EventServerError, Reason: reason}, true
	default:
		// estimation / process_starts and friends
		return Event{}, false
	}
}

// completedLabel digs the class label out of the second output
// element. A missing label maps to Unknown downstream.
func completedLabel(payload *streamPayload) string {
	if len(payload.Output.Data) < 2 {
		return ""
	}

	var out struct {
		Label string `json:"label"`
	}

	if err := json.Unmarshal(payload.Output.Data[1], &out); err != nil {
		return ""
	}

	return out.Label
}
