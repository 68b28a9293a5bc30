package mqtt

import "time"

// RelayCommand is the JSON payload published to switch a relay.
type RelayCommand struct {
	CommandID string `json:"command_id"`
	DeviceID  string `json:"device_id"`
	State     int    `json:"state"`
	Timestamp int64  `json:"timestamp"`
}

// Ack is the acknowledgment a relay publishes after applying a command.
type Ack struct {
	CommandID string `json:"command_id"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
}

// OK reports whether the relay applied the command.
func (a Ack) OK() bool { return a.Status == "" || a.Status == "ok" }

// Client sends relay commands over MQTT and waits for their acknowledgment.
type Client interface {
	// SendCommand publishes cmd on topic and returns the command identifier
	// used to track the acknowledgment. An empty cmd.CommandID is generated.
	SendCommand(topic string, cmd RelayCommand) (commandID string, err error)

	// WaitForAck waits for the acknowledgment of commandID or until the
	// timeout expires, in which case ErrAckTimeout is returned.
	WaitForAck(commandID string, timeout time.Duration) (Ack, error)
}

// Publisher publishes raw payloads, used for report fan-out.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
}
