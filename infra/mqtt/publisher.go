package mqtt

import (
	"fmt"
	"sync"
	"time"

	coremqtt "github.com/kilianp07/energyiot/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// MockPublisher is an in-memory client used in tests. Commands for devices in
// FailIDs fail to publish; NoAck devices never acknowledge.
type MockPublisher struct {
	mu       sync.Mutex
	Commands map[string]coremqtt.RelayCommand
	Topics   map[string]string
	Payloads map[string][]byte
	FailIDs  map[string]bool
	NoAck    map[string]bool
	Reject   map[string]string
	seq      int
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Commands: make(map[string]coremqtt.RelayCommand),
		Topics:   make(map[string]string),
		Payloads: make(map[string][]byte),
		FailIDs:  make(map[string]bool),
		NoAck:    make(map[string]bool),
		Reject:   make(map[string]string),
	}
}

// SendCommand records the command or returns an error if configured to fail.
func (m *MockPublisher) SendCommand(topic string, cmd coremqtt.RelayCommand) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[cmd.DeviceID] {
		return "", fmt.Errorf("publish failed")
	}
	m.seq++
	if cmd.CommandID == "" {
		cmd.CommandID = fmt.Sprintf("cmd-%d", m.seq)
	}
	m.Commands[cmd.CommandID] = cmd
	m.Topics[cmd.CommandID] = topic
	return cmd.CommandID, nil
}

// WaitForAck answers immediately based on the device settings.
func (m *MockPublisher) WaitForAck(commandID string, _ time.Duration) (coremqtt.Ack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd, ok := m.Commands[commandID]
	if !ok {
		return coremqtt.Ack{}, fmt.Errorf("%w %s", coremqtt.ErrUnknownCommand, commandID)
	}
	if m.NoAck[cmd.DeviceID] {
		return coremqtt.Ack{CommandID: commandID}, coremqtt.ErrAckTimeout
	}
	if msg, ok := m.Reject[cmd.DeviceID]; ok {
		return coremqtt.Ack{CommandID: commandID, Status: "error", Message: msg}, nil
	}
	return coremqtt.Ack{CommandID: commandID, Status: "ok"}, nil
}

// Publish records the payload by topic.
func (m *MockPublisher) Publish(topic string, payload []byte, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[topic] {
		return fmt.Errorf("publish failed")
	}
	m.Payloads[topic] = append([]byte(nil), payload...)
	return nil
}
