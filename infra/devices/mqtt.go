package devices

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/energyiot/core/action"
	"github.com/kilianp07/energyiot/core/model"
	coremqtt "github.com/kilianp07/energyiot/core/mqtt"
)

// MQTTConfig configures an MQTT relay gateway.
type MQTTConfig struct {
	Group       string        `json:"group"`
	TopicPrefix string        `json:"topic_prefix"`
	AckTimeout  time.Duration `json:"ack_timeout"`
}

// MQTTRelay publishes relay commands on {prefix}/{deviceId}/set and waits
// for the relay acknowledgment.
type MQTTRelay struct {
	group      string
	prefix     string
	ackTimeout time.Duration
	client     coremqtt.Client
}

// NewMQTTRelay returns an MQTT gateway using client.
func NewMQTTRelay(cfg MQTTConfig, client coremqtt.Client) (*MQTTRelay, error) {
	if client == nil {
		return nil, fmt.Errorf("mqtt relay: %w", coremqtt.ErrNoClient)
	}
	if cfg.Group == "" {
		cfg.Group = "MQTT"
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "energyiot/relays"
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 5 * time.Second
	}
	return &MQTTRelay{
		group:      cfg.Group,
		prefix:     strings.TrimSuffix(cfg.TopicPrefix, "/"),
		ackTimeout: cfg.AckTimeout,
		client:     client,
	}, nil
}

func (m *MQTTRelay) Group() string { return m.group }

// Topic returns the command topic of deviceID.
func (m *MQTTRelay) Topic(deviceID string) string {
	return fmt.Sprintf("%s/%s/set", m.prefix, deviceID)
}

// SetRelayState publishes the command. A missing ack maps to status 504 so
// the dispatcher retries it like any other non-OK status.
func (m *MQTTRelay) SetRelayState(ctx context.Context, _ model.ActionGroup, deviceID string, state int) action.Result {
	if err := ctx.Err(); err != nil {
		return action.Result{Err: err}
	}
	id, err := m.client.SendCommand(m.Topic(deviceID), coremqtt.RelayCommand{DeviceID: deviceID, State: state})
	if err != nil {
		return action.Result{Err: fmt.Errorf("publish: %w", err)}
	}
	timeout := m.ackTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	ack, err := m.client.WaitForAck(id, timeout)
	switch {
	case errors.Is(err, coremqtt.ErrAckTimeout):
		return action.Result{StatusCode: http.StatusGatewayTimeout}
	case err != nil:
		return action.Result{Err: err}
	case !ack.OK():
		return action.Result{StatusCode: http.StatusOK, VendorCode: -1, VendorMessage: ack.Message}
	}
	return action.Result{StatusCode: http.StatusOK}
}
