package mqtt

import "errors"

var (
	// ErrAckTimeout means the relay did not acknowledge in time. Gateways
	// map it to a retryable gateway-timeout status.
	ErrAckTimeout = errors.New("timeout waiting for ack")
	// ErrUnknownCommand is returned by WaitForAck for ids never sent.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNoClient is returned when a component needs a broker connection
	// and none is configured.
	ErrNoClient = errors.New("mqtt client is required")
)
