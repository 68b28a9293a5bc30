// Package devices implements the relay gateways used by the action
// dispatcher: the TP-Link Kasa cloud passthrough API, the Tapo shadow API and
// a generic MQTT relay protocol. Gateways are declared in configuration as
// factory modules and may be wrapped in a circuit breaker.
package devices
