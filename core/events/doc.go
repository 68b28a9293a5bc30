// Package events defines the cycle events emitted on the event bus.
//
// Available event types:
//   - CycleEvent: a finished per-price, hourly or refresh cycle
//   - TriggerEvent: the fire or skip decision taken for one trigger
package events
