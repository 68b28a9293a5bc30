// Package infra contains the technical adapters: storage backends, device
// gateways, the price client, notifiers and metrics exporters. These
// packages depend only on the interfaces defined in the core packages.
package infra
