// Package service implements the application layer between the discovery
// engine and its consumers.
//
// # Services
//
// TopologyService owns the last completed topology. It runs one scan at a
// time, stores each completed graph as the latest snapshot and restores
// that snapshot at startup.
//
// Poller triggers scans on a fixed interval.
//
// # Event System
//
// EventBus fans out engine and transport diagnostics plus graph updates to
// subscribers such as the push hub and the MQTT publisher. It satisfies the
// EventPublisher interfaces of the devscan and transport packages.
package service
