// Package devscan discovers the topology of a mesh network.
//
// Starting from the coordinator, the Engine asks every node it learns about
// for its devscan payload: the peers the node knows and, for each one, the
// next hop toward the coordinator. Addresses are queued as they are reported
// and each address is queried at most once per run. Requests run
// concurrently, but all scheduling decisions happen on a single loop
// goroutine that owns the run's session state.
//
// When the queue is empty and no request is outstanding the run is
// quiescent. The coordinator's routes are then resolved into a graph: every
// peer is linked to the nearest hop on its chain toward the coordinator that
// has no further indirection recorded.
//
// Diagnostics (requests, failures, unresolved hops) are reported through an
// EventPublisher and never affect the result.
package devscan
