// Package domain defines the core types of the mesh topology discovery system.
//
// # Addresses
//
// Address is the canonical, fixed-width text form of a 128-bit mesh address.
// Normalize turns any valid textual form (full or "::"-compressed) into an
// Address. DeriveIdentifier extracts the hardware NodeIdentifier that devices
// embed in the interface identifier of their addresses, so two addresses of
// the same device map to the same identifier.
//
// # Scan Records
//
// ScanRecord tracks one address during a discovery run. A resolved record
// carries Routes: the peers the scanned node knows about and the next hop it
// uses toward the coordinator for each of them.
//
// # Graph
//
// Graph is the result of a run: Nodes (one per NodeIdentifier) and directed
// Links meaning "source reaches the coordinator through target".
// VersionClock stamps graphs with strictly increasing millisecond versions.
package domain
