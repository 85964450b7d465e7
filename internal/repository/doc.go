// Package repository defines the data access interface for topology snapshots.
//
// Only the most recent discovery result is kept: saving a snapshot replaces
// the previous one. The sqlite subpackage provides the implementation,
// storing nodes and links in indexed tables so the graph can be rebuilt in
// its original order.
package repository
