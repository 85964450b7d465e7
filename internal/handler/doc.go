// Package handler implements the HTTP API for meshscope.
//
// # Handlers
//
// TopologyHandler serves the last discovered graph, triggers scans and
// exports the graph as JSON or YAML.
//
// Middleware provides panic recovery, CORS and request logging.
//
// # Response Format
//
// Success responses return JSON data with appropriate status codes.
// Error responses return JSON with {error, details} structure.
package handler
