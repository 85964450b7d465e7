package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"meshscope/internal/codec"
	"meshscope/internal/domain"
	"meshscope/internal/logging"
	"meshscope/internal/service"
)

// Topology is the part of the topology service the handlers use
type Topology interface {
	LastResults() *domain.Graph
	Scanning() bool
	Scan(ctx context.Context) (*domain.Graph, error)
	ClearResults(ctx context.Context) error
	Export(format string, w io.Writer) error
}

// TopologyHandler handles topology API requests
type TopologyHandler struct {
	svc Topology
}

// NewTopologyHandler creates a new topology handler
func NewTopologyHandler(svc Topology) *TopologyHandler {
	return &TopologyHandler{svc: svc}
}

// Error response structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse reports service state
type HealthResponse struct {
	Status   string `json:"status"`
	Scanning bool   `json:"scanning"`
	Version  int64  `json:"version"`
	Nodes    int    `json:"nodes"`
}

// GetGraph returns the last discovered graph
func (h *TopologyHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.LastResults(), http.StatusOK)
}

// ClearGraph drops the stored graph
func (h *TopologyHandler) ClearGraph(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearResults(r.Context()); err != nil {
		logging.Error("Failed to clear graph", zap.Error(err))
		h.writeError(w, "Failed to clear graph", err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TriggerDevscan runs a scan and returns the new graph. The scan outlives
// the request; a client that hangs up only loses the response.
func (h *TopologyHandler) TriggerDevscan(w http.ResponseWriter, r *http.Request) {
	graph, err := h.svc.Scan(context.WithoutCancel(r.Context()))
	if err != nil {
		if errors.Is(err, service.ErrScanInProgress) {
			h.writeError(w, "Scan in progress", err.Error(), http.StatusConflict)
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			h.writeError(w, "Scan timed out", err.Error(), http.StatusGatewayTimeout)
			return
		}
		if errors.Is(err, domain.ErrMalformedAddress) {
			h.writeError(w, "Invalid coordinator address", err.Error(), http.StatusBadRequest)
			return
		}
		logging.Error("Failed to run devscan", zap.Error(err))
		h.writeError(w, "Failed to run devscan", err.Error(), http.StatusBadGateway)
		return
	}

	h.writeJSON(w, graph, http.StatusOK)
}

// ExportJSON exports the graph as JSON
func (h *TopologyHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	h.export(w, codec.NewJSONCodec(), "graph.json")
}

// ExportYAML exports the graph as YAML
func (h *TopologyHandler) ExportYAML(w http.ResponseWriter, r *http.Request) {
	h.export(w, codec.NewYAMLCodec(), "graph.yml")
}

func (h *TopologyHandler) export(w http.ResponseWriter, exporter codec.Exporter, filename string) {
	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if err := h.svc.Export(exporter.Format(), w); err != nil {
		logging.Error("Failed to export graph", zap.String("format", exporter.Format()), zap.Error(err))
		// Can't write error response as we already set headers
		return
	}
}

// Health reports liveness plus a summary of the last results
func (h *TopologyHandler) Health(w http.ResponseWriter, r *http.Request) {
	last := h.svc.LastResults()
	h.writeJSON(w, HealthResponse{
		Status:   "ok",
		Scanning: h.svc.Scanning(),
		Version:  last.Version,
		Nodes:    len(last.Nodes),
	}, http.StatusOK)
}

// Helper methods

func (h *TopologyHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error("Failed to encode JSON", zap.Error(err))
	}
}

func (h *TopologyHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		logging.Error("Failed to encode error response", zap.Error(err))
	}
}

// Register adds the API routes to mux
func (h *TopologyHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/graph", h.GetGraph)
	mux.HandleFunc("DELETE /api/graph", h.ClearGraph)
	mux.HandleFunc("POST /api/devscan", h.TriggerDevscan)
	mux.HandleFunc("GET /api/export/json", h.ExportJSON)
	mux.HandleFunc("GET /api/export/yaml", h.ExportYAML)
	mux.HandleFunc("GET /api/healthz", h.Health)
}
