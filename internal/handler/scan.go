package handler

import (
	"errors"
	"log"
	"net/http"

	"autobot/internal/domain"
	"autobot/internal/service"
)

// ScanHandler handles discovery requests
type ScanHandler struct {
	svc *service.DiscoveryService
}

// NewScanHandler creates a new scan handler
func NewScanHandler(svc *service.DiscoveryService) *ScanHandler {
	return &ScanHandler{svc: svc}
}

type scanRequest struct {
	IPRange string `json:"ip_range" validate:"required"`
}

// ScanStartedResponse acknowledges a scan start
type ScanStartedResponse struct {
	Message  string `json:"message"`
	TotalIPs int    `json:"total_ips"`
}

// ScanStatusResponse is the progress and results of the latest scan
type ScanStatusResponse struct {
	Progress domain.ScanProgress      `json:"progress"`
	Results  []domain.DiscoveryResult `json:"results"`
}

// PingResponse is the outcome of a manual ping
type PingResponse struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// StartScan expands the requested range and starts a background scan
func (h *ScanHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	session, err := h.svc.StartScan(req.IPRange)
	switch {
	case errors.Is(err, domain.ErrInvalidRange), errors.Is(err, domain.ErrTooManyTargets):
		writeError(w, "Invalid IP range format", err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, service.ErrScanInProgress):
		writeError(w, "Scan already running", err.Error(), http.StatusConflict)
		return
	case err != nil:
		log.Printf("Failed to start scan: %v", err)
		writeError(w, "Failed to start scan", err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, ScanStartedResponse{
		Message:  "Scan started",
		TotalIPs: session.Progress().TotalTargets,
	}, http.StatusOK)
}

// GetStatus returns the progress and results of the most recent scan
func (h *ScanHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	progress, results := h.svc.Status()
	writeJSON(w, ScanStatusResponse{Progress: progress, Results: results}, http.StatusOK)
}

// Ping sends one echo to the address in the path
func (h *ScanHandler) Ping(w http.ResponseWriter, r *http.Request) {
	ip := r.PathValue("ip")
	if err := validate.Var(ip, "required,ip"); err != nil {
		writeError(w, "Invalid IP address", ip, http.StatusBadRequest)
		return
	}

	result := h.svc.Ping(r.Context(), ip)
	if !result.Reachable {
		writeJSON(w, PingResponse{Status: "error", Message: "Request timed out"}, http.StatusOK)
		return
	}
	writeJSON(w, PingResponse{Status: "success", Latency: result.String()}, http.StatusOK)
}
