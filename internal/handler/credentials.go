package handler

import (
	"errors"
	"log"
	"net/http"

	"autobot/internal/domain"
	"autobot/internal/service"
)

// CredentialHandler manages credential groups. Passwords are write-only.
type CredentialHandler struct {
	svc *service.CredentialService
}

// NewCredentialHandler creates a new credential handler
func NewCredentialHandler(svc *service.CredentialService) *CredentialHandler {
	return &CredentialHandler{svc: svc}
}

type credentialRequest struct {
	GroupName string `json:"group_name" validate:"required"`
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
}

// List returns every group without its password
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.List(r.Context())
	if err != nil {
		log.Printf("Failed to list credentials: %v", err)
		writeError(w, "Failed to list credentials", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, groups, http.StatusOK)
}

// Upsert creates or replaces a group
func (h *CredentialHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	err := h.svc.Upsert(r.Context(), domain.CredentialGroup{
		Name:     req.GroupName,
		Username: req.Username,
		Password: req.Password,
	})
	if errors.Is(err, domain.ErrInvalidRequest) {
		writeError(w, "Invalid credential group", err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("Failed to save credentials: %v", err)
		writeError(w, "Failed to save credentials", err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, StatusResponse{Status: "success"}, http.StatusOK)
}

// Delete removes a group; unknown groups are not an error
func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("group_name")
	if name == "" {
		writeError(w, "Invalid group name", "group name is required", http.StatusBadRequest)
		return
	}

	if err := h.svc.Delete(r.Context(), name); err != nil {
		log.Printf("Failed to delete credentials: %v", err)
		writeError(w, "Failed to delete credentials", err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, StatusResponse{Status: "success"}, http.StatusOK)
}
