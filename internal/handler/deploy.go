package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"autobot/internal/domain"
	"autobot/internal/repository"
	"autobot/internal/service"
)

// defaultHistoryLimit caps history listings without an explicit limit
const defaultHistoryLimit = 50

// DeploymentHandler handles configuration pushes and their history
type DeploymentHandler struct {
	svc *service.DeploymentService
}

// NewDeploymentHandler creates a new deployment handler
func NewDeploymentHandler(svc *service.DeploymentService) *DeploymentHandler {
	return &DeploymentHandler{svc: svc}
}

type pushRequest struct {
	TargetIP       string            `json:"target_ip" validate:"required,ip"`
	Username       string            `json:"username"`
	Password       string            `json:"password"`
	UserGroup      string            `json:"user_group"`
	DeviceType     string            `json:"device_type"`
	Commands       string            `json:"commands" validate:"required"`
	TemplateValues map[string]string `json:"template_values"`
}

// PushResponse is the outcome of one push. Log holds the rendered step
// lines joined by newlines; Entries holds the same steps structured.
type PushResponse struct {
	ID         string                  `json:"id"`
	Status     domain.DeploymentStatus `json:"status"`
	FinalState domain.DeploymentState  `json:"final_state"`
	Error      string                  `json:"error,omitempty"`
	Log        string                  `json:"log"`
	Entries    domain.DeploymentLog    `json:"entries"`
}

func newPushResponse(d *domain.Deployment) PushResponse {
	return PushResponse{
		ID:         d.ID,
		Status:     d.Status,
		FinalState: d.FinalState,
		Error:      d.Error,
		Log:        strings.Join(d.Log.Lines(), "\n"),
		Entries:    d.Log,
	}
}

// Push runs a deployment synchronously and returns its full log
func (h *DeploymentHandler) Push(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	d, err := h.svc.Push(r.Context(), domain.DeploymentRequest{
		TargetAddress:   req.TargetIP,
		Username:        req.Username,
		Password:        req.Password,
		CredentialGroup: req.UserGroup,
		CommandScript:   req.Commands,
		TemplateValues:  req.TemplateValues,
		DeviceType:      req.DeviceType,
	})
	switch {
	case errors.Is(err, domain.ErrMissingCredentials) && d != nil:
		writeJSON(w, newPushResponse(d), http.StatusBadRequest)
		return
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		log.Printf("Failed to push configuration: %v", err)
		writeError(w, "Failed to push configuration", err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, newPushResponse(d), http.StatusOK)
}

// List returns recent deployments, newest first
func (h *DeploymentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, "Invalid limit", v, http.StatusBadRequest)
			return
		}
		limit = n
	}

	deployments, err := h.svc.List(r.Context(), limit)
	if err != nil {
		log.Printf("Failed to list deployments: %v", err)
		writeError(w, "Failed to list deployments", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, deployments, http.StatusOK)
}

// Get returns one deployment
func (h *DeploymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, err := h.svc.Get(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, "Not found", "deployment "+id+" not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Failed to get deployment: %v", err)
		writeError(w, "Failed to get deployment", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, d, http.StatusOK)
}
