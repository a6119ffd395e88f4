package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/theblitlabs/sandbox-provisioner/internal/api/middleware"
	"github.com/theblitlabs/sandbox-provisioner/internal/core/models"
	"github.com/theblitlabs/sandbox-provisioner/internal/services"
	"github.com/theblitlabs/sandbox-provisioner/pkg/logger"
)

// OptionsSource returns the provisioning configuration for one request.
type OptionsSource func() (services.ProvisionOptions, error)

type SandboxHandler struct {
	provisioner services.IProvisionService
	relay       services.IRelayService
	options     OptionsSource
}

func NewSandboxHandler(provisioner services.IProvisionService, relay services.IRelayService, options OptionsSource) *SandboxHandler {
	return &SandboxHandler{
		provisioner: provisioner,
		relay:       relay,
		options:     options,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type callRequest struct {
	SandboxURL string `json:"sandboxUrl"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log := logger.WithComponent("api")
		log.Debug().Err(err).Msg("Response write failed")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// InitSandbox provisions a sandbox and responds with its address.
func (h *SandboxHandler) InitSandbox(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api").With().
		Str("request_id", middleware.RequestID(r.Context())).
		Logger()

	opts, err := h.options()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load provisioning configuration")
		writeError(w, http.StatusInternalServerError, models.MsgSandboxCreateFailed)
		return
	}

	// The run outlives a dropped connection; only request values carry over.
	result, err := h.provisioner.Provision(context.WithoutCancel(r.Context()), opts)
	if err != nil {
		if perr, ok := services.AsProvisionError(err); ok {
			writeError(w, perr.StatusCode, perr.Message)
			return
		}
		log.Error().Err(err).Msg("Unexpected provisioning error")
		writeError(w, http.StatusInternalServerError, models.MsgSandboxCreateFailed)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Call relays one data request to a sandboxed application.
func (h *SandboxHandler) Call(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log := logger.WithComponent("api")
		log.Warn().Err(err).Str("request_id", middleware.RequestID(r.Context())).Msg("Unreadable call request")
		writeError(w, http.StatusInternalServerError, models.MsgDownstreamFailed)
		return
	}
	if req.SandboxURL == "" {
		writeError(w, http.StatusBadRequest, models.MsgSandboxURLRequired)
		return
	}

	body, err := h.relay.Fetch(r.Context(), req.SandboxURL)
	switch {
	case errors.Is(err, models.ErrSandboxURLRequired):
		writeError(w, http.StatusBadRequest, models.MsgSandboxURLRequired)
	case err != nil:
		writeError(w, http.StatusInternalServerError, models.MsgDownstreamFailed)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}
