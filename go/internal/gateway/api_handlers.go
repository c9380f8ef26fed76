package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/beachside/racetrack/go/internal/auth"
	"github.com/beachside/racetrack/go/internal/hub"
)

// Snapshotter is the slice of the hub the HTTP API reads state through.
type Snapshotter interface {
	Snapshot(ctx context.Context) (hub.View, error)
}

// APIHandler serves the small HTTP surface next to the WebSocket: login
// and a read-only state snapshot.
type APIHandler struct {
	authService *auth.Service
	hub         Snapshotter
}

func NewAPIHandler(authService *auth.Service, h Snapshotter) *APIHandler {
	return &APIHandler{authService: authService, hub: h}
}

type loginRequest struct {
	Key  string `json:"key"`
	Role string `json:"role"`
}

type loginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// HandleLogin exchanges a role key for a session token.
func (h *APIHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed login request")
		return
	}

	role, ok := auth.ParseRole(req.Role)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}

	token, err := h.authService.Login(req.Key, role)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusForbidden, "invalid credentials")
			return
		}
		log.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, Role: string(role)})
}

type statePayload struct {
	State         json.RawMessage `json:"state"`
	ElapsedMillis int64           `json:"elapsedMillis"`
	DevMode       bool            `json:"devMode"`
}

// HandleState returns the current race state as JSON.
func (h *APIHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	view, err := h.hub.Snapshot(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("state snapshot failed")
		writeError(w, http.StatusServiceUnavailable, "state unavailable")
		return
	}

	state, err := json.Marshal(view.State)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal state")
		writeError(w, http.StatusInternalServerError, "encoding failed")
		return
	}

	writeJSON(w, http.StatusOK, statePayload{
		State:         state,
		ElapsedMillis: view.ElapsedMillis,
		DevMode:       view.DevMode,
	})
}

// HandleHealth reports liveness.
func (h *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
