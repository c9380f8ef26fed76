package gateway

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/beachside/racetrack/go/internal/auth"
)

// WebSocketHandler handles WebSocket upgrade requests from the track views.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	authService       *auth.Service
	intake            Intake
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(cm *ConnectionManager, authService *auth.Service, intake Intake) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		authService:       authService,
		intake:            intake,
	}
}

// HandleConnection authorizes the presented token and upgrades the request.
// Connections without a token join as spectators. Every new connection gets
// a full state snapshot so displays render immediately.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	role, err := h.authService.Authorize(token)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket connection with unknown token refused")
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.connectionManager.UpgradeConnection(w, r, role, h.intake)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}

	h.intake.RequestState(conn.ID)
}
