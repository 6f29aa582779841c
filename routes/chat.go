package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	ws "marketplace-server/websocket"
)

// handleWebSocketConnection upgrades an authenticated request into a notification stream.
func (h *Handlers) handleWebSocketConnection(c *gin.Context) {
	userID := currentUserID(c)
	h.Logger.Debug("websocket connection requested", zap.Uint("user_id", userID))
	ws.ServeWebSocket(h.Hub, c.Writer, c.Request, userID, currentRole(c))
}
