package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"dm-chat/internal/auth"
	"dm-chat/internal/middleware"
	"dm-chat/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// PushHandler binds an authenticated identity to a push connection.
type PushHandler struct {
	hub      *Hub
	verifier auth.TokenVerifier
}

// NewPushHandler constructs a PushHandler.
func NewPushHandler(hub *Hub, verifier auth.TokenVerifier) *PushHandler {
	return &PushHandler{hub: hub, verifier: verifier}
}

// Handle upgrades the connection and registers it under the caller's user id.
func (h *PushHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("dm-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token, ok := middleware.TokenFromRequest(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - No Token Provided"})
		return
	}
	userID, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - Invalid Token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromContext(c),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	cl := newClient(conn, info)
	h.hub.addClient(cl)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.hub.logger.Info("push connected", "conn_id", info.ConnID, "user_id", userID, "ip", info.IP)

	go cl.writePump()
	go func() {
		err := cl.readPump()
		h.hub.removeClient(cl)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			observability.IncWSEvent("ws_error")
			h.hub.logger.Warn("push connection error", "conn_id", info.ConnID, "error", err)
		}
		h.hub.logger.Info("push disconnected", "conn_id", info.ConnID, "user_id", userID,
			"duration_ms", time.Since(info.ConnectedAt).Milliseconds())
	}()
}
