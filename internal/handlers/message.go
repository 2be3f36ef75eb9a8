package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"dm-chat/internal/broker"
	"dm-chat/internal/middleware"
	"dm-chat/internal/models"
	"dm-chat/internal/observability"
	"dm-chat/internal/repositories"
)

// MessagePublisher hands stored messages to the push path.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, msg models.Message, headers map[string]string) error
}

// MessageHandler serves the direct-message endpoints.
type MessageHandler struct {
	userRepo    repositories.UserRepository
	messageRepo repositories.MessageRepository
	publisher   MessagePublisher
	logger      *slog.Logger
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(userRepo repositories.UserRepository, messageRepo repositories.MessageRepository, publisher MessagePublisher, logger *slog.Logger) *MessageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageHandler{
		userRepo:    userRepo,
		messageRepo: messageRepo,
		publisher:   publisher,
		logger:      logger.With("component", "messages"),
	}
}

// Register wires the message routes behind authMiddleware.
func (h *MessageHandler) Register(router gin.IRouter, authMiddleware gin.HandlerFunc) {
	group := router.Group("/messages", authMiddleware)
	group.GET("/users", h.GetUsersForSidebar)
	group.GET("/:id", h.GetMessages)
	group.POST("/send/:id", h.SendMessage)
}

// GetUsersForSidebar returns every user except the caller.
func (h *MessageHandler) GetUsersForSidebar(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	users, err := h.userRepo.ListUsersExcept(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list users", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, users)
}

// GetMessages returns the conversation between the caller and :id, oldest first.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	otherID := c.Param("id")

	msgs, err := h.messageRepo.ListConversation(c.Request.Context(), userID, otherID)
	if err != nil {
		h.logger.Error("list conversation", "user_id", userID, "other_id", otherID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, msgs)
}

// SendMessage stores a message for :id and publishes it to the push path.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	senderID := c.GetString(middleware.UserIDKey)
	receiverID := c.Param("id")

	var req models.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid message payload"})
		return
	}
	if req.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Message must contain text, an image or a file"})
		return
	}
	if senderID == receiverID {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot send a message to yourself"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.userRepo.GetUser(ctx, receiverID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Receiver not found"})
			return
		}
		h.logger.Error("lookup receiver", "receiver_id", receiverID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	msg, err := h.messageRepo.CreateMessage(ctx, senderID, receiverID, req)
	if err != nil {
		h.logger.Error("store message", "sender_id", senderID, "receiver_id", receiverID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	observability.IncMessageStored()

	traceID := ""
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	// The message is already persisted; a push failure only delays delivery
	// until the receiver refetches history.
	if err := h.publisher.PublishMessage(ctx, msg, broker.BuildHeaders(observability.RequestIDFromContext(c), traceID)); err != nil {
		h.logger.Warn("publish newMessage", "message_id", msg.ID, "error", err)
	}

	c.JSON(http.StatusCreated, msg)
}
