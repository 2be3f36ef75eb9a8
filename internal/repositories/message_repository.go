package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dm-chat/internal/models"
)

// MessageRepository defines interactions for direct messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, senderID, receiverID string, req models.SendRequest) (models.Message, error)
	ListConversation(ctx context.Context, userID, otherID string) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, sender_id, receiver_id, text, image, file, file_type, created_at`

// CreateMessage stores a message and returns it with its server-assigned id and timestamp.
func (r *MessageRepo) CreateMessage(ctx context.Context, senderID, receiverID string, req models.SendRequest) (models.Message, error) {
	var msg models.Message
	query := `INSERT INTO messages (id, sender_id, receiver_id, text, image, file, file_type)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING ` + messageColumns
	err := r.db.GetContext(ctx, &msg, query, uuid.NewString(), senderID, receiverID, req.Text, req.Image, req.File, req.FileType)
	return msg, err
}

// ListConversation returns the messages exchanged between the two users, oldest first.
func (r *MessageRepo) ListConversation(ctx context.Context, userID, otherID string) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + `
        FROM messages
        WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
        ORDER BY created_at ASC, id ASC`
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, query, userID, otherID)
	return msgs, err
}
