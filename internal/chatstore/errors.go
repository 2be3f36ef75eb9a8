package chatstore

import (
	"errors"

	"dm-chat/internal/gateway"
)

// ErrNoRecipient is returned by SendMessage when neither an explicit receiver
// nor a selected user is available.
var ErrNoRecipient = errors.New("no user selected")

// User-facing fallback texts.
const (
	msgFetchUsersFailed    = "Failed to fetch users"
	msgFetchMessagesFailed = "Failed to fetch messages"
	msgSendFailed          = "Failed to send message"
	msgNoUserSelected      = "No user selected"
)

// NotificationText returns the server-reported message carried by err, or
// fallback when there is none.
func NotificationText(err error, fallback string) string {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
