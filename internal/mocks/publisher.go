package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"dm-chat/internal/models"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) PublishMessage(ctx context.Context, msg models.Message, headers map[string]string) error {
	args := m.Called(ctx, msg, headers)
	return args.Error(0)
}

// NotifierMock records every notification.
type NotifierMock struct {
	mu       sync.Mutex
	messages []string
}

func (n *NotifierMock) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *NotifierMock) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.messages))
	copy(out, n.messages)
	return out
}
