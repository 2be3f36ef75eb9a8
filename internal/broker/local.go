package broker

import (
	"context"

	"dm-chat/internal/models"
)

// LocalBroker delivers in-process, for single-instance deployments.
type LocalBroker struct {
	deliverer Deliverer
	reason    string
}

// NewLocalBroker constructs a LocalBroker. reason is non-empty when it stands
// in for a remote broker that failed to start.
func NewLocalBroker(deliverer Deliverer, reason string) *LocalBroker {
	return &LocalBroker{deliverer: deliverer, reason: reason}
}

func (b *LocalBroker) PublishMessage(ctx context.Context, msg models.Message, headers map[string]string) error {
	b.deliverer.DeliverMessage(msg)
	return nil
}

func (b *LocalBroker) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (b *LocalBroker) Close() error {
	return nil
}
