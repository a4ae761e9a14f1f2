package specialist

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
)

// Publisher is the subset of the QStash client used for notifications.
type Publisher interface {
	Publish(ctx context.Context, destination string, payload any) (string, error)
}

// QStashNotifier publishes customer notifications to a fixed destination.
type QStashNotifier struct {
	publisher   Publisher
	destination string
}

var _ contractx.Notifier = (*QStashNotifier)(nil)

func NewQStashNotifier(publisher Publisher, destination string) *QStashNotifier {
	return &QStashNotifier{publisher: publisher, destination: destination}
}

func (n *QStashNotifier) Notify(ctx context.Context, msg contractx.Notification) error {
	id, err := n.publisher.Publish(ctx, n.destination, msg)
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	log.Debug().
		Str("message_id", id).
		Str("job_card_id", msg.JobCardID).
		Msg("customer notification queued")
	return nil
}
