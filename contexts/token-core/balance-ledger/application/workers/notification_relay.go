package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"tally/contexts/token-core/balance-ledger/application"
	"tally/contexts/token-core/balance-ledger/ports"
)

// NotificationRelay drains recorded notification envelopes from the outbox
// and hands them to the delivery collaborator. Mutating calls never publish
// directly; they record the envelope atomically with the state change and
// this relay delivers it afterwards, which is what keeps "exactly one
// notification per successful mutation, none on failure" true end to end.
type NotificationRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

func (r NotificationRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	topic := r.Topic
	if topic == "" {
		topic = "token.ledger"
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("outbox list pending failed",
			"event", "ledger_outbox_list_failed",
			"module", "token-core/balance-ledger",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, message := range pending {
		var envelope ports.EventEnvelope
		if err := json.Unmarshal(message.Payload, &envelope); err != nil {
			logger.Error("outbox payload decode failed",
				"event", "ledger_outbox_decode_failed",
				"module", "token-core/balance-ledger",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}

		if err := r.Publisher.Publish(ctx, topic, envelope); err != nil {
			logger.Error("notification publish failed",
				"event", "ledger_outbox_publish_failed",
				"module", "token-core/balance-ledger",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"event_id", envelope.EventID,
				"event_type", envelope.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, message.OutboxID, now); err != nil {
			logger.Error("outbox mark published failed",
				"event", "ledger_outbox_mark_published_failed",
				"module", "token-core/balance-ledger",
				"layer", "worker",
				"outbox_id", message.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	if len(pending) > 0 {
		logger.Info("notification relay cycle completed",
			"event", "ledger_outbox_relay_completed",
			"module", "token-core/balance-ledger",
			"layer", "worker",
			"published_count", len(pending),
		)
	}
	return nil
}
