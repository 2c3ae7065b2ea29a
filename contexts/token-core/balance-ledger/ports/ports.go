package ports

import (
	"context"
	"time"

	"tally/contexts/token-core/balance-ledger/domain/entities"
	contractsv1 "tally/contracts/gen/events/v1"
)

type TransferLeg struct {
	To     entities.AccountID
	Amount entities.Balance
}

type Holder struct {
	Account entities.AccountID
	Balance entities.Balance
}

// LedgerRepository is the host-persistence port for the single ledger.
// The Apply* methods persist the balance mutation and the matching outbox
// envelope(s) as one atomic unit, so a successful mutation always has its
// notification recorded exactly once and a failed one records nothing.
type LedgerRepository interface {
	InitLedger(ctx context.Context, owner entities.AccountID) error
	Owner(ctx context.Context) (entities.AccountID, error)
	TotalSupply(ctx context.Context) (entities.Balance, error)
	GetBalance(ctx context.Context, account entities.AccountID) (entities.Balance, error)
	ListHolders(ctx context.Context, limit int, offset int) ([]Holder, error)
	ApplyMint(ctx context.Context, to entities.AccountID, amount entities.Balance, envelope EventEnvelope) error
	ApplyTransfer(ctx context.Context, from entities.AccountID, to entities.AccountID, amount entities.Balance, envelope EventEnvelope) error
	ApplyBatchTransfer(ctx context.Context, from entities.AccountID, legs []TransferLeg, envelopes []EventEnvelope) error
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
