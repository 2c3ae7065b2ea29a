package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"tally/contexts/token-core/balance-ledger/domain/entities"
	domainerrors "tally/contexts/token-core/balance-ledger/domain/errors"
	"tally/contexts/token-core/balance-ledger/ports"
)

const (
	sourceService        = "balance-ledger"
	eventTypeMinted      = "token.minted"
	eventTypeTransferred = "token.transferred"
)

// Service implements the ledger operations. Every mutating call is a
// one-shot transition: preconditions are evaluated in a fixed order against
// current state, then the mutation and its notification envelope are applied
// through the repository as one atomic unit. The hosting runtime serializes
// invocations, so the service holds no state and no locks of its own.
type Service struct {
	Repo   ports.LedgerRepository
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (s Service) Mint(
	ctx context.Context,
	caller entities.AccountID,
	to entities.AccountID,
	amount entities.Balance,
) error {
	caller = caller.Normalized()
	to = to.Normalized()
	if caller.IsBlank() || to.IsBlank() {
		return domainerrors.ErrInvalidAccount
	}

	owner, err := s.Repo.Owner(ctx)
	if err != nil {
		return err
	}
	if caller != owner {
		return domainerrors.ErrNotOwner
	}
	if amount == 0 {
		return domainerrors.ErrInvalidAmount
	}

	envelope, err := s.mintEnvelope(ctx, to, amount)
	if err != nil {
		return err
	}
	if err := s.Repo.ApplyMint(ctx, to, amount, envelope); err != nil {
		return err
	}

	ResolveLogger(s.Logger).Info("tokens minted",
		"event", "tokens_minted",
		"module", "token-core/balance-ledger",
		"layer", "application",
		"to", string(to),
		"amount", uint64(amount),
		"event_id", envelope.EventID,
	)
	return nil
}

func (s Service) Transfer(
	ctx context.Context,
	caller entities.AccountID,
	to entities.AccountID,
	amount entities.Balance,
) error {
	caller = caller.Normalized()
	to = to.Normalized()
	if caller.IsBlank() || to.IsBlank() {
		return domainerrors.ErrInvalidAccount
	}

	// Precondition order is observable: a self-transfer with an
	// insufficient balance must still report ErrTransferToSelf.
	if to == caller {
		return domainerrors.ErrTransferToSelf
	}
	if amount == 0 {
		return domainerrors.ErrInvalidAmount
	}

	envelope, err := s.transferEnvelope(ctx, caller, to, amount)
	if err != nil {
		return err
	}
	if err := s.Repo.ApplyTransfer(ctx, caller, to, amount, envelope); err != nil {
		return err
	}

	ResolveLogger(s.Logger).Info("tokens transferred",
		"event", "tokens_transferred",
		"module", "token-core/balance-ledger",
		"layer", "application",
		"from", string(caller),
		"to", string(to),
		"amount", uint64(amount),
		"event_id", envelope.EventID,
	)
	return nil
}

// BatchTransfer applies several transfer legs from the caller as a single
// all-or-nothing step. Every leg is validated before any balance moves; one
// token.transferred notification is recorded per applied leg.
func (s Service) BatchTransfer(
	ctx context.Context,
	caller entities.AccountID,
	legs []ports.TransferLeg,
) error {
	caller = caller.Normalized()
	if caller.IsBlank() {
		return domainerrors.ErrInvalidAccount
	}
	if len(legs) == 0 {
		return domainerrors.ErrInvalidAmount
	}

	normalized := make([]ports.TransferLeg, 0, len(legs))
	total := entities.Balance(0)
	for _, leg := range legs {
		to := leg.To.Normalized()
		if to.IsBlank() {
			return domainerrors.ErrInvalidAccount
		}
		if to == caller {
			return domainerrors.ErrTransferToSelf
		}
		if leg.Amount == 0 {
			return domainerrors.ErrInvalidAmount
		}
		sum, ok := entities.AddBalance(total, leg.Amount)
		if !ok {
			return domainerrors.ErrInvalidAmount
		}
		total = sum
		normalized = append(normalized, ports.TransferLeg{To: to, Amount: leg.Amount})
	}

	envelopes := make([]ports.EventEnvelope, 0, len(normalized))
	for _, leg := range normalized {
		envelope, err := s.transferEnvelope(ctx, caller, leg.To, leg.Amount)
		if err != nil {
			return err
		}
		envelopes = append(envelopes, envelope)
	}
	if err := s.Repo.ApplyBatchTransfer(ctx, caller, normalized, envelopes); err != nil {
		return err
	}

	ResolveLogger(s.Logger).Info("batch transfer applied",
		"event", "tokens_batch_transferred",
		"module", "token-core/balance-ledger",
		"layer", "application",
		"from", string(caller),
		"legs", len(normalized),
		"total_amount", uint64(total),
	)
	return nil
}

func (s Service) BalanceOf(ctx context.Context, account entities.AccountID) (entities.Balance, error) {
	account = account.Normalized()
	if account.IsBlank() {
		return 0, domainerrors.ErrInvalidAccount
	}
	return s.Repo.GetBalance(ctx, account)
}

func (s Service) MyBalance(ctx context.Context, caller entities.AccountID) (entities.Balance, error) {
	return s.BalanceOf(ctx, caller)
}

func (s Service) TotalSupply(ctx context.Context) (entities.Balance, error) {
	return s.Repo.TotalSupply(ctx)
}

func (s Service) Owner(ctx context.Context) (entities.AccountID, error) {
	return s.Repo.Owner(ctx)
}

func (s Service) ListHolders(ctx context.Context, limit int, offset int) ([]ports.Holder, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListHolders(ctx, limit, offset)
}

func (s Service) mintEnvelope(
	ctx context.Context,
	to entities.AccountID,
	amount entities.Balance,
) (ports.EventEnvelope, error) {
	data, err := json.Marshal(map[string]any{
		"to":     string(to),
		"amount": uint64(amount),
	})
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return s.envelope(ctx, eventTypeMinted, "to", string(to), data)
}

func (s Service) transferEnvelope(
	ctx context.Context,
	from entities.AccountID,
	to entities.AccountID,
	amount entities.Balance,
) (ports.EventEnvelope, error) {
	data, err := json.Marshal(map[string]any{
		"from":   string(from),
		"to":     string(to),
		"amount": uint64(amount),
	})
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return s.envelope(ctx, eventTypeTransferred, "from", string(from), data)
}

func (s Service) envelope(
	ctx context.Context,
	eventType string,
	partitionKeyPath string,
	partitionKey string,
	data json.RawMessage,
) (ports.EventEnvelope, error) {
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          strings.TrimSpace(eventID),
		EventType:        eventType,
		OccurredAt:       s.now(),
		SourceService:    sourceService,
		TraceID:          strings.TrimSpace(eventID),
		SchemaVersion:    1,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     partitionKey,
		Data:             data,
	}, nil
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}
