package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"tally/contexts/token-core/balance-ledger/domain/entities"
	domainerrors "tally/contexts/token-core/balance-ledger/domain/errors"
	"tally/contexts/token-core/balance-ledger/ports"

	"github.com/google/uuid"
)

// Store keeps the full ledger state in process memory. It stands in for the
// hosting runtime's persistence between calls: balances are stored sparsely
// (absent account == zero balance) and every applied mutation records its
// notification envelope in the outbox under the same lock.
type Store struct {
	mu sync.RWMutex

	initialized bool
	owner       entities.AccountID
	totalSupply entities.Balance
	balances    map[entities.AccountID]entities.Balance
	outbox      map[string]outboxRecord
}

type outboxRecord struct {
	Message     ports.OutboxMessage
	Status      string
	PublishedAt *time.Time
}

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

func NewStore() *Store {
	return &Store{
		balances: make(map[entities.AccountID]entities.Balance),
		outbox:   make(map[string]outboxRecord),
	}
}

func (s *Store) InitLedger(_ context.Context, owner entities.AccountID) error {
	owner = owner.Normalized()
	if owner.IsBlank() {
		return domainerrors.ErrInvalidAccount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		if s.owner != owner {
			return domainerrors.ErrAlreadyInitialized
		}
		return nil
	}
	s.initialized = true
	s.owner = owner
	return nil
}

func (s *Store) Owner(_ context.Context) (entities.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return "", domainerrors.ErrLedgerNotInitialized
	}
	return s.owner, nil
}

func (s *Store) TotalSupply(_ context.Context) (entities.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalSupply, nil
}

func (s *Store) GetBalance(_ context.Context, account entities.AccountID) (entities.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[account.Normalized()], nil
}

func (s *Store) ListHolders(_ context.Context, limit int, offset int) ([]ports.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	holders := make([]ports.Holder, 0, len(s.balances))
	for account, balance := range s.balances {
		if balance == 0 {
			continue
		}
		holders = append(holders, ports.Holder{Account: account, Balance: balance})
	}
	sort.Slice(holders, func(i, j int) bool {
		if holders[i].Balance != holders[j].Balance {
			return holders[i].Balance > holders[j].Balance
		}
		return holders[i].Account < holders[j].Account
	})
	if offset >= len(holders) {
		return []ports.Holder{}, nil
	}
	end := offset + limit
	if end > len(holders) {
		end = len(holders)
	}
	return append([]ports.Holder(nil), holders[offset:end]...), nil
}

func (s *Store) ApplyMint(
	_ context.Context,
	to entities.AccountID,
	amount entities.Balance,
	envelope ports.EventEnvelope,
) error {
	to = to.Normalized()
	if to.IsBlank() {
		return domainerrors.ErrInvalidAccount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return domainerrors.ErrLedgerNotInitialized
	}

	newBalance, ok := entities.AddBalance(s.balances[to], amount)
	if !ok {
		return domainerrors.ErrInvalidAmount
	}
	newSupply, ok := entities.AddBalance(s.totalSupply, amount)
	if !ok {
		return domainerrors.ErrInvalidAmount
	}
	if err := s.appendOutboxLocked(envelope); err != nil {
		return err
	}
	s.balances[to] = newBalance
	s.totalSupply = newSupply
	return nil
}

func (s *Store) ApplyTransfer(
	_ context.Context,
	from entities.AccountID,
	to entities.AccountID,
	amount entities.Balance,
	envelope ports.EventEnvelope,
) error {
	from = from.Normalized()
	to = to.Normalized()
	if from.IsBlank() || to.IsBlank() {
		return domainerrors.ErrInvalidAccount
	}
	if from == to {
		return domainerrors.ErrTransferToSelf
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return domainerrors.ErrLedgerNotInitialized
	}

	// Debit is checked before credit so a caller that both lacks funds and
	// would overflow the recipient reports the insufficiency.
	newFrom, ok := entities.SubBalance(s.balances[from], amount)
	if !ok {
		return domainerrors.ErrInsufficientBalance
	}
	newTo, ok := entities.AddBalance(s.balances[to], amount)
	if !ok {
		return domainerrors.ErrInvalidAmount
	}
	if err := s.appendOutboxLocked(envelope); err != nil {
		return err
	}
	s.balances[from] = newFrom
	s.balances[to] = newTo
	return nil
}

func (s *Store) ApplyBatchTransfer(
	_ context.Context,
	from entities.AccountID,
	legs []ports.TransferLeg,
	envelopes []ports.EventEnvelope,
) error {
	from = from.Normalized()
	if from.IsBlank() {
		return domainerrors.ErrInvalidAccount
	}
	if len(legs) == 0 || len(legs) != len(envelopes) {
		return domainerrors.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return domainerrors.ErrLedgerNotInitialized
	}

	// Stage every mutation on scratch state first so a failing leg leaves
	// the ledger untouched. Duplicate recipients accumulate across legs.
	scratch := make(map[entities.AccountID]entities.Balance, len(legs)+1)
	scratch[from] = s.balances[from]
	for _, leg := range legs {
		to := leg.To.Normalized()
		if to.IsBlank() {
			return domainerrors.ErrInvalidAccount
		}
		if to == from {
			return domainerrors.ErrTransferToSelf
		}
		if _, seen := scratch[to]; !seen {
			scratch[to] = s.balances[to]
		}

		newFrom, ok := entities.SubBalance(scratch[from], leg.Amount)
		if !ok {
			return domainerrors.ErrInsufficientBalance
		}
		newTo, ok := entities.AddBalance(scratch[to], leg.Amount)
		if !ok {
			return domainerrors.ErrInvalidAmount
		}
		scratch[from] = newFrom
		scratch[to] = newTo
	}

	for _, envelope := range envelopes {
		if err := s.appendOutboxLocked(envelope); err != nil {
			return err
		}
	}
	for account, balance := range scratch {
		s.balances[account] = balance
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.outbox {
		if row.Status == outboxStatusPending {
			items = append(items, row.Message)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].OutboxID < items[j].OutboxID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrOutboxNotFound
	}
	ts := publishedAt.UTC()
	row.Status = outboxStatusPublished
	row.PublishedAt = &ts
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) appendOutboxLocked(envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		return domainerrors.ErrInvalidEnvelope
	}
	s.outbox[outboxID] = outboxRecord{
		Message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt.UTC(),
		},
		Status: outboxStatusPending,
	}
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
