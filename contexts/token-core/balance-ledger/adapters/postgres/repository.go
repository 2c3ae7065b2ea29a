package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tally/contexts/token-core/balance-ledger/domain/entities"
	domainerrors "tally/contexts/token-core/balance-ledger/domain/errors"
	"tally/contexts/token-core/balance-ledger/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"

	// The tracker manages exactly one ledger; its state lives in a single
	// fixed row.
	ledgerStateID = 1
)

// Repository is the hosting runtime's durable persistence behind the ledger
// ports. Balance mutations and their outbox envelopes are written inside one
// database transaction, so a committed mutation always carries its
// notification and a rolled-back one leaves no trace of either.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) InitLedger(ctx context.Context, owner entities.AccountID) error {
	owner = owner.Normalized()
	if owner.IsBlank() {
		return domainerrors.ErrInvalidAccount
	}

	row := ledgerStateModel{
		ID:          ledgerStateID,
		Owner:       string(owner),
		TotalSupply: 0,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return r.verifyOwner(ctx, owner)
		}
		return r.logError("ledger_repo_init_failed", create.Error, "owner", string(owner))
	}
	if create.RowsAffected > 0 {
		return nil
	}
	return r.verifyOwner(ctx, owner)
}

func (r *Repository) verifyOwner(ctx context.Context, owner entities.AccountID) error {
	existing, err := r.Owner(ctx)
	if err != nil {
		return err
	}
	if existing != owner {
		return domainerrors.ErrAlreadyInitialized
	}
	return nil
}

func (r *Repository) Owner(ctx context.Context) (entities.AccountID, error) {
	var row ledgerStateModel
	err := r.db.WithContext(ctx).
		Where("id = ?", ledgerStateID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domainerrors.ErrLedgerNotInitialized
		}
		return "", r.logError("ledger_repo_get_owner_failed", err)
	}
	return entities.AccountID(row.Owner), nil
}

func (r *Repository) TotalSupply(ctx context.Context) (entities.Balance, error) {
	var row ledgerStateModel
	err := r.db.WithContext(ctx).
		Where("id = ?", ledgerStateID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, r.logError("ledger_repo_get_supply_failed", err)
	}
	return entities.Balance(row.TotalSupply), nil
}

func (r *Repository) GetBalance(ctx context.Context, account entities.AccountID) (entities.Balance, error) {
	var row balanceModel
	err := r.db.WithContext(ctx).
		Where("account = ?", string(account.Normalized())).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, r.logError("ledger_repo_get_balance_failed", err,
			"account", string(account),
		)
	}
	return entities.Balance(row.Balance), nil
}

func (r *Repository) ListHolders(ctx context.Context, limit int, offset int) ([]ports.Holder, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rows []balanceModel
	err := r.db.WithContext(ctx).
		Where("balance > 0").
		Order("balance DESC, account ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("ledger_repo_list_holders_failed", err)
	}

	holders := make([]ports.Holder, 0, len(rows))
	for _, row := range rows {
		holders = append(holders, ports.Holder{
			Account: entities.AccountID(row.Account),
			Balance: entities.Balance(row.Balance),
		})
	}
	return holders, nil
}

func (r *Repository) ApplyMint(
	ctx context.Context,
	to entities.AccountID,
	amount entities.Balance,
	envelope ports.EventEnvelope,
) error {
	to = to.Normalized()
	if to.IsBlank() {
		return domainerrors.ErrInvalidAccount
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := lockLedgerState(tx)
		if err != nil {
			return err
		}

		balance, err := lockBalance(tx, to)
		if err != nil {
			return err
		}
		newBalance, ok := entities.AddBalance(balance, amount)
		if !ok {
			return domainerrors.ErrInvalidAmount
		}
		newSupply, ok := entities.AddBalance(entities.Balance(state.TotalSupply), amount)
		if !ok {
			return domainerrors.ErrInvalidAmount
		}

		if err := upsertBalance(tx, to, newBalance); err != nil {
			return err
		}
		if err := saveSupply(tx, newSupply); err != nil {
			return err
		}
		return appendOutbox(tx, envelope)
	})
	if err != nil {
		if isDomainError(err) {
			return err
		}
		return r.logError("ledger_repo_apply_mint_failed", err,
			"to", string(to),
			"amount", uint64(amount),
		)
	}
	return nil
}

func (r *Repository) ApplyTransfer(
	ctx context.Context,
	from entities.AccountID,
	to entities.AccountID,
	amount entities.Balance,
	envelope ports.EventEnvelope,
) error {
	return r.ApplyBatchTransfer(ctx, from,
		[]ports.TransferLeg{{To: to, Amount: amount}},
		[]ports.EventEnvelope{envelope},
	)
}

func (r *Repository) ApplyBatchTransfer(
	ctx context.Context,
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

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockLedgerState(tx); err != nil {
			return err
		}

		scratch := make(map[entities.AccountID]entities.Balance, len(legs)+1)
		fromBalance, err := lockBalance(tx, from)
		if err != nil {
			return err
		}
		scratch[from] = fromBalance

		for _, leg := range legs {
			to := leg.To.Normalized()
			if to.IsBlank() {
				return domainerrors.ErrInvalidAccount
			}
			if to == from {
				return domainerrors.ErrTransferToSelf
			}
			if _, seen := scratch[to]; !seen {
				balance, err := lockBalance(tx, to)
				if err != nil {
					return err
				}
				scratch[to] = balance
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

		for account, balance := range scratch {
			if err := upsertBalance(tx, account, balance); err != nil {
				return err
			}
		}
		for _, envelope := range envelopes {
			if err := appendOutbox(tx, envelope); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return err
		}
		return r.logError("ledger_repo_apply_transfer_failed", err,
			"from", string(from),
			"legs", len(legs),
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("ledger_repo_list_outbox_failed", err)
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.ID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
			CreatedAt:    row.CreatedAt,
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	ts := publishedAt.UTC()
	update := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": &ts,
		})
	if update.Error != nil {
		return r.logError("ledger_repo_mark_outbox_failed", update.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if update.RowsAffected == 0 {
		return domainerrors.ErrOutboxNotFound
	}
	return nil
}

func lockLedgerState(tx *gorm.DB) (ledgerStateModel, error) {
	var row ledgerStateModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", ledgerStateID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledgerStateModel{}, domainerrors.ErrLedgerNotInitialized
		}
		return ledgerStateModel{}, err
	}
	return row, nil
}

func lockBalance(tx *gorm.DB, account entities.AccountID) (entities.Balance, error) {
	var row balanceModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account = ?", string(account)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return entities.Balance(row.Balance), nil
}

func upsertBalance(tx *gorm.DB, account entities.AccountID, balance entities.Balance) error {
	row := balanceModel{
		Account:   string(account),
		Balance:   uint64(balance),
		UpdatedAt: time.Now().UTC(),
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance":    row.Balance,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
}

func saveSupply(tx *gorm.DB, supply entities.Balance) error {
	return tx.Model(&ledgerStateModel{}).
		Where("id = ?", ledgerStateID).
		Updates(map[string]any{
			"total_supply": uint64(supply),
			"updated_at":   time.Now().UTC(),
		}).Error
}

func appendOutbox(tx *gorm.DB, envelope ports.EventEnvelope) error {
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		return domainerrors.ErrInvalidEnvelope
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		ID:           outboxID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	return tx.Create(&row).Error
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+7)
	fields = append(fields,
		"event", event,
		"module", "token-core/balance-ledger",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ledger repository operation failed", fields...)
	return err
}

func isDomainError(err error) bool {
	return errors.Is(err, domainerrors.ErrNotOwner) ||
		errors.Is(err, domainerrors.ErrInvalidAmount) ||
		errors.Is(err, domainerrors.ErrTransferToSelf) ||
		errors.Is(err, domainerrors.ErrInsufficientBalance) ||
		errors.Is(err, domainerrors.ErrInvalidAccount) ||
		errors.Is(err, domainerrors.ErrInvalidEnvelope) ||
		errors.Is(err, domainerrors.ErrLedgerNotInitialized) ||
		errors.Is(err, domainerrors.ErrAlreadyInitialized)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type ledgerStateModel struct {
	ID          int       `gorm:"column:id;primaryKey"`
	Owner       string    `gorm:"column:owner"`
	TotalSupply uint64    `gorm:"column:total_supply;type:numeric(20,0)"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (ledgerStateModel) TableName() string {
	return "ledger_state"
}

type balanceModel struct {
	Account   string    `gorm:"column:account;primaryKey"`
	Balance   uint64    `gorm:"column:balance;type:numeric(20,0)"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (balanceModel) TableName() string {
	return "ledger_balances"
}

type outboxModel struct {
	ID           string     `gorm:"column:id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "ledger_outbox"
}

var _ ports.LedgerRepository = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
