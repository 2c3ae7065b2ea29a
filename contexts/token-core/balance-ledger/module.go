package balanceledger

import (
	"context"
	"log/slog"

	hostadapter "tally/contexts/token-core/balance-ledger/adapters/host"
	"tally/contexts/token-core/balance-ledger/adapters/memory"
	"tally/contexts/token-core/balance-ledger/application"
	"tally/contexts/token-core/balance-ledger/domain/entities"
	"tally/contexts/token-core/balance-ledger/ports"
)

type Module struct {
	Handler hostadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Repository  ports.LedgerRepository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:   deps.Repository,
		Clock:  deps.Clock,
		IDGen:  deps.IDGenerator,
		Logger: deps.Logger,
	}
	return Module{
		Handler: hostadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
	}
}

// NewInMemoryModule wires the module against the in-process store and plays
// the constructor role of the hosting runtime: the supplied owner is the
// deploying caller, recorded once with zero supply and no balances.
func NewInMemoryModule(owner entities.AccountID, logger *slog.Logger) (Module, error) {
	store := memory.NewStore()
	if err := store.InitLedger(context.Background(), owner); err != nil {
		return Module{}, err
	}
	module := NewModule(Dependencies{
		Repository:  store,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module, nil
}
