package hostadapter

import (
	"context"
	"errors"
	"log/slog"

	"tally/contexts/token-core/balance-ledger/application"
	"tally/contexts/token-core/balance-ledger/domain/entities"
	domainerrors "tally/contexts/token-core/balance-ledger/domain/errors"
	"tally/contexts/token-core/balance-ledger/ports"
	hosttransport "tally/contexts/token-core/balance-ledger/transport/host"
)

// Handler is the host-facing call surface: the hosting runtime hands each
// invocation an already-authenticated caller identity plus typed arguments,
// and receives a DTO back. There is no wire protocol here; the host owns
// transport, serialization of calls, and delivery of recorded notifications.
type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) MintHandler(ctx context.Context, req hosttransport.MintRequest) (hosttransport.MintResponse, error) {
	err := h.Service.Mint(ctx,
		entities.AccountID(req.Caller),
		entities.AccountID(req.To),
		entities.Balance(req.Amount),
	)
	if err != nil {
		return hosttransport.MintResponse{}, err
	}
	supply, err := h.Service.TotalSupply(ctx)
	if err != nil {
		return hosttransport.MintResponse{}, err
	}

	resp := hosttransport.MintResponse{Status: "success"}
	resp.Data.To = req.To
	resp.Data.Amount = req.Amount
	resp.Data.TotalSupply = uint64(supply)
	return resp, nil
}

func (h Handler) TransferHandler(ctx context.Context, req hosttransport.TransferRequest) (hosttransport.TransferResponse, error) {
	err := h.Service.Transfer(ctx,
		entities.AccountID(req.Caller),
		entities.AccountID(req.To),
		entities.Balance(req.Amount),
	)
	if err != nil {
		return hosttransport.TransferResponse{}, err
	}

	resp := hosttransport.TransferResponse{Status: "success"}
	resp.Data.From = req.Caller
	resp.Data.To = req.To
	resp.Data.Amount = req.Amount
	return resp, nil
}

func (h Handler) BatchTransferHandler(ctx context.Context, req hosttransport.BatchTransferRequest) (hosttransport.BatchTransferResponse, error) {
	legs := make([]ports.TransferLeg, 0, len(req.Legs))
	total := uint64(0)
	for _, leg := range req.Legs {
		legs = append(legs, ports.TransferLeg{
			To:     entities.AccountID(leg.To),
			Amount: entities.Balance(leg.Amount),
		})
		total += leg.Amount
	}
	if err := h.Service.BatchTransfer(ctx, entities.AccountID(req.Caller), legs); err != nil {
		return hosttransport.BatchTransferResponse{}, err
	}

	resp := hosttransport.BatchTransferResponse{Status: "success"}
	resp.Data.From = req.Caller
	resp.Data.Legs = len(req.Legs)
	resp.Data.TotalAmount = total
	return resp, nil
}

func (h Handler) BalanceOfHandler(ctx context.Context, req hosttransport.BalanceRequest) (hosttransport.BalanceResponse, error) {
	balance, err := h.Service.BalanceOf(ctx, entities.AccountID(req.Account))
	if err != nil {
		return hosttransport.BalanceResponse{}, err
	}

	resp := hosttransport.BalanceResponse{Status: "success"}
	resp.Data.Account = req.Account
	resp.Data.Balance = uint64(balance)
	return resp, nil
}

func (h Handler) MyBalanceHandler(ctx context.Context, req hosttransport.MyBalanceRequest) (hosttransport.BalanceResponse, error) {
	balance, err := h.Service.MyBalance(ctx, entities.AccountID(req.Caller))
	if err != nil {
		return hosttransport.BalanceResponse{}, err
	}

	resp := hosttransport.BalanceResponse{Status: "success"}
	resp.Data.Account = req.Caller
	resp.Data.Balance = uint64(balance)
	return resp, nil
}

func (h Handler) TotalSupplyHandler(ctx context.Context) (hosttransport.TotalSupplyResponse, error) {
	supply, err := h.Service.TotalSupply(ctx)
	if err != nil {
		return hosttransport.TotalSupplyResponse{}, err
	}

	resp := hosttransport.TotalSupplyResponse{Status: "success"}
	resp.Data.TotalSupply = uint64(supply)
	return resp, nil
}

func (h Handler) OwnerHandler(ctx context.Context) (hosttransport.OwnerResponse, error) {
	owner, err := h.Service.Owner(ctx)
	if err != nil {
		return hosttransport.OwnerResponse{}, err
	}

	resp := hosttransport.OwnerResponse{Status: "success"}
	resp.Data.Owner = string(owner)
	return resp, nil
}

func (h Handler) ListHoldersHandler(ctx context.Context, req hosttransport.HoldersRequest) (hosttransport.HoldersResponse, error) {
	holders, err := h.Service.ListHolders(ctx, req.Limit, req.Offset)
	if err != nil {
		return hosttransport.HoldersResponse{}, err
	}

	resp := hosttransport.HoldersResponse{
		Status: "success",
		Data:   make([]hosttransport.HolderDTO, 0, len(holders)),
	}
	for _, holder := range holders {
		resp.Data = append(resp.Data, hosttransport.HolderDTO{
			Account: string(holder.Account),
			Balance: uint64(holder.Balance),
		})
	}
	return resp, nil
}

// MapError folds a domain error into the code/message pair hosts report back
// to callers. Unknown errors surface as HOST_FAILURE so caller-correctable
// rejections stay distinguishable from runtime faults.
func MapError(err error) hosttransport.ErrorResponse {
	switch {
	case errors.Is(err, domainerrors.ErrNotOwner):
		return hosttransport.ErrorResponse{Code: "NOT_OWNER", Message: err.Error()}
	case errors.Is(err, domainerrors.ErrInvalidAmount):
		return hosttransport.ErrorResponse{Code: "INVALID_AMOUNT", Message: err.Error()}
	case errors.Is(err, domainerrors.ErrTransferToSelf):
		return hosttransport.ErrorResponse{Code: "TRANSFER_TO_SELF", Message: err.Error()}
	case errors.Is(err, domainerrors.ErrInsufficientBalance):
		return hosttransport.ErrorResponse{Code: "INSUFFICIENT_BALANCE", Message: err.Error()}
	case errors.Is(err, domainerrors.ErrInvalidAccount):
		return hosttransport.ErrorResponse{Code: "INVALID_ACCOUNT", Message: err.Error()}
	case errors.Is(err, domainerrors.ErrLedgerNotInitialized):
		return hosttransport.ErrorResponse{Code: "LEDGER_NOT_INITIALIZED", Message: err.Error()}
	case errors.Is(err, domainerrors.ErrAlreadyInitialized):
		return hosttransport.ErrorResponse{Code: "ALREADY_INITIALIZED", Message: err.Error()}
	default:
		return hosttransport.ErrorResponse{Code: "HOST_FAILURE", Message: err.Error()}
	}
}
