package errors

import "errors"

var (
	ErrNotOwner            = errors.New("caller is not the ledger owner")
	ErrInvalidAmount       = errors.New("amount is zero or would overflow")
	ErrTransferToSelf      = errors.New("transfer to the calling account is not allowed")
	ErrInsufficientBalance = errors.New("caller balance is insufficient")

	ErrInvalidAccount       = errors.New("account identity is blank")
	ErrInvalidEnvelope      = errors.New("notification envelope is missing an event id")
	ErrOutboxNotFound       = errors.New("outbox message not found")
	ErrLedgerNotInitialized = errors.New("ledger has not been initialized")
	ErrAlreadyInitialized   = errors.New("ledger is already initialized with a different owner")
)
