package entities

import (
	"math"
	"strings"
)

// AccountID is an opaque participant identity supplied by the hosting
// runtime. The ledger never interprets its structure, only compares it.
type AccountID string

// Balance is a non-negative token amount. All balance arithmetic must go
// through the checked helpers below; a sum or difference that would wrap is
// rejected, never applied.
type Balance uint64

func (a AccountID) IsBlank() bool {
	return strings.TrimSpace(string(a)) == ""
}

func (a AccountID) Normalized() AccountID {
	return AccountID(strings.TrimSpace(string(a)))
}

// AddBalance returns a+b and whether the addition stayed in range.
func AddBalance(a, b Balance) (Balance, bool) {
	if uint64(b) > math.MaxUint64-uint64(a) {
		return 0, false
	}
	return a + b, true
}

// SubBalance returns a-b and whether a covered b.
func SubBalance(a, b Balance) (Balance, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}
