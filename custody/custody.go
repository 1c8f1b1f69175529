package custody

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks balance to
	// cover a requested transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount indicates a non-positive or fractional transfer amount.
	ErrInvalidAmount = errors.New("invalid transfer amount")
)

// Custody abstracts the asset-transfer mechanism that moves value in and out
// of the ledger's custody. Amounts are integral asset base units. The ledger
// engine treats the backend as opaque: each call either fully succeeds or
// fails without moving value.
type Custody interface {
	// TransferIn pulls amount from the given account into custody.
	TransferIn(ctx context.Context, from string, amount decimal.Decimal) error
	// TransferOut pushes amount from custody to the given account.
	TransferOut(ctx context.Context, to string, amount decimal.Decimal) error
	// Decimals reports the asset's decimal precision. Queried once at
	// engine construction to derive the fixed-point divisor.
	Decimals(ctx context.Context) (int32, error)
}
