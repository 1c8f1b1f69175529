package custody

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// InMemory is a concurrency-safe in-memory custody backend useful for unit
// tests and simulations. It tracks per-account balances plus the pool of
// value currently held in custody.
type InMemory struct {
	mu       sync.RWMutex
	decimals int32
	balances map[string]decimal.Decimal
	held     decimal.Decimal
}

// NewInMemory creates an in-memory custody backend for an asset with the
// given decimal precision.
func NewInMemory(decimals int32) *InMemory {
	return &InMemory{
		decimals: decimals,
		balances: make(map[string]decimal.Decimal),
		held:     decimal.Zero,
	}
}

// TransferIn moves amount from the account's balance into custody.
func (c *InMemory) TransferIn(_ context.Context, from string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) || !amount.IsInteger() {
		return ErrInvalidAmount
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	balance, ok := c.balances[from]
	if !ok || balance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	c.balances[from] = balance.Sub(amount)
	c.held = c.held.Add(amount)
	return nil
}

// TransferOut moves amount from custody to the account's balance.
func (c *InMemory) TransferOut(_ context.Context, to string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) || !amount.IsInteger() {
		return ErrInvalidAmount
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.held.LessThan(amount) {
		return ErrInsufficientFunds
	}

	c.held = c.held.Sub(amount)
	c.balances[to] = c.balances[to].Add(amount)
	return nil
}

// Decimals reports the asset precision configured at construction.
func (c *InMemory) Decimals(_ context.Context) (int32, error) {
	return c.decimals, nil
}

// Balance returns the free (non-custodied) balance of an account.
func (c *InMemory) Balance(account string) decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balances[account]
}

// Held returns the total value currently in custody.
func (c *InMemory) Held() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.held
}
