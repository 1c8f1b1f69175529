package custody

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that seeds the free balance for an account
// when using the in-memory custody backend.
func SeedBalance(c Custody, account string, amount int64) {
	if mem, ok := c.(*InMemory); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[account] = decimal.NewFromInt(amount)
	}
}
