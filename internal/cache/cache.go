// Package cache persists the last known Bank balance of each account so it
// can be shown when the node is unreachable.
package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultStaleness is the default duration after which cache entries are considered stale.
const DefaultStaleness = 5 * time.Minute

// BalanceCache stores the last known balances keyed by Bank and account.
type BalanceCache struct {
	mu      sync.RWMutex            `json:"-"`
	Entries map[string]BalanceEntry `json:"entries"`
}

// BalanceEntry is one account's last refreshed Bank state.
type BalanceEntry struct {
	Bank        string    `json:"bank"`
	Account     string    `json:"account"`
	BalanceWei  string    `json:"balance_wei"`
	Deposits    int       `json:"deposits"`
	Withdrawals int       `json:"withdrawals"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewBalanceCache creates a new empty balance cache.
func NewBalanceCache() *BalanceCache {
	return &BalanceCache{
		Entries: make(map[string]BalanceEntry),
	}
}

// Key generates the cache key of an account at a Bank. Addresses compare
// case-insensitively.
func Key(bank, account string) string {
	return strings.ToLower(bank) + ":" + strings.ToLower(account)
}

// Get retrieves a cached entry, whether it exists, and its age.
func (c *BalanceCache) Get(bank, account string) (*BalanceEntry, bool, time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.Entries[Key(bank, account)]
	if !exists {
		return nil, false, 0
	}
	return &entry, true, time.Since(entry.UpdatedAt)
}

// Set stores an entry. A zero UpdatedAt is set to now.
func (c *BalanceCache) Set(entry BalanceEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now()
	}
	c.Entries[Key(entry.Bank, entry.Account)] = entry
}

// IsStale reports whether the entry is missing or older than staleness.
func (c *BalanceCache) IsStale(bank, account string, staleness time.Duration) bool {
	_, exists, age := c.Get(bank, account)
	return !exists || age > staleness
}

// Delete removes an entry.
func (c *BalanceCache) Delete(bank, account string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Entries, Key(bank, account))
}

// Size returns the number of cache entries.
func (c *BalanceCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.Entries)
}

// Prune removes entries older than maxAge.
func (c *BalanceCache) Prune(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for key, entry := range c.Entries {
		if entry.UpdatedAt.Before(cutoff) {
			delete(c.Entries, key)
			removed++
		}
	}
	return removed
}
