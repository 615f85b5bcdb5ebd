package eth

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceManager tracks the next nonce per account so a deposit and a
// withdraw broadcast back to back do not collide before the first one is
// visible in the node's pending pool.
type NonceManager struct {
	mu     sync.Mutex
	nonces map[common.Address]uint64 // account -> one past the highest nonce handed out
}

// NewNonceManager creates a new NonceManager.
func NewNonceManager() *NonceManager {
	return &NonceManager{
		nonces: make(map[common.Address]uint64),
	}
}

// Next returns the higher of the node's pending nonce and the locally
// tracked nonce, and reserves it.
func (nm *NonceManager) Next(account common.Address, pending uint64) uint64 {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	nonce := pending
	if local, ok := nm.nonces[account]; ok && local > pending {
		nonce = local
	}
	nm.nonces[account] = nonce + 1
	return nonce
}

// Release gives back a nonce whose transaction never reached the network.
// Only the most recently reserved nonce can be released.
func (nm *NonceManager) Release(account common.Address, nonce uint64) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	if next, ok := nm.nonces[account]; ok && next == nonce+1 {
		nm.nonces[account] = nonce
	}
}

// Reset clears local tracking for an account.
func (nm *NonceManager) Reset(account common.Address) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	delete(nm.nonces, account)
}
