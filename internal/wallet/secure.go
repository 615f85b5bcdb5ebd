package wallet

import (
	"runtime"
	"sync"
)

// SecureBytes holds a secret (mnemonic or seed) in memory that is locked
// against swapping when the platform allows it and zeroed on Destroy.
type SecureBytes struct {
	data   []byte
	locked bool
	mu     sync.Mutex
}

// NewSecureBytes copies data into a fresh buffer, locking it when lock is
// true. A failed lock is not an error; IsLocked reports the outcome.
func NewSecureBytes(data []byte, lock bool) *SecureBytes {
	sb := &SecureBytes{data: make([]byte, len(data))}
	copy(sb.data, data)
	if lock {
		sb.locked = mlock(sb.data)
	}

	runtime.SetFinalizer(sb, func(s *SecureBytes) {
		s.Destroy()
	})
	return sb
}

// Bytes returns the underlying slice, or nil after Destroy.
func (s *SecureBytes) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// String returns the secret as a string. The copy is not zeroed by Destroy.
func (s *SecureBytes) String() string {
	return string(s.Bytes())
}

// IsLocked reports whether the memory is mlocked.
func (s *SecureBytes) IsLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Len returns the length of the secret.
func (s *SecureBytes) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Destroy zeros and unlocks the memory. Safe to call multiple times.
func (s *SecureBytes) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return
	}

	clear(s.data)
	if s.locked {
		munlock(s.data)
		s.locked = false
	}
	s.data = nil

	runtime.SetFinalizer(s, nil)
}
