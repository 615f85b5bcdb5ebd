package wallet

import (
	"github.com/mrz1836/coffer/internal/chain/eth"
)

// Wallet is an unlocked account: the mnemonic and seed held in secure
// memory plus the derived account at one BIP44 index.
type Wallet struct {
	mnemonic *SecureBytes
	seed     *SecureBytes
	account  Account
}

// New validates mnemonic and derives the account at index. lockMemory asks
// for the secrets to be mlocked.
func New(mnemonic string, index uint32, lockMemory bool) (*Wallet, error) {
	normalized := NormalizeMnemonicInput(mnemonic)
	seed, err := MnemonicToSeed(normalized, "")
	if err != nil {
		return nil, err
	}
	defer clear(seed)

	acct, err := DeriveAccount(seed, index)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		mnemonic: NewSecureBytes([]byte(normalized), lockMemory),
		seed:     NewSecureBytes(seed, lockMemory),
		account:  *acct,
	}, nil
}

// Create generates a fresh mnemonic of wordCount words.
func Create(wordCount int, index uint32, lockMemory bool) (*Wallet, error) {
	mnemonic, err := GenerateMnemonic(wordCount)
	if err != nil {
		return nil, err
	}
	return New(mnemonic, index, lockMemory)
}

// Account returns the derived account.
func (w *Wallet) Account() Account {
	return w.account
}

// Address returns the account address in checksum form.
func (w *Wallet) Address() string {
	return w.account.Address
}

// Mnemonic returns the recovery phrase. The slice is zeroed by Destroy.
func (w *Wallet) Mnemonic() []byte {
	return w.mnemonic.Bytes()
}

// IsLocked reports whether both secrets are mlocked.
func (w *Wallet) IsLocked() bool {
	return w.mnemonic.IsLocked() && w.seed.IsLocked()
}

// Signer derives the account key and returns a transaction signer for it.
func (w *Wallet) Signer() (*eth.KeySigner, error) {
	priv, err := DerivePrivateKey(w.seed.Bytes(), w.account.Index)
	if err != nil {
		return nil, err
	}
	// NewKeySigner zeroes priv.
	return eth.NewKeySigner(priv)
}

// Destroy wipes the secrets. The wallet cannot sign afterwards.
func (w *Wallet) Destroy() {
	w.mnemonic.Destroy()
	w.seed.Destroy()
}
