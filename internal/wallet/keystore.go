package wallet

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/mrz1836/coffer/internal/fileutil"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

const (
	keystoreVersion = 1
	keystorePerm    = 0o600

	// DefaultWorkFactor is the scrypt log2(N) used for new keystores.
	DefaultWorkFactor = 18
)

// Metadata is the unencrypted part of a keystore file.
type Metadata struct {
	Version   int       `json:"version"`
	Address   string    `json:"address"`
	Index     uint32    `json:"index"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// keystoreFile is the on-disk layout: metadata plus the armored age
// ciphertext of the mnemonic.
type keystoreFile struct {
	Metadata

	Ciphertext string `json:"ciphertext"`
}

// Keystore persists one wallet encrypted with an age scrypt passphrase.
type Keystore struct {
	path       string
	workFactor int
	lockMemory bool
	now        func() time.Time
}

// KeystoreOption configures a Keystore.
type KeystoreOption func(*Keystore)

// WithWorkFactor sets the scrypt work factor for Save and the maximum
// accepted by Load.
func WithWorkFactor(logN int) KeystoreOption {
	return func(k *Keystore) { k.workFactor = logN }
}

// WithMemoryLock controls whether unlocked secrets are mlocked.
func WithMemoryLock(lock bool) KeystoreOption {
	return func(k *Keystore) { k.lockMemory = lock }
}

// NewKeystore returns a keystore backed by the file at path.
func NewKeystore(path string, opts ...KeystoreOption) *Keystore {
	k := &Keystore{
		path:       path,
		workFactor: DefaultWorkFactor,
		lockMemory: true,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Path returns the keystore file path.
func (k *Keystore) Path() string {
	return k.path
}

// Exists reports whether the keystore file is present.
func (k *Keystore) Exists() (bool, error) {
	return fileutil.Exists(k.path)
}

// Save encrypts the wallet's mnemonic with password and writes the keystore.
// An existing keystore is only replaced when overwrite is set.
func (k *Keystore) Save(w *Wallet, password string, overwrite bool) (*Metadata, error) {
	if password == "" {
		return nil, coffererr.WithDetails(coffererr.ErrInvalidInput, map[string]string{"reason": "empty password"})
	}

	exists, err := k.Exists()
	if err != nil {
		return nil, coffererr.Wrap(err, "checking keystore")
	}
	if exists && !overwrite {
		return nil, coffererr.WithDetails(coffererr.ErrWalletExists, map[string]string{"path": k.path})
	}

	ciphertext, err := k.encrypt(w.Mnemonic(), password)
	if err != nil {
		return nil, coffererr.Wrap(err, "encrypting keystore")
	}

	acct := w.Account()
	file := keystoreFile{
		Metadata: Metadata{
			Version:   keystoreVersion,
			Address:   acct.Address,
			Index:     acct.Index,
			Path:      acct.Path,
			CreatedAt: k.now().UTC(),
		},
		Ciphertext: ciphertext,
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return nil, coffererr.Wrap(err, "encoding keystore")
	}
	if err := fileutil.WriteAtomic(k.path, data, keystorePerm); err != nil {
		return nil, coffererr.Wrap(err, "writing keystore")
	}

	return &file.Metadata, nil
}

// Metadata reads the keystore without decrypting it.
func (k *Keystore) Metadata() (*Metadata, error) {
	file, err := k.read()
	if err != nil {
		return nil, err
	}
	return &file.Metadata, nil
}

// Load decrypts the keystore and re-derives the stored account.
func (k *Keystore) Load(password string) (*Wallet, error) {
	file, err := k.read()
	if err != nil {
		return nil, err
	}

	mnemonic, err := k.decrypt(file.Ciphertext, password)
	if err != nil {
		return nil, err
	}
	defer clear(mnemonic)

	w, err := New(string(mnemonic), file.Index, k.lockMemory)
	if err != nil {
		return nil, coffererr.Wrap(err, "keystore content")
	}
	if !strings.EqualFold(w.Address(), file.Address) {
		w.Destroy()
		return nil, coffererr.WithDetails(coffererr.ErrDecryptionFailed, map[string]string{
			"reason": "address mismatch",
		})
	}
	return w, nil
}

func (k *Keystore) read() (*keystoreFile, error) {
	data, err := os.ReadFile(k.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, coffererr.WithSuggestion(
			coffererr.WithDetails(coffererr.ErrWalletNotFound, map[string]string{"path": k.path}),
			"run 'coffer wallet create' or 'coffer wallet import'",
		)
	}
	if err != nil {
		return nil, coffererr.Wrap(err, "reading keystore")
	}

	var file keystoreFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, coffererr.WithCause(coffererr.ErrDecryptionFailed, err)
	}
	if file.Version != keystoreVersion {
		return nil, coffererr.WithDetails(coffererr.ErrDecryptionFailed, map[string]string{
			"reason": "unsupported keystore version",
		})
	}
	return &file, nil
}

func (k *Keystore) encrypt(plaintext []byte, password string) (string, error) {
	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return "", err
	}
	recipient.SetWorkFactor(k.workFactor)

	buf := &bytes.Buffer{}
	aw := armor.NewWriter(buf)
	w, err := age.Encrypt(aw, recipient)
	if err != nil {
		return "", err
	}
	if _, err := w.Write(plaintext); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	if err := aw.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (k *Keystore) decrypt(ciphertext, password string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return nil, coffererr.WithCause(coffererr.ErrDecryptionFailed, err)
	}
	identity.SetMaxWorkFactor(max(k.workFactor, DefaultWorkFactor))

	r, err := age.Decrypt(armor.NewReader(strings.NewReader(ciphertext)), identity)
	if err != nil {
		return nil, coffererr.WithCause(coffererr.ErrDecryptionFailed, err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, coffererr.WithCause(coffererr.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}
