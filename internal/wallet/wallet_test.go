package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

func TestNew(t *testing.T) {
	t.Parallel()

	w, err := New("  TEST test test test test test test test test test test junk\n", 0, false)
	require.NoError(t, err)
	defer w.Destroy()

	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", w.Address())
	assert.Equal(t, hardhatMnemonic, string(w.Mnemonic()))
	assert.False(t, w.IsLocked())

	_, err = New("nope", 0, false)
	require.ErrorIs(t, err, coffererr.ErrInvalidMnemonic)
}

func TestCreate(t *testing.T) {
	t.Parallel()

	w, err := Create(24, 3, false)
	require.NoError(t, err)
	defer w.Destroy()

	assert.Equal(t, uint32(3), w.Account().Index)
	require.NoError(t, ValidateMnemonic(string(w.Mnemonic())))
}

func TestWallet_Signer(t *testing.T) {
	t.Parallel()

	w, err := New(hardhatMnemonic, 1, false)
	require.NoError(t, err)

	signer, err := w.Signer()
	require.NoError(t, err)
	assert.Equal(t, w.Address(), signer.Address().Hex())

	w.Destroy()
	assert.Nil(t, w.Mnemonic())
	_, err = w.Signer()
	require.Error(t, err)
}
