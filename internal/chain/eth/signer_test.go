package eth

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeySigner_ZeroesInput(t *testing.T) {
	t.Parallel()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	raw := crypto.FromECDSA(key)

	signer, err := NewKeySigner(raw)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer.Address())
	assert.Equal(t, make([]byte, len(raw)), raw)
}

func TestNewKeySigner_Invalid(t *testing.T) {
	t.Parallel()
	_, err := NewKeySigner([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestKeySigner_SignTx(t *testing.T) {
	t.Parallel()
	signer := testSigner(t)
	to := common.HexToAddress(testBank)
	chainID := big.NewInt(11155111)

	tx := types.NewTx(&types.LegacyTx{Nonce: 1, To: &to, Value: big.NewInt(1), Gas: 21000, GasPrice: big.NewInt(1)})
	signed, err := signer.SignTx(tx, chainID)
	require.NoError(t, err)

	sender, err := types.Sender(types.NewEIP155Signer(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), sender)
	assert.Equal(t, chainID, signed.ChainId())
}

func TestDeriveAddress(t *testing.T) {
	t.Parallel()
	// Private key 1 maps to a well-known address.
	key := common.LeftPadBytes([]byte{1}, 32)
	addr, err := DeriveAddress(key)
	require.NoError(t, err)
	assert.Equal(t, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", addr)
}

func TestZeroPrivateKey(t *testing.T) {
	t.Parallel()
	key := []byte{1, 2, 3}
	ZeroPrivateKey(key)
	assert.Equal(t, []byte{0, 0, 0}, key)
	ZeroPrivateKey(nil)
}
