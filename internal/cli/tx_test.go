package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/notify"
	"github.com/mrz1836/coffer/internal/output"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// withTxFlags sets the deposit/withdraw flags and restores them on cleanup.
func withTxFlags(t *testing.T, yes bool) {
	t.Helper()
	t.Cleanup(func() {
		txYes = false
		txGasSpeed = ""
		txEventWait = 0
	})
	txYes = yes
}

func decodeTx(t *testing.T, env *testEnv) TxResponse {
	t.Helper()
	var resp TxResponse
	require.NoError(t, json.Unmarshal(env.stdout.Bytes(), &resp))
	return resp
}

func TestDeposit_ConfirmedWithEvent(t *testing.T) {
	env := setupTestEnv(t, output.FormatJSON)
	env.saveWallet(t)
	ledger := newCLILedger()
	useLedger(t, ledger)
	withMockPrompts(t, testPassword, true)
	withTxFlags(t, true)

	require.NoError(t, runBankTx(env.command(), chain.Deposit, "0.5"))

	resp := decodeTx(t, env)
	assert.Equal(t, chain.Deposit, resp.Kind)
	assert.Equal(t, testAccount, resp.Account)
	assert.Equal(t, "0.5", resp.Amount)
	assert.Equal(t, "0.00006", resp.MaxFee)
	assert.Equal(t, "confirmed", resp.Status)
	assert.True(t, resp.EventObserved)
	assert.Equal(t, "0.5", resp.Balance)
	assert.NotEmpty(t, resp.TxHash)

	require.Len(t, resp.Notifications, 2)
	titles := []string{resp.Notifications[0].Title, resp.Notifications[1].Title}
	assert.ElementsMatch(t, []string{"Deposit was successful.", "A deposit event has been emitted."}, titles)
	for _, n := range resp.Notifications {
		assert.Equal(t, notify.LevelSuccess, n.Level)
		assert.Equal(t, resp.TxHash, n.TxHash)
	}
	assert.Equal(t, 0, ethWei(t, "0.5").Cmp(ledger.balance(testAccount)))
	assert.True(t, ledger.closed)
}

func TestDeposit_ZeroEventWaitUsesDefault(t *testing.T) {
	env := setupTestEnv(t, output.FormatJSON)
	env.cc.Cfg.Tx.EventWait = 0
	env.saveWallet(t)
	useLedger(t, newCLILedger())
	withMockPrompts(t, testPassword, true)
	withTxFlags(t, true)

	require.NoError(t, runBankTx(env.command(), chain.Deposit, "0.5"))

	resp := decodeTx(t, env)
	assert.Equal(t, "confirmed", resp.Status)
	assert.True(t, resp.EventObserved)
	assert.Len(t, resp.Notifications, 2)
}

func TestWithdraw_TextOutput(t *testing.T) {
	env := setupTestEnv(t, output.FormatText)
	env.saveWallet(t)
	ledger := newCLILedger()
	ledger.setBalance(testAccount, ethWei(t, "1"))
	useLedger(t, ledger)
	withMockPrompts(t, testPassword, true)
	withTxFlags(t, false)

	require.NoError(t, runBankTx(env.command(), chain.Withdraw, "0.25"))

	assert.Contains(t, env.stderr.String(), "Withdraw 0.25 ETH (Bank balance 1 ETH")
	assert.Contains(t, env.stderr.String(), "Withdraw was successful.")
	assert.Contains(t, env.stderr.String(), "A withdraw event has been emitted.")
	assert.Contains(t, env.stdout.String(), "Bank balance: 0.75 ETH")
}

func TestWithdraw_AboveBalance(t *testing.T) {
	env := setupTestEnv(t, output.FormatJSON)
	env.saveWallet(t)
	ledger := newCLILedger()
	ledger.setBalance(testAccount, ethWei(t, "1"))
	useLedger(t, ledger)
	withMockPrompts(t, testPassword, true)
	withTxFlags(t, true)

	err := runBankTx(env.command(), chain.Withdraw, "2")
	require.ErrorIs(t, err, coffererr.ErrInsufficientBalance)
	assert.Equal(t, coffererr.ExitPermission, ExitCode(err))
	assert.Zero(t, ledger.submits)
}

func TestDeposit_InvalidAmounts(t *testing.T) {
	for _, raw := range []string{"abc", "-1", "0.0000000000000000001"} {
		t.Run(raw, func(t *testing.T) {
			env := setupTestEnv(t, output.FormatJSON)
			env.saveWallet(t)
			ledger := newCLILedger()
			useLedger(t, ledger)
			withMockPrompts(t, testPassword, true)
			withTxFlags(t, true)

			err := runBankTx(env.command(), chain.Deposit, raw)
			require.ErrorIs(t, err, coffererr.ErrInvalidAmount)
			assert.Zero(t, ledger.submits)
		})
	}
}

func TestDeposit_ZeroIsNotSubmittable(t *testing.T) {
	env := setupTestEnv(t, output.FormatJSON)
	env.saveWallet(t)
	ledger := newCLILedger()
	useLedger(t, ledger)
	withMockPrompts(t, testPassword, true)
	withTxFlags(t, true)

	err := runBankTx(env.command(), chain.Deposit, "0")
	require.ErrorIs(t, err, coffererr.ErrInvalidAmount)
	assert.Zero(t, ledger.submits)
}

func TestDeposit_Declined(t *testing.T) {
	env := setupTestEnv(t, output.FormatText)
	env.saveWallet(t)
	ledger := newCLILedger()
	useLedger(t, ledger)
	withMockPrompts(t, testPassword, false)
	withTxFlags(t, false)

	err := runBankTx(env.command(), chain.Deposit, "1")
	require.ErrorIs(t, err, ErrCancelled)
	assert.Zero(t, ledger.submits)
}

func TestDeposit_WrongPassword(t *testing.T) {
	env := setupTestEnv(t, output.FormatJSON)
	env.saveWallet(t)
	useLedger(t, newCLILedger())
	withMockPrompts(t, "not-the-password", true)
	withTxFlags(t, true)

	err := runBankTx(env.command(), chain.Deposit, "1")
	require.ErrorIs(t, err, coffererr.ErrDecryptionFailed)
	assert.Equal(t, coffererr.ExitAuth, ExitCode(err))
}

func TestDeposit_NoWallet(t *testing.T) {
	env := setupTestEnv(t, output.FormatJSON)
	useLedger(t, newCLILedger())
	withMockPrompts(t, testPassword, true)
	withTxFlags(t, true)

	err := runBankTx(env.command(), chain.Deposit, "1")
	require.ErrorIs(t, err, coffererr.ErrWalletNotFound)
}

func TestDeposit_Rejected(t *testing.T) {
	env := setupTestEnv(t, output.FormatJSON)
	env.saveWallet(t)
	ledger := newCLILedger()
	ledger.submitErr = errNodeDown
	useLedger(t, ledger)
	withMockPrompts(t, testPassword, true)
	withTxFlags(t, true)

	err := runBankTx(env.command(), chain.Deposit, "1")
	require.ErrorIs(t, err, coffererr.ErrTxRejected)
	assert.Equal(t, coffererr.ExitChain, ExitCode(err))
}

func TestDeposit_Reverted(t *testing.T) {
	env := setupTestEnv(t, output.FormatJSON)
	env.saveWallet(t)
	ledger := newCLILedger()
	ledger.revert = true
	useLedger(t, ledger)
	withMockPrompts(t, testPassword, true)
	withTxFlags(t, true)

	err := runBankTx(env.command(), chain.Deposit, "1")
	require.ErrorIs(t, err, coffererr.ErrConfirmationFailed)
	assert.Equal(t, 0, ledger.balance(testAccount).Sign())
}

func TestDeposit_EventNotObserved(t *testing.T) {
	env := setupTestEnv(t, output.FormatJSON)
	env.saveWallet(t)
	ledger := newCLILedger()
	ledger.silent = true
	useLedger(t, ledger)
	withMockPrompts(t, testPassword, true)
	withTxFlags(t, true)
	txEventWait = 50 * time.Millisecond

	require.NoError(t, runBankTx(env.command(), chain.Deposit, "1"))

	resp := decodeTx(t, env)
	assert.Equal(t, "confirmed", resp.Status)
	assert.False(t, resp.EventObserved)
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, "Deposit was successful.", resp.Notifications[0].Title)
}

func TestDeposit_InvalidGasFlag(t *testing.T) {
	env := setupTestEnv(t, output.FormatJSON)
	withTxFlags(t, true)
	txGasSpeed = "ludicrous"

	err := runBankTx(env.command(), chain.Deposit, "1")
	require.ErrorIs(t, err, coffererr.ErrInvalidGasSpeed)
}

func TestDeposit_MissingBankAddress(t *testing.T) {
	env := setupTestEnv(t, output.FormatJSON)
	env.saveWallet(t)
	env.cc.Cfg.Bank.Address = ""
	useLedger(t, newCLILedger())
	withMockPrompts(t, testPassword, true)
	withTxFlags(t, true)

	err := runBankTx(env.command(), chain.Deposit, "1")
	require.ErrorIs(t, err, coffererr.ErrConfigInvalid)
}

func TestShortHash(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "0xabc", shortHash("0xabc"))
	long := "0x1111111111111111111111111111111111111111111111111111111111112222"
	assert.Equal(t, "0x11111111…112222", shortHash(long))
}
