package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/coffer/internal/wallet"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// out is a helper for CLI output that ignores write errors (standard pattern for CLI tools).
//
//nolint:errcheck // CLI output writes to stdout are intentionally unchecked
func out(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}

// outln is a helper for CLI output with newline.
//
//nolint:errcheck // CLI output writes to stdout are intentionally unchecked
func outln(w io.Writer, args ...interface{}) {
	fmt.Fprintln(w, args...)
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// walletWords is the number of words for mnemonic generation.
	walletWords int
	// walletIndex is the BIP44 account index to derive.
	walletIndex uint32
	// walletForce overwrites an existing keystore.
	walletForce bool
)

// walletCmd is the parent command for wallet operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage the signing wallet",
	Long: `Create, import, and inspect the wallet that signs Bank transactions.

The recovery phrase is encrypted with your password in an age keystore.
Only the account address is stored in the clear.`,
}

// walletCreateCmd creates a new wallet.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new wallet",
	Long: `Create a new wallet from a freshly generated BIP39 recovery phrase.

The phrase is displayed once. Write it down and store it securely; it is the
only way to recover the account if the keystore or its password is lost.`,
	Example: `  coffer wallet create
  coffer wallet create --words 24
  coffer wallet create --index 1 --force`,
	Args: cobra.NoArgs,
	RunE: runWalletCreate,
}

// walletImportCmd imports a wallet from a recovery phrase.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a wallet from a recovery phrase",
	Long: `Import an existing wallet from its BIP39 recovery phrase.

Typos are detected and a close BIP39 word is suggested.`,
	Example: `  coffer wallet import
  coffer wallet import --index 2`,
	Args: cobra.NoArgs,
	RunE: runWalletImport,
}

// walletShowCmd shows the keystore's account.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the wallet account",
	Long: `Show the account address, derivation path and keystore location.

No password is needed; the address is stored unencrypted.`,
	Example: `  coffer wallet show
  coffer wallet show -o json`,
	Args: cobra.NoArgs,
	RunE: runWalletShow,
}

// WalletResponse describes the keystore account.
type WalletResponse struct {
	Address   string    `json:"address"`
	Index     uint32    `json:"index"`
	Path      string    `json:"path"`
	Keystore  string    `json:"keystore"`
	CreatedAt time.Time `json:"created_at"`
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	walletCmd.GroupID = groupWallet
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletCreateCmd, walletImportCmd, walletShowCmd)

	walletCreateCmd.Flags().IntVar(&walletWords, "words", 12, "number of recovery words: 12 or 24")
	for _, c := range []*cobra.Command{walletCreateCmd, walletImportCmd} {
		c.Flags().Uint32Var(&walletIndex, "index", 0, "BIP44 account index to derive")
		c.Flags().BoolVar(&walletForce, "force", false, "overwrite an existing keystore")
	}
}

func runWalletCreate(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	if walletWords != 12 && walletWords != 24 {
		return coffererr.WithSuggestion(coffererr.ErrInvalidInput, "word count must be 12 or 24")
	}
	ks := cc.Keystore()
	if err := checkKeystoreFree(ks); err != nil {
		return err
	}

	w, err := wallet.Create(walletWords, walletIndex, cc.Cfg.Wallet.MemoryLock)
	if err != nil {
		return err
	}
	defer w.Destroy()

	displayMnemonic(cmd.ErrOrStderr(), w.Mnemonic())
	return saveWallet(cmd, cc, ks, w)
}

func runWalletImport(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	ks := cc.Keystore()
	if err := checkKeystoreFree(ks); err != nil {
		return err
	}

	mnemonic, err := promptMnemonicFn()
	if err != nil {
		return err
	}
	w, err := wallet.New(mnemonic, walletIndex, cc.Cfg.Wallet.MemoryLock)
	if err != nil {
		return err
	}
	defer w.Destroy()

	return saveWallet(cmd, cc, ks, w)
}

func runWalletShow(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	ks := cc.Keystore()
	meta, err := ks.Metadata()
	if err != nil {
		return err
	}
	return printWallet(cmd, cc, ks, meta)
}

func checkKeystoreFree(ks *wallet.Keystore) error {
	if walletForce {
		return nil
	}
	exists, err := ks.Exists()
	if err != nil {
		return err
	}
	if exists {
		return coffererr.WithSuggestion(
			coffererr.WithDetails(coffererr.ErrWalletExists, map[string]string{"path": ks.Path()}),
			"use --force to replace it; the current recovery phrase will no longer be stored",
		)
	}
	return nil
}

func saveWallet(cmd *cobra.Command, cc *CommandContext, ks *wallet.Keystore, w *wallet.Wallet) error {
	password, err := promptNewPasswordFn()
	if err != nil {
		return err
	}
	defer clear(password)

	meta, err := ks.Save(w, string(password), walletForce)
	if err != nil {
		return err
	}
	cc.Log.Debug("keystore written to %s for %s", ks.Path(), meta.Address)
	return printWallet(cmd, cc, ks, meta)
}

func printWallet(cmd *cobra.Command, cc *CommandContext, ks *wallet.Keystore, meta *wallet.Metadata) error {
	resp := WalletResponse{
		Address:   meta.Address,
		Index:     meta.Index,
		Path:      meta.Path,
		Keystore:  ks.Path(),
		CreatedAt: meta.CreatedAt,
	}
	if cc.Fmt.IsJSON() {
		return cc.Fmt.Print(resp)
	}

	w := cmd.OutOrStdout()
	out(w, "Address:  %s\n", resp.Address)
	out(w, "Path:     %s\n", resp.Path)
	out(w, "Keystore: %s\n", resp.Keystore)
	return nil
}

// displayMnemonic prints the recovery phrase as numbered words.
func displayMnemonic(w io.Writer, mnemonic []byte) {
	words := strings.Fields(string(mnemonic))
	outln(w)
	outln(w, "Recovery phrase (write it down, it will not be shown again):")
	outln(w)
	for i, word := range words {
		out(w, "  %2d. %-10s", i+1, word)
		if (i+1)%4 == 0 {
			outln(w)
		}
	}
	outln(w)
}
