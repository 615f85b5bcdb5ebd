package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mrz1836/coffer/internal/wallet"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// minPasswordLength is the shortest keystore password accepted.
const minPasswordLength = 8

// Prompt hooks, replaced in tests.
//
//nolint:gochecknoglobals // test seams for interactive input
var (
	promptPasswordFn    = promptPassword
	promptNewPasswordFn = promptNewPassword
	promptConfirmFn     = promptConfirmation
	promptMnemonicFn    = promptMnemonic
)

// stdinReader is shared so buffered input is not lost between prompts.
//
//nolint:gochecknoglobals // single process-wide stdin reader
var stdinReader = bufio.NewReader(os.Stdin)

// promptPassword prompts for a password with hidden input.
// The caller is responsible for zeroing the returned bytes after use.
func promptPassword(prompt string) ([]byte, error) {
	out(os.Stderr, "%s", prompt)

	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		line, err := readLine()
		return []byte(line), err
	}

	password, err := term.ReadPassword(fd)
	outln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return password, nil
}

// promptNewPassword prompts for a new password with confirmation.
// The caller is responsible for zeroing the returned bytes after use.
func promptNewPassword() ([]byte, error) {
	password, err := promptPasswordFn("Enter keystore password: ")
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		clear(password)
		return nil, coffererr.WithSuggestion(coffererr.ErrInvalidInput,
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	confirm, err := promptPasswordFn("Confirm password: ")
	if err != nil {
		clear(password)
		return nil, err
	}
	defer clear(confirm)

	if string(password) != string(confirm) {
		clear(password)
		return nil, coffererr.WithSuggestion(coffererr.ErrInvalidInput, "passwords do not match")
	}
	return password, nil
}

// promptConfirmation asks a yes/no question; anything but y/yes is no.
func promptConfirmation(question string) bool {
	out(os.Stderr, "%s [y/N]: ", question)
	response, err := readLine()
	if err != nil {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

// promptMnemonic reads a mnemonic phrase entered on one line.
func promptMnemonic() (string, error) {
	outln(os.Stderr, "Enter your recovery phrase (12 or 24 words on one line):")
	line, err := readLine()
	if err != nil {
		return "", fmt.Errorf("reading recovery phrase: %w", err)
	}
	mnemonic := wallet.NormalizeMnemonicInput(line)
	if mnemonic == "" {
		return "", coffererr.WithSuggestion(coffererr.ErrInvalidMnemonic, "no words entered")
	}
	return mnemonic, nil
}

func readLine() (string, error) {
	line, err := stdinReader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
