// Package amount validates user-entered deposit and withdraw amounts.
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/mrz1836/coffer/internal/chain"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// Result is the outcome of validating one input value.
type Result struct {
	Raw    string   // Input after trimming whitespace
	Amount *big.Int // Amount in wei; nil when Inert
	Inert  bool     // Empty or zero input: nothing to prepare, nothing to report
}

// InsufficientBalanceError reports a withdraw amount above the Bank balance.
// It matches both ErrInsufficientBalance and ErrInvalidAmount with errors.Is.
type InsufficientBalanceError struct {
	Requested *big.Int // Requested amount in wei
	Ceiling   *big.Int // Largest amount that can be withdrawn, in wei
}

// Error implements the error interface.
func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("you cannot withdraw more than %s ETH", chain.FormatETH(e.Ceiling))
}

// Unwrap exposes the structured error and the InvalidAmount taxonomy.
func (e *InsufficientBalanceError) Unwrap() []error {
	ce := coffererr.WithDetails(coffererr.ErrInsufficientBalance, map[string]string{
		"requested": chain.FormatETH(e.Requested) + " ETH",
		"ceiling":   chain.FormatETH(e.Ceiling) + " ETH",
	})
	return []error{
		coffererr.WithSuggestion(ce, e.Error()),
		coffererr.ErrInvalidAmount,
	}
}

// Validate checks raw input for kind. balance is the caller's Bank balance
// and only matters for withdrawals; nil counts as zero.
//
// Empty and zero inputs are inert rather than errors, so a user clearing the
// field is not shown a warning.
func Validate(raw string, kind chain.Kind, balance *big.Int) (Result, error) {
	if !kind.IsValid() {
		return Result{}, coffererr.WithDetails(coffererr.ErrInvalidKind, map[string]string{"kind": kind.String()})
	}

	trimmed := strings.TrimSpace(raw)
	res := Result{Raw: trimmed}
	if trimmed == "" {
		res.Inert = true
		return res, nil
	}

	wei, err := chain.ParseETH(trimmed)
	if err != nil {
		return res, err
	}
	if wei.Sign() == 0 {
		res.Inert = true
		return res, nil
	}

	if kind == chain.Withdraw {
		ceiling := balance
		if ceiling == nil {
			ceiling = new(big.Int)
		}
		if wei.Cmp(ceiling) > 0 {
			return res, &InsufficientBalanceError{
				Requested: wei,
				Ceiling:   new(big.Int).Set(ceiling),
			}
		}
	}

	res.Amount = wei
	return res, nil
}

// Problem returns the user-facing description of a validation error.
func Problem(err error) string {
	if err == nil {
		return ""
	}
	var ib *InsufficientBalanceError
	if coffererr.As(err, &ib) {
		return fmt.Sprintf("You cannot withdraw more than %s ETH.", chain.FormatETH(ib.Ceiling))
	}
	var ce *coffererr.CofferError
	if coffererr.As(err, &ce) {
		if reason, ok := ce.Details["reason"]; ok {
			return fmt.Sprintf("%s: %s", ce.Message, reason)
		}
		return ce.Message
	}
	return err.Error()
}
