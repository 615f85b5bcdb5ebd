package output

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// ErrorOutput represents a structured error for JSON output.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// FormatError formats an error for display.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}

	if format == FormatJSON {
		return writeJSON(w, ErrorOutput{Error: describe(err)})
	}
	return formatErrorText(w, describe(err))
}

func describe(err error) ErrorDetail {
	var ce *coffererr.CofferError
	if !errors.As(err, &ce) {
		return ErrorDetail{
			Code:     "GENERAL_ERROR",
			Message:  err.Error(),
			ExitCode: coffererr.ExitGeneral,
		}
	}
	d := ErrorDetail{
		Code:       ce.Code,
		Message:    ce.Message,
		Details:    ce.Details,
		Suggestion: ce.Suggestion,
		ExitCode:   ce.ExitCode,
	}
	if ce.Cause != nil {
		d.Cause = ce.Cause.Error()
	}
	return d
}

func formatErrorText(w io.Writer, d ErrorDetail) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Error: %s\n", d.Message)
	if d.Cause != "" {
		fmt.Fprintf(&sb, "  caused by: %s\n", d.Cause)
	}

	if len(d.Details) > 0 {
		keys := make([]string, 0, len(d.Details))
		for k := range d.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("\nDetails:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, d.Details[k])
		}
	}

	if d.Suggestion != "" {
		fmt.Fprintf(&sb, "\nSuggestion: %s\n", d.Suggestion)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatSuccess formats a success message.
func FormatSuccess(w io.Writer, message string, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, map[string]string{"status": "success", "message": message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}
