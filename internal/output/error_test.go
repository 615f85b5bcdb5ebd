package output_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/coffer/internal/output"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

var errWriter = errors.New("write failed")

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errWriter }

func insufficient() error {
	err := coffererr.WithDetails(coffererr.ErrInsufficientBalance, map[string]string{
		"requested": "2",
		"ceiling":   "1.5",
	})
	return coffererr.WithSuggestion(err, "check the balance with 'coffer balance'")
}

func TestFormatError_Nil(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, output.FormatError(&buf, nil, output.FormatText))
	assert.Empty(t, buf.String())
}

func TestFormatError_Text(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, output.FormatError(&buf, insufficient(), output.FormatText))

	result := buf.String()
	assert.Contains(t, result, "Error: amount exceeds bank balance")
	assert.Less(t, strings.Index(result, "ceiling: 1.5"), strings.Index(result, "requested: 2"), "details are sorted")
	assert.Contains(t, result, "Suggestion: check the balance with 'coffer balance'")
}

func TestFormatError_TextWithCause(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := coffererr.WithCause(coffererr.ErrTxRejected, errors.New("nonce too low"))
	require.NoError(t, output.FormatError(&buf, err, output.FormatText))

	assert.Contains(t, buf.String(), "Error: transaction rejected by network")
	assert.Contains(t, buf.String(), "caused by: nonce too low")
}

func TestFormatError_JSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, output.FormatError(&buf, insufficient(), output.FormatJSON))

	var result output.ErrorOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, "INSUFFICIENT_BALANCE", result.Error.Code)
	assert.Equal(t, "1.5", result.Error.Details["ceiling"])
	assert.Equal(t, coffererr.ExitPermission, result.Error.ExitCode)
	assert.NotEmpty(t, result.Error.Suggestion)
}

func TestFormatError_GenericJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, output.FormatError(&buf, assert.AnError, output.FormatJSON))

	var result output.ErrorOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, "GENERAL_ERROR", result.Error.Code)
	assert.Equal(t, assert.AnError.Error(), result.Error.Message)
	assert.Equal(t, coffererr.ExitGeneral, result.Error.ExitCode)
}

func TestFormatError_WriterError(t *testing.T) {
	t.Parallel()
	require.ErrorIs(t, output.FormatError(failingWriter{}, insufficient(), output.FormatText), errWriter)
}

func TestFormatSuccess(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, output.FormatSuccess(&buf, "Wallet created", output.FormatJSON))

	var result map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, "Wallet created", result["message"])

	buf.Reset()
	require.NoError(t, output.FormatSuccess(&buf, "Wallet created", output.FormatText))
	assert.Equal(t, "Wallet created\n", buf.String())
}
