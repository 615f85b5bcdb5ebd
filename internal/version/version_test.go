package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

func releaseServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/mrz1836/coffer/releases/latest", r.URL.Path)
		assert.Contains(t, r.Header.Get("User-Agent"), "coffer/")
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestChecker_Check(t *testing.T) {
	t.Parallel()

	server := releaseServer(t, http.StatusOK,
		`{"tag_name":"v1.4.0","name":"v1.4.0","html_url":"https://github.com/mrz1836/coffer/releases/tag/v1.4.0"}`)
	checker := NewChecker(WithBaseURL(server.URL + "/"))

	update, err := checker.Check(context.Background(), "1.3.2")
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", update.Latest)
	assert.True(t, update.Available)
	assert.Contains(t, update.URL, "v1.4.0")

	update, err = checker.Check(context.Background(), "v1.4.0")
	require.NoError(t, err)
	assert.False(t, update.Available)
}

func TestChecker_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"rate limited", http.StatusForbidden, `{"message":"API rate limit exceeded"}`},
		{"not found", http.StatusNotFound, `{"message":"Not Found"}`},
		{"invalid json", http.StatusOK, `{invalid`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server := releaseServer(t, tt.status, tt.body)
			_, err := NewChecker(WithBaseURL(server.URL)).Latest(context.Background())
			require.ErrorIs(t, err, ErrReleaseLookup)
			assert.Equal(t, coffererr.ExitGeneral, coffererr.ExitCode(err))
		})
	}
}

func TestChecker_CanceledContext(t *testing.T) {
	t.Parallel()
	server := releaseServer(t, http.StatusOK, `{"tag_name":"v1.0.0"}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChecker(WithBaseURL(server.URL), WithHTTPClient(server.Client())).Latest(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		v1, v2 string
		want   int
	}{
		{"1.2.3", "1.2.2", 1},
		{"1.2.2", "1.2.3", -1},
		{"v1.2.3", "1.2.3", 0},
		{"2.0.0", "1.9.9", 1},
		{"1.2", "1.2.0", 0},
		{"1.2.3-rc1", "1.2.3", 0},
		{"dev", "0.0.1", -1},
		{"0.0.1", "dev", 1},
		{"dev", "", 0},
		{"abc123d", "1.0.0", -1},
		{"abc123d-dirty", "1.0.0", -1},
		{"1234567", "1.0.0", 1},
	}
	for _, tt := range tests {
		t.Run(tt.v1+"_vs_"+tt.v2, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Compare(tt.v1, tt.v2))
		})
	}
}

func TestCurrent(t *testing.T) {
	t.Parallel()
	b := Current()
	assert.Equal(t, Version, b.Version)
	assert.NotEmpty(t, b.GoVersion)
	assert.Contains(t, b.Platform, "/")
}
