package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/coffer/internal/output"
	"github.com/mrz1836/coffer/internal/version"
)

func TestVersion_Text(t *testing.T) {
	env := setupTestEnv(t, output.FormatText)
	t.Cleanup(func() { versionCheck = false })

	require.NoError(t, runVersion(env.command(), nil))
	assert.Contains(t, env.stdout.String(), "coffer "+version.Version)
	assert.Contains(t, env.stdout.String(), "platform:")
}

func TestVersion_Check(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name":"v1.2.3","html_url":"https://example.org/v1.2.3"}`))
	}))
	t.Cleanup(srv.Close)

	orig := newVersionChecker
	newVersionChecker = func() *version.Checker { return version.NewChecker(version.WithBaseURL(srv.URL)) }
	t.Cleanup(func() {
		newVersionChecker = orig
		versionCheck = false
	})
	versionCheck = true

	env := setupTestEnv(t, output.FormatJSON)
	require.NoError(t, runVersion(env.command(), nil))

	var resp VersionResponse
	require.NoError(t, json.Unmarshal(env.stdout.Bytes(), &resp))
	require.NotNil(t, resp.Update)
	assert.Equal(t, "1.2.3", resp.Update.Latest)
	assert.True(t, resp.Update.Available, "development builds are older than every release")
	assert.Equal(t, version.Version, resp.Version)
}
