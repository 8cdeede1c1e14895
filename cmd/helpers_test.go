package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/audit-flash/internal/config"
)

// memoryConfig is a valid configuration that needs no database.
func memoryConfig() *config.Config {
	c := &config.Config{}
	c.Store.Driver = "memory"
	c.Log = config.LogConfig{Level: "error", Format: "json"}
	c.Server.Port = 8080
	c.Server.SweepInterval = "1m"
	c.Acquisition = config.AcquisitionConfig{
		CallTimeoutMs:     500,
		DeadlineMs:        2000,
		MaxAttempts:       1,
		SessionTTLMinutes: 60,
	}
	c.Condo.Delimiter = ";"
	return c
}

// useConfig installs c as the command configuration for the test.
func useConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

// chdirTemp moves into an empty directory so no config.yaml is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	rootCmd.SilenceUsage = true
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func newHTTPTestServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}
