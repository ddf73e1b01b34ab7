package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, exitUsage},
		{"unknown command", []string{"serve"}, exitUsage},
		{"help", []string{"help"}, exitOK},
		{"version", []string{"version"}, exitOK},
		{"run without config", []string{"run"}, exitUsage},
		{"run with unknown flag", []string{"run", "--bogus"}, exitUsage},
		{"run with bad log level", []string{"run", "--config", "x.yaml", "--log-level", "loud"}, exitUsage},
		{"run with extra args", []string{"run", "--config", "x.yaml", "extra"}, exitUsage},
		{"run with missing config file", []string{"run", "--config", filepath.Join(t.TempDir(), "missing.yaml")}, exitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.want, run(tt.args, &stdout, &stderr), "stderr: %s", stderr.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := parseLevel(in)
		if assert.NoError(t, err, "parseLevel(%q)", in) {
			assert.Equal(t, want, got, "parseLevel(%q)", in)
		}
	}
	_, err := parseLevel("trace")
	assert.Error(t, err)
}

func TestCheckUniverseFresh(t *testing.T) {
	now := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	interval := 15 * time.Minute

	assert.NoError(t, checkUniverseFresh(time.Time{}, now, interval), "never listed")
	assert.NoError(t, checkUniverseFresh(now.Add(-10*time.Minute), now, interval))
	assert.NoError(t, checkUniverseFresh(now.Add(-30*time.Minute), now, interval), "exactly two intervals")
	assert.EqualError(t, checkUniverseFresh(now.Add(-45*time.Minute), now, interval), "universe last listed 45m0s ago")
}

func TestRunOnce(t *testing.T) {
	instruments := []string{"BTC-26DEC36-65000-C", "BTC-26DEC36-65000-P", "BTC-26DEC36-70000-C"}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/public/get_instruments":
			var items []string
			for _, name := range instruments {
				items = append(items, fmt.Sprintf(`{"instrument_name":%q,"kind":"option"}`, name))
			}
			fmt.Fprintf(w, `{"jsonrpc":"2.0","result":[%s]}`, strings.Join(items, ","))
		case "/public/ticker":
			name := r.URL.Query().Get("instrument_name")
			fmt.Fprintf(w, `{"jsonrpc":"2.0","result":{"instrument_name":%q,"best_bid_price":0.05,"best_ask_price":0.06,"mark_iv":55,"greeks":{"delta":0.4,"gamma":0.0001},"index_price":64000,"underlying_price":64100}}`, name)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	dataRoot := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "gatherer.yaml")
	yaml := fmt.Sprintf(`
schedule:
  interval_minutes: 15
universe:
  currencies: [BTC]
  kind: option
io:
  data_root: %s
  format:
    compression: snappy
runtime:
  max_concurrency: 2
  request_timeout_s: 5
  max_retries: 1
api:
  rest_url: %s
  max_retries: 1
`, dataRoot, server.URL)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"run", "--config", cfgPath, "--once", "--log-level", "warn"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, "stdout: %s\nstderr: %s", stdout.String(), stderr.String())

	raw, err := filepath.Glob(filepath.Join(dataRoot, "raw", "date=*", "underlying=BTC", "snapshot_*_BTC.parquet"))
	require.NoError(t, err)
	assert.Len(t, raw, 1)

	smiles, err := filepath.Glob(filepath.Join(dataRoot, "processed", "date=*", "underlying=BTC", "smile_*_BTC.parquet"))
	require.NoError(t, err)
	assert.Len(t, smiles, 1)
}
