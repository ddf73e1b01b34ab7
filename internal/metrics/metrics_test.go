package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	slot := time.Date(2025, 10, 1, 12, 30, 0, 0, time.UTC)
	c.ObserveCycle(slot, 3*time.Second, nil)
	c.ObserveCycle(slot, time.Second, errors.New("boom"))
	c.ObserveGather(10, 8, 2, 3)
	c.ObserveCatalogError("ETH")
	c.ObserveUniverse(map[string]int{"BTC": 7, "ETH": 0})
	c.ObserveQC("qc_iv", 0.25)
	c.ObserveSmiles(4)
	c.ObserveWrite(2, 12, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Cycles.WithLabelValues(StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Cycles.WithLabelValues(StatusFailed)))
	assert.Equal(t, float64(slot.Unix()), testutil.ToFloat64(c.LastSlot))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.Targets))
	assert.Equal(t, 8.0, testutil.ToFloat64(c.RawRows))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.FetchFailures))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.FetchRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CatalogErrors.WithLabelValues("ETH")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.Instruments.WithLabelValues("BTC")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.Instruments.WithLabelValues("ETH")))
	assert.Equal(t, 0.25, testutil.ToFloat64(c.QCFailRate.WithLabelValues("qc_iv")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.SmileRows))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.FilesWritten))
	assert.Equal(t, 12.0, testutil.ToFloat64(c.RowsWritten))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.WriteErrors))
}

func TestNilCollectors(t *testing.T) {
	var c *Collectors
	c.ObserveCycle(time.Now(), time.Second, nil)
	c.ObserveGather(1, 1, 0, 0)
	c.ObserveCatalogError("BTC")
	c.ObserveUniverse(map[string]int{"BTC": 1})
	c.ObserveQC("qc_pass", 1)
	c.ObserveSmiles(1)
	c.ObserveWrite(1, 1, errors.New("x"))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.ObserveSmiles(7)

	srv := httptest.NewServer(Handler("/metrics", reg, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "smiles_smile_rows_total 7")

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandlerUnhealthy(t *testing.T) {
	health := func(context.Context) error { return errors.New("timescale unreachable") }
	srv := httptest.NewServer(Handler("/metrics", prometheus.NewRegistry(), health))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "timescale unreachable"))
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, 0, http.NotFoundHandler(), nil)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "Serve did not return after cancel")
	}
}
