package poller

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/deribit-smiles/internal/api"
	"github.com/rickgao/deribit-smiles/internal/model"
)

var slot = time.Date(2025, 10, 20, 12, 30, 0, 0, time.UTC)

// fakeSource serves tickers after a fixed latency, failing the first
// failures[name] attempts for each instrument.
type fakeSource struct {
	latency  time.Duration
	failures map[string]int

	mu       sync.Mutex
	calls    map[string]int
	order    []string
	started  []time.Time
	inFlight int
	maxSeen  int
}

func newFakeSource(latency time.Duration) *fakeSource {
	return &fakeSource{latency: latency, failures: map[string]int{}, calls: map[string]int{}}
}

func (f *fakeSource) GetTicker(ctx context.Context, name string) (*api.Ticker, error) {
	f.mu.Lock()
	f.calls[name]++
	n := f.calls[name]
	if n == 1 {
		f.order = append(f.order, name)
		f.started = append(f.started, time.Now())
	}
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	select {
	case <-time.After(f.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if n <= f.failures[name] {
		return nil, fmt.Errorf("attempt %d failed", n)
	}
	bid, ask := 0.05, 0.07
	return &api.Ticker{InstrumentName: name, BestBidPrice: &bid, BestAskPrice: &ask}, nil
}

func targets(n int) []Target {
	out := make([]Target, n)
	for i := range out {
		out[i] = Target{Underlying: "BTC", InstrumentName: fmt.Sprintf("BTC-27OCT25-%d-C", 60000+i*1000)}
	}
	return out
}

func TestPoller_BoundedConcurrency(t *testing.T) {
	const latency = 50 * time.Millisecond
	src := newFakeSource(latency)
	p := New(Config{MaxConcurrency: 2, MaxRetries: 1}, src, nil)

	start := time.Now()
	res := p.Gather(context.Background(), slot, targets(5))
	elapsed := time.Since(start)

	require.Len(t, res.Rows, 5)
	assert.GreaterOrEqual(t, elapsed, 3*latency)
	assert.LessOrEqual(t, src.maxSeen, 2)
}

func TestPoller_DispatchOrder(t *testing.T) {
	src := newFakeSource(time.Millisecond)
	p := New(Config{MaxConcurrency: 1, MaxRetries: 1}, src, nil)

	in := targets(6)
	p.Gather(context.Background(), slot, in)

	want := make([]string, len(in))
	for i, tg := range in {
		want[i] = tg.InstrumentName
	}
	assert.Equal(t, want, src.order)
}

func TestPoller_DispatchPacing(t *testing.T) {
	const delay = 20 * time.Millisecond
	src := newFakeSource(0)
	p := New(Config{MaxConcurrency: 10, DispatchDelay: delay, MaxRetries: 1}, src, nil)

	p.Gather(context.Background(), slot, targets(4))

	require.Len(t, src.started, 4)
	// Allow scheduler jitter on the limiter's token refill.
	span := src.started[3].Sub(src.started[0])
	assert.GreaterOrEqual(t, span, 3*delay-5*time.Millisecond)
}

func TestPoller_RetryThenSuccess(t *testing.T) {
	src := newFakeSource(0)
	in := targets(1)
	src.failures[in[0].InstrumentName] = 2

	p := New(Config{MaxConcurrency: 1, MaxRetries: 3, RetryDelay: time.Millisecond}, src, nil)
	res := p.Gather(context.Background(), slot, in)

	require.Len(t, res.Rows, 1)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 2, res.Retries)
	assert.Equal(t, 3, src.calls[in[0].InstrumentName])
}

func TestPoller_RetriesExhausted(t *testing.T) {
	src := newFakeSource(0)
	in := targets(3)
	src.failures[in[1].InstrumentName] = 3

	p := New(Config{MaxConcurrency: 2, MaxRetries: 3, RetryDelay: time.Millisecond}, src, nil)
	res := p.Gather(context.Background(), slot, in)

	require.Len(t, res.Rows, 2)
	for _, r := range res.Rows {
		assert.NotEqual(t, in[1].InstrumentName, r.InstrumentName)
	}
	require.Len(t, res.Failures, 1)
	assert.Equal(t, in[1], res.Failures[0].Target)
	assert.Equal(t, 3, res.Failures[0].Attempts)
	assert.Equal(t, 3, src.calls[in[1].InstrumentName])
}

func TestPoller_RequestTimeout(t *testing.T) {
	src := newFakeSource(time.Second)
	p := New(Config{MaxConcurrency: 1, MaxRetries: 1, RequestTimeout: 10 * time.Millisecond}, src, nil)

	res := p.Gather(context.Background(), slot, targets(1))

	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0], context.DeadlineExceeded)
}

func TestPoller_CancelledContext(t *testing.T) {
	src := newFakeSource(0)
	p := New(DefaultConfig(), src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := p.Gather(ctx, slot, targets(3))
	assert.Zero(t, res.Dispatched)
	assert.Empty(t, res.Rows)
}

func TestPoller_WithClient(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		name := r.URL.Query().Get("instrument_name")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","result":{"instrument_name":%q,"best_bid_price":0.5,"best_ask_price":0.75,"mark_iv":55,"greeks":{"delta":0.4},"index_price":64000,"underlying_price":64100}}`, name)
	}))
	defer server.Close()

	client := api.NewClient(server.URL, api.WithTimeout(5*time.Second))
	p := New(Config{MaxConcurrency: 4, MaxRetries: 2}, client, nil)

	res := p.Gather(context.Background(), slot, targets(3))

	require.Len(t, res.Rows, 3)
	assert.Equal(t, int32(3), requests.Load())

	r := res.Rows[0]
	assert.True(t, r.SlotTime.Equal(slot))
	require.NotNil(t, r.Mid)
	assert.Equal(t, 0.625, *r.Mid)
	require.NotNil(t, r.IV)
	assert.Equal(t, 0.55, *r.IV)
	assert.NotNil(t, r.Delta)
	assert.Nil(t, r.Gamma)
	assert.Equal(t, model.OptionCall, r.OptionType)
}
