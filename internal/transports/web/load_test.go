package web

import (
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestWebLoadMixed100RPS гоняет 100 RPS вперемешку: чтение каталога
// и вызовы system_info; каждый вызов должен попасть в аудит.
func TestWebLoadMixed100RPS(t *testing.T) {
	if testing.Short() {
		t.Skip("load test")
	}
	t.Parallel()

	env := newTestEnv(t, false, Config{})

	const (
		targetRPS = 100
		duration  = 2 * time.Second
	)
	total := int(duration.Seconds()) * targetRPS
	interval := time.Second / targetRPS

	type sample struct {
		latency time.Duration
		ok      bool
	}
	results := make(chan sample, total)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < total; i++ {
		if sleep := time.Until(start.Add(time.Duration(i) * interval)); sleep > 0 {
			time.Sleep(sleep)
		}
		execute := i%2 == 1

		wg.Add(1)
		go func() {
			defer wg.Done()
			began := time.Now()
			var req *http.Request
			if execute {
				req = httptest.NewRequest(http.MethodPost, "/v1/tools/execute", strings.NewReader(`{"tool":"system_info"}`))
			} else {
				req = httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
			}
			req.Header.Set("Authorization", "Bearer "+operatorToken)
			rr := httptest.NewRecorder()
			env.handler.ServeHTTP(rr, req)
			_, _ = io.Copy(io.Discard, rr.Result().Body)
			results <- sample{latency: time.Since(began), ok: rr.Code == http.StatusOK}
		}()
	}
	wg.Wait()
	close(results)

	var failed int
	latencies := make([]time.Duration, 0, total)
	for s := range results {
		if !s.ok {
			failed++
		}
		latencies = append(latencies, s.latency)
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	p95 := percentile(latencies, 0.95)
	errorRate := float64(failed) / float64(len(latencies))
	t.Logf("load summary: requests=%d failed=%d error_rate=%.4f p95=%s", len(latencies), failed, errorRate, p95)

	if p95 >= 250*time.Millisecond {
		t.Fatalf("p95 too high: got %s, want < 250ms", p95)
	}
	if errorRate > 0.01 {
		t.Fatalf("error rate too high: got %.4f, want <= 0.01", errorRate)
	}
	if got := len(env.store.actions()); got != total/2 {
		t.Fatalf("audit events = %d, want %d", got, total/2)
	}
}

func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(len(samples))*p)) - 1
	return samples[max(0, min(idx, len(samples)-1))]
}
