// Command tenantload drives paced load at a running tenantgate instance and
// reports how the admission layer classified it.
//
// Example:
//
//	tenantload -addr http://localhost:8080 -tier free -rate 10 -duration 30s
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"
)

type options struct {
	addr     string
	tier     string
	key      string
	rate     float64
	duration time.Duration
	sleepMS  int
	failRate float64
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.addr, "addr", "http://localhost:8080", "tenantgate base URL")
	flag.StringVar(&opts.tier, "tier", "free", "tier whose development key to use when -key is empty")
	flag.StringVar(&opts.key, "key", "", "API key (overrides -tier)")
	flag.Float64Var(&opts.rate, "rate", 5, "requests per second")
	flag.DurationVar(&opts.duration, "duration", 10*time.Second, "how long to submit load")
	flag.IntVar(&opts.sleepMS, "sleep-ms", 50, "per-request simulated work in milliseconds")
	flag.Float64Var(&opts.failRate, "fail-rate", 0, "fraction of requests asked to fail (0..1)")
	flag.Parse()

	if opts.key == "" {
		// Matches the plain_keys table in the shipped config.yml.
		opts.key = fmt.Sprintf("dev-%s-key", opts.tier)
	}
	return opts
}

func main() {
	opts := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	r := newRunner(opts)
	r.run(ctx)
	r.report(os.Stdout)
}

type queryRequest struct {
	SleepMS int  `json:"sleep_ms"`
	Fail    bool `json:"fail"`
}

type runner struct {
	opts   options
	client *http.Client
	rng    *rand.Rand

	mu        sync.Mutex
	counts    map[string]int
	latencies []time.Duration
}

func newRunner(opts options) *runner {
	return &runner{
		opts:   opts,
		client: &http.Client{Timeout: 30 * time.Second},
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		counts: make(map[string]int),
	}
}

// run paces submissions until ctx expires. In-flight requests are allowed to
// finish so the tallies reflect every submitted request.
func (r *runner) run(ctx context.Context) {
	limiter := rate.NewLimiter(rate.Limit(r.opts.rate), 1)
	var wg sync.WaitGroup

	for {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		fail := r.rng.Float64() < r.opts.failRate
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.fire(fail)
		}()
	}
	wg.Wait()
}

func (r *runner) fire(fail bool) {
	body, err := json.Marshal(queryRequest{SleepMS: r.opts.sleepMS, Fail: fail})
	if err != nil {
		r.record("request_error", 0)
		return
	}

	req, err := http.NewRequest(http.MethodPost, r.opts.addr+"/v1/query", bytes.NewReader(body))
	if err != nil {
		r.record("request_error", 0)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", r.opts.key)

	start := time.Now()
	resp, err := r.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		r.record("transport_error", elapsed)
		return
	}
	defer resp.Body.Close()

	r.record(classify(resp), elapsed)
}

// classify maps a response to an outcome label, preferring the error
// envelope's code over the bare status.
func classify(resp *http.Response) string {
	if resp.StatusCode == http.StatusOK {
		return "success"
	}

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Code != "" {
		return strings.ToLower(envelope.Error.Code)
	}
	return fmt.Sprintf("http_%d", resp.StatusCode)
}

func (r *runner) record(outcome string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[outcome]++
	if elapsed > 0 {
		r.latencies = append(r.latencies, elapsed)
	}
}

func (r *runner) report(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	outcomes := make([]string, 0, len(r.counts))
	for outcome, n := range r.counts {
		outcomes = append(outcomes, outcome)
		total += n
	}
	sort.Strings(outcomes)

	fmt.Fprintf(w, "\n%-16s %8s\n", "outcome", "count")
	for _, outcome := range outcomes {
		fmt.Fprintf(w, "%-16s %8d\n", outcome, r.counts[outcome])
	}
	fmt.Fprintf(w, "%-16s %8d\n", "total", total)

	if len(r.latencies) == 0 {
		return
	}
	sort.Slice(r.latencies, func(i, j int) bool { return r.latencies[i] < r.latencies[j] })
	fmt.Fprintf(w, "\nlatency  p50=%s  p95=%s  p99=%s  max=%s\n",
		percentile(r.latencies, 0.50).Round(time.Millisecond),
		percentile(r.latencies, 0.95).Round(time.Millisecond),
		percentile(r.latencies, 0.99).Round(time.Millisecond),
		r.latencies[len(r.latencies)-1].Round(time.Millisecond),
	)
}

// percentile reads from a sorted slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
