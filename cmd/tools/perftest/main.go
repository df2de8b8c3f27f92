// main.go - Load generator for the pageview beacon endpoint
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"
)

// PerfConfig holds the configuration for the load test
type PerfConfig struct {
	BaseURL       string
	Host          string
	Concurrency   int
	Duration      time.Duration
	EventsPerSec  int
	VerboseOutput bool
	Timeout       time.Duration
}

// PerfStats holds statistics about the load test
type PerfStats struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	MinLatency         time.Duration
	MaxLatency         time.Duration
	TotalLatency       time.Duration
	StatusCodes        map[int]int64
	StatusCodesMutex   sync.Mutex
	ResponseTimes      []time.Duration
	ResponseTimesMutex sync.Mutex
	StartTime          time.Time
	EndTime            time.Time
}

// Result represents a single request outcome
type Result struct {
	StatusCode int
	Latency    time.Duration
	Err        error
}

var samplePaths = []string{
	"/", "/pricing", "/blog", "/blog/launch", "/docs", "/docs/setup",
	"/about", "/contact", "/changelog", "/missing-page",
}

var sampleReferrers = []string{
	"", "", "", // direct traffic dominates
	"https://www.google.com/search?q=analytics",
	"https://duckduckgo.com/",
	"https://t.co/abc123",
	"https://github.com/some/repo",
	"https://news.ycombinator.com/item?id=1",
}

var sampleUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.0.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Mobile Safari/537.36",
}

func main() {
	cfg := parseFlags()

	fmt.Printf("Beacon load test against %s\n", cfg.BaseURL)
	fmt.Printf("  concurrency=%d duration=%s rate=%d/s per worker\n\n",
		cfg.Concurrency, cfg.Duration, cfg.EventsPerSec)

	stats := &PerfStats{
		StatusCodes: make(map[int]int64),
		MinLatency:  time.Hour,
		StartTime:   time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, finishing up...")
		cancel()
	}()

	results := make(chan Result, cfg.Concurrency*4)
	var collectorWG sync.WaitGroup
	collectorWG.Add(1)
	go func() {
		defer collectorWG.Done()
		for r := range results {
			processResult(stats, r, cfg.VerboseOutput)
		}
	}()

	var workerWG sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		workerWG.Add(1)
		go func(id int) {
			defer workerWG.Done()
			runWorker(ctx, cfg, id, results)
		}(i)
	}

	workerWG.Wait()
	close(results)
	collectorWG.Wait()
	stats.EndTime = time.Now()

	printResults(stats)
}

func parseFlags() PerfConfig {
	url := flag.String("url", "http://localhost:3000", "base URL of the server")
	host := flag.String("host", "example.com", "host reported in the beacon payload")
	concurrency := flag.Int("c", 4, "number of concurrent workers")
	duration := flag.Duration("d", 10*time.Second, "test duration")
	rate := flag.Int("rate", 50, "events per second per worker (0 = unthrottled)")
	verbose := flag.Bool("verbose", false, "log each request")
	timeout := flag.Duration("timeout", 5*time.Second, "per-request timeout")
	flag.Parse()

	return PerfConfig{
		BaseURL:       *url,
		Host:          *host,
		Concurrency:   *concurrency,
		Duration:      *duration,
		EventsPerSec:  *rate,
		VerboseOutput: *verbose,
		Timeout:       *timeout,
	}
}

func runWorker(ctx context.Context, cfg PerfConfig, id int, results chan<- Result) {
	client := &http.Client{Timeout: cfg.Timeout}
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))

	var ticker *time.Ticker
	if cfg.EventsPerSec > 0 {
		ticker = time.NewTicker(time.Second / time.Duration(cfg.EventsPerSec))
		defer ticker.Stop()
	}

	sessionID := fmt.Sprintf("perf-%d-%x", id, rng.Int63())
	sent := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}

		// Fresh session every so often so session spans and landings vary.
		if sent%40 == 0 {
			sessionID = fmt.Sprintf("perf-%d-%x", id, rng.Int63())
		}
		results <- sendBeacon(ctx, client, cfg, rng, sessionID, sent%40 == 0)
		sent++
	}
}

func sendBeacon(ctx context.Context, client *http.Client, cfg PerfConfig, rng *rand.Rand, sessionID string, newSession bool) Result {
	path := samplePaths[rng.Intn(len(samplePaths))]
	event := "pageview"
	if path == "/missing-page" {
		event = "404"
	}

	payload := map[string]any{
		"path":         path,
		"event":        event,
		"timestamp":    time.Now().UnixMilli(),
		"sessionId":    sessionID,
		"landing":      samplePaths[rng.Intn(len(samplePaths))],
		"referrer":     sampleReferrers[rng.Intn(len(sampleReferrers))],
		"host":         cfg.Host,
		"isNewSession": newSession,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/api/v1/pageview", bytes.NewReader(body))
	if err != nil {
		return Result{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", sampleUserAgents[rng.Intn(len(sampleUserAgents))])

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Result{Latency: latency, Err: err}
	}
	resp.Body.Close()

	return Result{StatusCode: resp.StatusCode, Latency: latency}
}

func processResult(stats *PerfStats, r Result, verbose bool) {
	atomic.AddInt64(&stats.TotalRequests, 1)

	if r.Err != nil {
		atomic.AddInt64(&stats.FailedRequests, 1)
		if verbose {
			fmt.Printf("request error: %v\n", r.Err)
		}
		return
	}

	stats.StatusCodesMutex.Lock()
	stats.StatusCodes[r.StatusCode]++
	stats.StatusCodesMutex.Unlock()

	if r.StatusCode == http.StatusOK {
		atomic.AddInt64(&stats.SuccessfulRequests, 1)
	} else {
		atomic.AddInt64(&stats.FailedRequests, 1)
	}

	stats.ResponseTimesMutex.Lock()
	stats.ResponseTimes = append(stats.ResponseTimes, r.Latency)
	if r.Latency < stats.MinLatency {
		stats.MinLatency = r.Latency
	}
	if r.Latency > stats.MaxLatency {
		stats.MaxLatency = r.Latency
	}
	stats.TotalLatency += r.Latency
	stats.ResponseTimesMutex.Unlock()

	if verbose {
		fmt.Printf("%d in %s\n", r.StatusCode, r.Latency)
	}
}

func printResults(stats *PerfStats) {
	elapsed := stats.EndTime.Sub(stats.StartTime)
	total := atomic.LoadInt64(&stats.TotalRequests)

	fmt.Println("\n=== Results ===")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Duration\t%s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Total requests\t%d\n", total)
	fmt.Fprintf(w, "Successful\t%d\n", stats.SuccessfulRequests)
	fmt.Fprintf(w, "Failed\t%d\n", stats.FailedRequests)
	if elapsed > 0 {
		fmt.Fprintf(w, "Throughput\t%.1f req/s\n", float64(total)/elapsed.Seconds())
	}
	if total > 0 {
		fmt.Fprintf(w, "Min latency\t%s\n", stats.MinLatency)
		fmt.Fprintf(w, "Max latency\t%s\n", stats.MaxLatency)
		fmt.Fprintf(w, "Mean latency\t%s\n", time.Duration(int64(stats.TotalLatency)/total))
	}
	w.Flush()

	if len(stats.StatusCodes) > 0 {
		fmt.Println("\nStatus codes:")
		codes := make([]int, 0, len(stats.StatusCodes))
		for code := range stats.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Printf("  %d\t%d\n", code, stats.StatusCodes[code])
		}
	}

	if len(stats.ResponseTimes) > 0 {
		sorted := make([]time.Duration, len(stats.ResponseTimes))
		copy(sorted, stats.ResponseTimes)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		fmt.Println("\nLatency percentiles:")
		for _, p := range []float64{50, 90, 95, 99} {
			idx := int(float64(len(sorted)-1) * p / 100)
			fmt.Printf("  p%.0f\t%s\n", p, sorted[idx])
		}
	}
}
