// main.go - Beacon load generator for pagetally
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/time/rate"

	"pagetally/internal/seeder"
)

// PerfConfig holds the configuration for the performance test
type PerfConfig struct {
	BaseURL       string
	Origin        string
	Concurrency   int
	Duration      time.Duration
	BeaconsPerSec int
	Timeout       time.Duration
}

// PerfStats holds statistics about the performance test
type PerfStats struct {
	TotalRequests  atomic.Int64
	FailedRequests atomic.Int64

	mu          sync.Mutex
	statusCodes map[int]int64
	latencies   []time.Duration
}

func (s *PerfStats) record(status int, latency time.Duration, err error) {
	s.TotalRequests.Add(1)
	if err != nil {
		s.FailedRequests.Add(1)
		return
	}
	s.mu.Lock()
	s.statusCodes[status]++
	s.latencies = append(s.latencies, latency)
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:3000", "Base URL of the collector")
	origin := flag.String("origin", "example.org", "Registered origin the beacons claim")
	concurrency := flag.Int("c", 10, "Number of concurrent visitors")
	duration := flag.Duration("d", 30*time.Second, "Duration of the test")
	perSec := flag.Int("rate", 0, "Target beacons per second (0 = unlimited)")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	config := &PerfConfig{
		BaseURL:       *baseURL,
		Origin:        *origin,
		Concurrency:   *concurrency,
		Duration:      *duration,
		BeaconsPerSec: *perSec,
		Timeout:       *timeout,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, stop := context.WithTimeout(ctx, config.Duration)
	defer stop()

	logger.Info("Starting load test",
		slog.String("url", config.BaseURL),
		slog.String("origin", config.Origin),
		slog.Int("concurrency", config.Concurrency),
		slog.Duration("duration", config.Duration),
		slog.Int("rate", config.BeaconsPerSec))

	stats := &PerfStats{statusCodes: make(map[int]int64)}
	started := time.Now()
	runTest(ctx, config, stats)
	printResults(os.Stdout, stats, time.Since(started))
}

// runTest starts one goroutine per simulated visitor. Each walks through a
// generated visit, one beacon per page, then starts over as someone else.
func runTest(ctx context.Context, config *PerfConfig, stats *PerfStats) {
	limit := rate.Inf
	if config.BeaconsPerSec > 0 {
		limit = rate.Limit(config.BeaconsPerSec)
	}
	limiter := rate.NewLimiter(limit, max(1, config.BeaconsPerSec))
	client := &http.Client{Timeout: config.Timeout}
	gen := seeder.NewGenerator(config.Origin, uint64(time.Now().UnixNano()))
	endpoint := config.BaseURL + "/x/api/v1/beacon"

	var wg sync.WaitGroup
	for range config.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				visit := gen.Visit()
				beacons, err := gen.Beacons(visit, time.Now(), 0)
				if err != nil {
					stats.record(0, 0, err)
					continue
				}
				for _, beacon := range beacons {
					if err := limiter.Wait(ctx); err != nil {
						return
					}
					status, latency, err := sendBeacon(ctx, client, endpoint, beacon, visit)
					stats.record(status, latency, err)
				}
			}
		}()
	}
	wg.Wait()
}

func sendBeacon(ctx context.Context, client *http.Client, endpoint string, beacon []byte, visit seeder.Visit) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(beacon))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	req.Header.Set("User-Agent", visit.UA)
	req.Header.Set("X-Forwarded-For", visit.IP)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, time.Since(start), nil
}

func printResults(out io.Writer, stats *PerfStats, elapsed time.Duration) {
	stats.mu.Lock()
	defer stats.mu.Unlock()

	latencies := slices.Clone(stats.latencies)
	slices.Sort(latencies)
	percentile := func(p float64) time.Duration {
		if len(latencies) == 0 {
			return 0
		}
		return latencies[min(len(latencies)-1, int(float64(len(latencies))*p))]
	}

	total := stats.TotalRequests.Load()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\n=== Results ===")
	fmt.Fprintf(w, "Requests\t%d\n", total)
	fmt.Fprintf(w, "Failed\t%d\n", stats.FailedRequests.Load())
	fmt.Fprintf(w, "Elapsed\t%v\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Throughput\t%.1f req/s\n", float64(total)/elapsed.Seconds())
	fmt.Fprintf(w, "p50\t%v\n", percentile(0.50))
	fmt.Fprintf(w, "p95\t%v\n", percentile(0.95))
	fmt.Fprintf(w, "p99\t%v\n", percentile(0.99))
	if len(latencies) > 0 {
		fmt.Fprintf(w, "max\t%v\n", latencies[len(latencies)-1])
	}

	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "HTTP %d\t%d\n", code, stats.statusCodes[code])
	}
	w.Flush()
}
