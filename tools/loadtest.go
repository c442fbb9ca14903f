package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// loadStats collects results from every connection goroutine.
type loadStats struct {
	requests atomic.Int64
	created  atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (s *loadStats) observe(d time.Duration) {
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run tools/loadtest.go <url> [connections] [duration] [alert-ratio]")
		fmt.Println("Example: go run tools/loadtest.go http://localhost:8080/sensors 100 30s 0.05")
		os.Exit(1)
	}

	url := os.Args[1]
	connections := 100
	duration := 30 * time.Second
	alertRatio := 0.05

	if len(os.Args) > 2 {
		fmt.Sscanf(os.Args[2], "%d", &connections)
	}
	if len(os.Args) > 3 {
		if d, err := time.ParseDuration(os.Args[3]); err == nil {
			duration = d
		}
	}
	if len(os.Args) > 4 {
		fmt.Sscanf(os.Args[4], "%g", &alertRatio)
	}
	connections = max(connections, 1)

	fmt.Printf("Load Test Configuration:\n")
	fmt.Printf("  URL:         %s\n", url)
	fmt.Printf("  Connections: %d\n", connections)
	fmt.Printf("  Duration:    %v\n", duration)
	fmt.Printf("  Alert ratio: %.2f\n\n", alertRatio)

	// Один клиент на все соединения, пул под их количество
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        connections,
			MaxIdleConnsPerHost: connections,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	stats := &loadStats{latencies: make([]time.Duration, 0, 10000)}
	start := time.Now()
	deadline := start.Add(duration)

	var wg sync.WaitGroup
	for i := 0; i < connections; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				postReading(client, url, alertRatio, stats)
			}
		}()
	}
	wg.Wait()

	printResults(stats, time.Since(start))
}

// syntheticReading returns four distances in centimetres. With probability
// alertRatio one channel falls outside the default 10..200 band.
func syntheticReading(alertRatio float64) map[string]any {
	r := map[string]any{"timestamp": time.Now().Unix()}
	for i := 1; i <= 4; i++ {
		r[fmt.Sprintf("sensor%d", i)] = 15 + rand.Float64()*180
	}
	if rand.Float64() < alertRatio {
		key := fmt.Sprintf("sensor%d", rand.Intn(4)+1)
		if rand.Intn(2) == 0 {
			r[key] = rand.Float64() * 9.9
		} else {
			r[key] = 200.5 + rand.Float64()*100
		}
	}
	return r
}

func postReading(client *http.Client, url string, alertRatio float64, stats *loadStats) {
	body, _ := json.Marshal(syntheticReading(alertRatio))
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	stats.requests.Add(1)

	if err != nil {
		stats.failed.Add(1)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated:
		stats.created.Add(1)
		stats.observe(latency)
	case resp.StatusCode == http.StatusBadRequest:
		stats.rejected.Add(1)
	default:
		stats.failed.Add(1)
	}
}

func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := min(len(sorted)*p/100, len(sorted)-1)
	return sorted[idx]
}

func printResults(stats *loadStats, duration time.Duration) {
	total := stats.requests.Load()
	created := stats.created.Load()

	stats.mu.Lock()
	latencies := slices.Clone(stats.latencies)
	stats.mu.Unlock()
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	var avg time.Duration
	if len(latencies) > 0 {
		avg = sum / time.Duration(len(latencies))
	}

	successRate := 0.0
	if total > 0 {
		successRate = float64(created) / float64(total) * 100
	}

	fmt.Println("\n==========================================")
	fmt.Println("Load Test Results")
	fmt.Println("==========================================")
	fmt.Printf("Duration:        %v\n", duration)
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Created (201):   %d\n", created)
	fmt.Printf("Rejected (400):  %d\n", stats.rejected.Load())
	fmt.Printf("Failed:          %d\n", stats.failed.Load())
	fmt.Printf("Success Rate:    %.2f%%\n", successRate)
	fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	if len(latencies) == 0 {
		fmt.Println("==========================================")
		return
	}
	fmt.Println("\nLatency Statistics:")
	fmt.Printf("  Min:           %v\n", latencies[0])
	fmt.Printf("  Max:           %v\n", latencies[len(latencies)-1])
	fmt.Printf("  Average:       %v\n", avg)
	fmt.Printf("  p50:           %v\n", percentile(latencies, 50))
	fmt.Printf("  p95:           %v\n", percentile(latencies, 95))
	fmt.Printf("  p99:           %v\n", percentile(latencies, 99))
	fmt.Println("==========================================")
}
