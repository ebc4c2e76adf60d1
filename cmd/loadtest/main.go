// Команда loadtest обстреливает POST /orders конкурентными заказами и
// сводит результаты: сколько заказов подтверждено, сколько отклонено по
// ёмкости, распределение задержек. Удобна для проверки атомарности
// списания мест под нагрузкой.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type config struct {
	baseURL     string
	lessonID    string
	total       int
	concurrency int
	quantity    int64
	timeout     time.Duration
	idempotent  bool
}

type orderRequest struct {
	Name    string      `json:"name"`
	Phone   string      `json:"phone"`
	Lessons []orderLine `json:"lessons"`
}

type orderLine struct {
	LessonID string `json:"lessonId"`
	Quantity int64  `json:"quantity"`
}

func main() {
	cfg := parseFlags()

	client := &http.Client{Timeout: cfg.timeout}

	var (
		created   int64
		conflicts int64
		failures  int64
	)
	latencies := make([]float64, cfg.total)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				start := time.Now()
				status, err := placeOrder(client, cfg)
				latencies[i] = float64(time.Since(start).Milliseconds())

				switch {
				case err != nil:
					atomic.AddInt64(&failures, 1)
				case status == http.StatusCreated:
					atomic.AddInt64(&created, 1)
				case status == http.StatusConflict:
					atomic.AddInt64(&conflicts, 1)
				default:
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}

	startedAt := time.Now()
	for i := 0; i < cfg.total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(startedAt)

	sort.Float64s(latencies)
	fmt.Printf("requests:  %d in %s (%.1f req/s)\n", cfg.total, elapsed.Round(time.Millisecond), float64(cfg.total)/elapsed.Seconds())
	fmt.Printf("created:   %d\n", created)
	fmt.Printf("conflicts: %d\n", conflicts)
	fmt.Printf("failures:  %d\n", failures)
	if len(latencies) > 0 {
		fmt.Printf("latency ms: min=%.0f p50=%.0f p95=%.0f max=%.0f\n",
			latencies[0], percentile(latencies, 50), percentile(latencies, 95), latencies[len(latencies)-1])
	}

	if failures > 0 {
		os.Exit(1)
	}
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.baseURL, "addr", "http://localhost:8080", "booking API base URL")
	flag.StringVar(&cfg.lessonID, "lesson", "", "lesson ID to book (required)")
	flag.IntVar(&cfg.total, "total", 100, "total number of orders to place")
	flag.IntVar(&cfg.concurrency, "concurrency", 10, "number of concurrent workers")
	flag.Int64Var(&cfg.quantity, "qty", 1, "spaces per order")
	flag.DurationVar(&cfg.timeout, "timeout", 10*time.Second, "per-request timeout")
	flag.BoolVar(&cfg.idempotent, "idempotency", false, "send a unique Idempotency-Key per order")
	flag.Parse()

	if cfg.lessonID == "" {
		fmt.Fprintln(os.Stderr, "-lesson is required")
		os.Exit(2)
	}
	if cfg.total <= 0 || cfg.concurrency <= 0 || cfg.quantity <= 0 {
		fmt.Fprintln(os.Stderr, "-total, -concurrency and -qty must be positive")
		os.Exit(2)
	}
	return cfg
}

func placeOrder(client *http.Client, cfg config) (int, error) {
	body, err := json.Marshal(orderRequest{
		Name:  "Load Tester",
		Phone: "+44 7000 000000",
		Lessons: []orderLine{
			{LessonID: cfg.lessonID, Quantity: cfg.quantity},
		},
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequest(http.MethodPost, cfg.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.idempotent {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// percentile возвращает p-й перцентиль отсортированного среза.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
