package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frontdesk/reservations/internal/config"
	"github.com/frontdesk/reservations/internal/db"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	ReserveRatio float64
	ReadRatio    float64
	EventLimit   int
	PostgresDSN  string
}

type simEvent struct {
	Slug     string
	Capacity int
}

type DataPool struct {
	Events []simEvent
	mu     sync.RWMutex
	codes  []string // booking codes returned by successful reservations
}

func (dp *DataPool) AddCode(code string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.codes = append(dp.codes, code)
}

func (dp *DataPool) GetRandomCode(rng *rand.Rand) (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.codes) == 0 {
		return "", false
	}
	return dp.codes[rng.Intn(len(dp.codes))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Reserve OperationMetrics
	Lookup  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d reserve=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.ReserveRatio, cfg.ReadRatio)

	// Load data from Postgres
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d upcoming events", len(dataPool.Events))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	// Run simulation
	sim.Run()

	// Print report, then verify the capacity invariant directly in SQL
	sim.PrintReport()

	checkCtx, cancelCheck := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelCheck()
	if err := verifyCapacityInvariant(checkCtx, pgPool); err != nil {
		log.Fatalf("capacity invariant check: %v", err)
	}
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getSimDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		ReserveRatio: getFloat("SIM_RESERVE_RATIO", 0.7),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		EventLimit:   getInt("SIM_EVENT_LIMIT", 20),
		PostgresDSN:  baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.ReserveRatio + cfg.ReadRatio
	if total > 0 {
		cfg.ReserveRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT slug, capacity FROM events
		WHERE starts_at > now()
		ORDER BY starts_at ASC
		LIMIT $1
	`, cfg.EventLimit)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e simEvent
		if err := rows.Scan(&e.Slug, &e.Capacity); err != nil {
			return nil, err
		}
		dataPool.Events = append(dataPool.Events, e)
	}

	if len(dataPool.Events) == 0 {
		return nil, fmt.Errorf("no upcoming events loaded, run cmd/seed first")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if rng.Float64() < s.config.ReserveRatio {
				s.doReserve(ctx, rng)
			} else {
				s.doLookup(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doReserve(ctx context.Context, rng *rand.Rand) {
	event := s.pool.Events[rng.Intn(len(s.pool.Events))]
	seats := rng.Intn(4) + 1

	start := time.Now()

	reqBody := map[string]any{
		"seats": seats,
		"attendees": []map[string]string{
			{
				"full_name": fmt.Sprintf("Load Tester %d", rng.Intn(100000)),
				"email":     fmt.Sprintf("load-%d@example.com", rng.Intn(100000)),
			},
		},
	}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/events/%s/bookings", s.config.APIBaseURL, event.Slug), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusCreated {
			success = true
			var bookingResp struct {
				Code string `json:"code"`
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			if len(bodyBytes) > 0 {
				json.Unmarshal(bodyBytes, &bookingResp)
				if bookingResp.Code != "" {
					s.pool.AddCode(bookingResp.Code)
				}
			}
		} else if resp.StatusCode == http.StatusConflict {
			// Sold out or lost a concurrency race; both are expected
			conflict = true
		}
	}

	s.metrics.Reserve.Record(latency, success, conflict)
}

func (s *Simulator) doLookup(ctx context.Context, rng *rand.Rand) {
	code, ok := s.pool.GetRandomCode(rng)
	if !ok {
		return
	}

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/bookings/%s", s.config.APIBaseURL, code), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Lookup.Record(latency, success, false)
}

// verifyCapacityInvariant fails when any event has more non-canceled
// seats admitted than its capacity, which would mean the serializable
// admission path let two conflicting reservations through.
func verifyCapacityInvariant(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, `
		SELECT e.slug, e.capacity, COALESCE(SUM(b.seats), 0) AS booked
		FROM events e
		JOIN bookings b ON b.event_id = e.id AND b.status <> 'canceled'
		GROUP BY e.id
		HAVING COALESCE(SUM(b.seats), 0) > e.capacity
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	violations := 0
	for rows.Next() {
		var slug string
		var capacity int
		var booked int64
		if err := rows.Scan(&slug, &capacity, &booked); err != nil {
			return err
		}
		log.Printf("VIOLATION: event %s capacity=%d booked=%d", slug, capacity, booked)
		violations++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if violations > 0 {
		return fmt.Errorf("%d events oversold", violations)
	}

	log.Println("capacity invariant holds for all events")
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Reserve seats", &s.metrics.Reserve)
	printOperationReport("Lookup by code", &s.metrics.Lookup)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errCount := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, float64(errCount)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getSimDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
