package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/slotwise/doctor-calendar/internal/db"
	"github.com/slotwise/doctor-calendar/internal/scheduling"
)

// The simulator hammers a small set of open slots with concurrent booking
// requests and then verifies that every slot ended up with at most one
// winner and that no taken slot is missing its patient.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	SlotLimit   int
	PhonePool   int
	PostgresDSN string
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  getEnv("API_BASE_URL", "http://127.0.0.1:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 20),
		SlotLimit:   getInt("SIM_SLOT_LIMIT", 10),
		PhonePool:   getInt("SIM_PHONE_POOL", 50),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}
	return cfg
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
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

type winnerBoard struct {
	mu      sync.Mutex
	winners map[uuid.UUID]int
}

func (wb *winnerBoard) RecordWin(slot uuid.UUID) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	wb.winners[slot]++
}

func (wb *winnerBoard) Overbooked() []uuid.UUID {
	wb.mu.Lock()
	defer wb.mu.Unlock()

	var bad []uuid.UUID
	for id, n := range wb.winners {
		if n > 1 {
			bad = append(bad, id)
		}
	}
	return bad
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	log.Info().Msg("simulator starting")

	cfg := loadConfig()
	if cfg.PostgresDSN == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}
	if cfg.Workers <= 0 {
		log.Fatal().Msg("SIM_WORKERS must be positive")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Int("slot_limit", cfg.SlotLimit).
		Msg("config loaded")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	repo := scheduling.NewPgRepository(pgPool)

	open, err := repo.ListOpen(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("load open slots")
	}
	if len(open) == 0 {
		log.Fatal().Msg("no open slots, run seed first")
	}
	if len(open) > cfg.SlotLimit {
		open = open[:cfg.SlotLimit]
	}

	slots := make([]uuid.UUID, len(open))
	for i, a := range open {
		slots[i] = a.ID
	}

	log.Info().Int("slots", len(slots)).Msg("contending for slots")

	var metrics OperationMetrics
	board := &winnerBoard{winners: make(map[uuid.UUID]int)}
	client := &http.Client{Timeout: 10 * time.Second}

	runCtx, stopRun := context.WithTimeout(context.Background(), cfg.Duration)
	defer stopRun()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)))

			for {
				select {
				case <-runCtx.Done():
					return
				default:
				}

				slot := slots[rng.Intn(len(slots))]
				phone := fmt.Sprintf("555-01%03d", rng.Intn(cfg.PhonePool))

				start := time.Now()
				success, conflict := bookOnce(client, cfg.APIBaseURL, slot, phone)
				metrics.Record(time.Since(start), success, conflict)

				if success {
					board.RecordWin(slot)
				}
			}
		}(w)
	}

	wg.Wait()

	report(log, &metrics, board)

	// Cross-check against the store: taken implies an owner.
	var orphaned int64
	err = pgPool.QueryRow(context.Background(), `
		SELECT count(*) FROM appointments WHERE taken = TRUE AND patient_id IS NULL
	`).Scan(&orphaned)
	if err != nil {
		log.Fatal().Err(err).Msg("consistency query")
	}
	if orphaned > 0 {
		log.Fatal().Int64("count", orphaned).Msg("INVARIANT VIOLATED: taken slots without a patient")
	}

	log.Info().Msg("store consistent: every taken slot has exactly one owner")
}

func bookOnce(client *http.Client, baseURL string, slot uuid.UUID, phone string) (success, conflict bool) {
	body, _ := json.Marshal(map[string]string{
		"name":  "Load Tester",
		"phone": phone,
	})

	resp, err := client.Post(
		fmt.Sprintf("%s/appointments/%s/book", baseURL, slot),
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return false, false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, false
	case http.StatusConflict:
		return false, true
	default:
		return false, false
	}
}

func report(log zerolog.Logger, metrics *OperationMetrics, board *winnerBoard) {
	avg, min, max, p50, p95 := metrics.Stats()

	log.Info().
		Int64("total", atomic.LoadInt64(&metrics.Total)).
		Int64("success", atomic.LoadInt64(&metrics.Success)).
		Int64("conflict", atomic.LoadInt64(&metrics.Conflict)).
		Int64("error", atomic.LoadInt64(&metrics.Error)).
		Dur("avg", avg).Dur("min", min).Dur("max", max).
		Dur("p50", p50).Dur("p95", p95).
		Msg("booking metrics")

	if bad := board.Overbooked(); len(bad) > 0 {
		for _, id := range bad {
			log.Error().Stringer("slot", id).Msg("INVARIANT VIOLATED: multiple booking winners")
		}
		os.Exit(1)
	}

	log.Info().Msg("single-winner invariant held for every contended slot")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
