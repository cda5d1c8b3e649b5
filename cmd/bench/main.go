// README: Benchmark runner for the trip API; executes HTTP/DB/Redis checks and prints results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	bench := NewRunner(cfg)
	results := bench.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	pass, fail, pending, skipped := 0, 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case "PASS":
			pass++
		case "FAIL":
			fail++
		case "PENDING":
			pending++
		case "SKIP":
			skipped++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d PENDING=%d SKIP=%d\n", pass, fail, pending, skipped)

	if cfg.Strict && (fail > 0 || pending > 0) {
		os.Exit(1)
	}
	if fail > 0 {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL        string
	Token          string
	DSN            string
	RedisAddr      string
	ApplyMigration bool
	Strict         bool
	Timeout        time.Duration
	Concurrency    int
	Duration       time.Duration
	Stops          int
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("ROUTETRIP_BENCH_BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.Token, "token", os.Getenv("ROUTETRIP_BENCH_TOKEN"), "Firebase ID token sent as Bearer (empty when auth is off)")
	flag.StringVar(&cfg.DSN, "dsn", os.Getenv("ROUTETRIP_DB_DSN"), "Postgres DSN (empty skips DB checks)")
	flag.StringVar(&cfg.RedisAddr, "redis", os.Getenv("ROUTETRIP_REDIS_ADDR"), "Redis address (empty skips Redis checks)")
	flag.BoolVar(&cfg.ApplyMigration, "apply-migration", envOrDefaultBool("ROUTETRIP_BENCH_APPLY_MIGRATION", false), "Apply embedded migrations before tests")
	flag.BoolVar(&cfg.Strict, "strict", envOrDefaultBool("ROUTETRIP_BENCH_STRICT", false), "Fail on pending tests")
	flag.DurationVar(&cfg.Timeout, "timeout", envOrDefaultDuration("ROUTETRIP_BENCH_TIMEOUT", 2*time.Minute), "Total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", envOrDefaultInt("ROUTETRIP_BENCH_CONCURRENCY", 8), "Concurrency for perf tests")
	flag.DurationVar(&cfg.Duration, "duration", envOrDefaultDuration("ROUTETRIP_BENCH_DURATION", 10*time.Second), "Duration for perf tests")
	flag.IntVar(&cfg.Stops, "stops", envOrDefaultInt("ROUTETRIP_BENCH_STOPS", 10), "Stops per optimized trip")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "1" || v == "true" || v == "yes"
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		_, _ = fmt.Sscanf(v, "%d", &n)
		if n > 0 {
			return n
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
