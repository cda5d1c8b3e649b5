// README: Benchmark cases for the trip API: environment, migrations, trip flow, concurrency and throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"routetrip/migrations"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// tripID and stopIDs carry state between the ordered flow cases.
	tripID  string
	stopIDs []string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

type tripView struct {
	TripID       string `json:"tripId"`
	IsOptimized  bool   `json:"isOptimized"`
	IsOptimizing bool   `json:"isOptimizing"`
	TripStatus   string `json:"tripStatus"`
	Locations    []struct {
		UniqueID string `json:"uniqueId"`
	} `json:"locations"`
	DistanceMeters int `json:"distanceMeters"`
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 45 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

// call sends a JSON request to the API and decodes a 2xx body into out when non-nil.
func (r *Runner) call(ctx context.Context, method, path string, body, out any) (int, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, time.Since(start), err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	latency := time.Since(start)
	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, latency, fmt.Errorf("decode: %w", err)
		}
	}
	return resp.StatusCode, latency, nil
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "archive DB reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "session store reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "apply embedded migrations",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				if err := migrations.Apply(ctx, r.db); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "tables created by the embedded migrations",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				tables, err := migrations.Tables()
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "API: server reachable",
			Focus: "health endpoint",
			Run: func(ctx context.Context, r *Runner) Result {
				code, latency, err := r.call(ctx, http.MethodGet, "/health", nil, nil)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if code != http.StatusOK {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", code)}
				}
				return Result{Status: "PASS", Latency: latency}
			},
		},
		{
			Name:  "Trip: create",
			Focus: "new current trip",
			Run: func(ctx context.Context, r *Runner) Result {
				var t tripView
				code, latency, err := r.call(ctx, http.MethodPost, "/api/trips", map[string]any{"name": "bench"}, &t)
				if err != nil || code != http.StatusCreated {
					return failed(code, latency, err)
				}
				r.tripID = t.TripID
				return Result{Status: "PASS", Latency: latency, Note: "trip=" + t.TripID}
			},
		},
		expectStatus("Trip: add stop without location -> 400", http.MethodPost, "/api/trips/current/stops", map[string]any{}, http.StatusBadRequest),
		{
			Name:  "Trip: add stops",
			Focus: "stops with coordinates around Taipei",
			Run: func(ctx context.Context, r *Runner) Result {
				var total time.Duration
				r.stopIDs = r.stopIDs[:0]
				for i := 0; i < r.cfg.Stops; i++ {
					var resp struct {
						Trip tripView `json:"trip"`
					}
					body := map[string]any{
						"title":       fmt.Sprintf("stop %d", i+1),
						"coordinates": benchPoint(i),
					}
					code, latency, err := r.call(ctx, http.MethodPost, "/api/trips/current/stops", body, &resp)
					total += latency
					if err != nil || code != http.StatusCreated {
						return failed(code, latency, err)
					}
					locs := resp.Trip.Locations
					r.stopIDs = append(r.stopIDs, locs[len(locs)-1].UniqueID)
				}
				avg := time.Duration(0)
				if r.cfg.Stops > 0 {
					avg = total / time.Duration(r.cfg.Stops)
				}
				return Result{Status: "PASS", Latency: avg, Note: fmt.Sprintf("stops=%d avg", r.cfg.Stops)}
			},
		},
		expectStatus("Trip: set start location", http.MethodPut, "/api/trips/current/start", map[string]any{
			"coordinates": map[string]float64{"latitude": 25.0478, "longitude": 121.5170},
			"address":     "Taipei Main Station",
		}, http.StatusOK),
		{
			Name:  "Trip: optimize",
			Focus: "provider round trip",
			Run: func(ctx context.Context, r *Runner) Result {
				var t tripView
				code, latency, err := r.call(ctx, http.MethodPost, "/api/trips/current/optimize", nil, &t)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				switch {
				case code == http.StatusOK && t.IsOptimized && !t.IsOptimizing:
					return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("distance=%dm", t.DistanceMeters)}
				case code == http.StatusBadGateway || code == http.StatusInternalServerError:
					return Result{Status: "PENDING", Latency: latency, Note: fmt.Sprintf("status=%d, routing provider not configured?", code)}
				default:
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d optimized=%v", code, t.IsOptimized)}
				}
			},
		},
		{
			Name:  "Concurrency: parallel optimize",
			Focus: "in-flight flag rejects overlapping runs and is always cleared",
			Run: func(ctx context.Context, r *Runner) Result {
				return concurrentOptimize(ctx, r)
			},
		},
		{
			Name:  "Trip: start, deliver, complete",
			Focus: "execution lifecycle",
			Run: func(ctx context.Context, r *Runner) Result {
				code, latency, err := r.call(ctx, http.MethodPost, "/api/trips/current/start-trip", nil, nil)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if code == http.StatusUnprocessableEntity {
					return Result{Status: "PENDING", Latency: latency, Note: "route not optimized"}
				}
				if code != http.StatusOK {
					return failed(code, latency, nil)
				}
				for i, id := range r.stopIDs {
					outcome := "delivered"
					if i%4 == 3 {
						outcome = "failed"
					}
					code, latency, err := r.call(ctx, http.MethodPost, "/api/trips/current/stops/"+id+"/outcome", map[string]any{"outcome": outcome}, nil)
					if err != nil || code != http.StatusOK {
						return failed(code, latency, err)
					}
				}
				var t tripView
				code, latency, err = r.call(ctx, http.MethodPost, "/api/trips/current/complete", nil, &t)
				if err != nil || code != http.StatusOK || t.TripStatus != "completed" {
					return failed(code, latency, err)
				}
				return Result{Status: "PASS", Latency: latency}
			},
		},
		{
			Name:  "Consistency: completed trip archived",
			Focus: "route_trips row for the completed trip",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				if r.tripID == "" {
					return Result{Status: "SKIP", Note: "no trip created"}
				}
				var status string
				err := r.db.QueryRow(ctx, `SELECT trip_status FROM route_trips WHERE trip_id = $1`, r.tripID).Scan(&status)
				if err != nil {
					return Result{Status: "PENDING", Note: err.Error()}
				}
				if status != "completed" {
					return Result{Status: "FAIL", Note: "status=" + status}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Perf: device location update throughput",
			Focus: "PUT /api/device/location",
			Run: func(ctx context.Context, r *Runner) Result {
				var mu sync.Mutex
				i := 0
				return perfLoad(ctx, r, http.MethodPut, "/api/device/location", func() any {
					mu.Lock()
					defer mu.Unlock()
					i++
					p := benchPoint(i)
					return map[string]any{"latitude": p["latitude"], "longitude": p["longitude"]}
				})
			},
		},
		{
			Name:  "Perf: current trip read throughput",
			Focus: "GET /api/trips/current",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, http.MethodGet, "/api/trips/current", nil)
			},
		},
	}
}

func expectStatus(name, method, path string, body any, want int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			code, latency, err := r.call(ctx, method, path, body, nil)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if code != want {
				return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d want=%d", code, want)}
			}
			return Result{Status: "PASS", Latency: latency}
		},
	}
}

func failed(code int, latency time.Duration, err error) Result {
	if err != nil {
		return Result{Status: "FAIL", Latency: latency, Note: err.Error()}
	}
	return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", code)}
}

// benchPoint spreads stops on a small grid so the provider sees distinct waypoints.
func benchPoint(i int) map[string]float64 {
	return map[string]float64{
		"latitude":  25.02 + float64(i%5)*0.01,
		"longitude": 121.50 + float64(i/5%5)*0.01,
	}
}

func concurrentOptimize(ctx context.Context, r *Runner) Result {
	var wg sync.WaitGroup
	var mu sync.Mutex
	codes := map[int]int{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, _, err := r.call(ctx, http.MethodPost, "/api/trips/current/optimize", nil, nil)
			if err != nil {
				return
			}
			mu.Lock()
			codes[code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	var t tripView
	code, _, err := r.call(ctx, http.MethodGet, "/api/trips/current", nil, &t)
	if err != nil || code != http.StatusOK {
		return failed(code, 0, err)
	}
	if t.IsOptimizing {
		return Result{Status: "FAIL", Note: fmt.Sprintf("isOptimizing left set, codes=%v", codes)}
	}
	for c := range codes {
		if c != http.StatusOK && c != http.StatusConflict && c != http.StatusBadGateway && c != http.StatusTooManyRequests {
			return Result{Status: "FAIL", Note: fmt.Sprintf("unexpected status, codes=%v", codes)}
		}
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("codes=%v", codes)}
}

func perfLoad(ctx context.Context, r *Runner, method, path string, payload func() any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				var body any
				if payload != nil {
					body = payload()
				}
				code, _, err := r.call(ctx, method, path, body, nil)
				mu.Lock()
				if err != nil || code >= 500 {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}
