// README: Entry point; loads config, wires stores, providers and the trip service, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"routetrip/internal/ai"
	"routetrip/internal/config"
	httptransport "routetrip/internal/http"
	"routetrip/internal/infra"
	"routetrip/internal/maps"
	"routetrip/internal/metrics"
	"routetrip/internal/modules/location"
	"routetrip/internal/modules/trip"
	"routetrip/internal/service"
	"routetrip/internal/session"
	"routetrip/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.RegisterDefault()

	var verifier infra.TokenVerifier
	if cfg.Firebase.ProjectID != "" {
		verifier, err = infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Fatalf("firebase init: %v", err)
		}
	} else {
		log.Printf("[http] ROUTETRIP_FIREBASE_PROJECT_ID not set, API is unauthenticated")
	}

	var archive trip.Archive
	if cfg.DB.DSN != "" {
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatal(err)
		}
		defer dbPool.Close()
		if err := migrations.Apply(ctx, dbPool); err != nil {
			log.Fatalf("migrations: %v", err)
		}
		archive = trip.NewArchiveStore(dbPool)
	}

	var store session.Store
	var locationStore location.Store
	if cfg.Redis.Addr != "" {
		redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Fatal(err)
		}
		defer redisClient.Close()
		store = session.NewRedisStore(redisClient, cfg.Session.Namespace)
		locationStore = location.NewRedisStore(redisClient, cfg.Session.Namespace)
	} else {
		store = session.NewMemoryStore()
		locationStore = location.NewMemoryStore()
	}

	locationSvc := location.NewService(locationStore, location.Options{
		MinMoveMeters: cfg.Location.MinMoveMeters,
		Refresh:       location.DefaultOptions().Refresh,
		MaxAge:        cfg.Location.MaxAge,
	})

	deps := trip.ServiceDeps{Sessions: store, Locator: locationSvc, Archive: archive}
	var places *maps.PlacesService
	if cfg.Maps.APIKey != "" {
		mapsCfg := maps.ClientConfig{
			APIKey:    cfg.Maps.APIKey,
			BaseURL:   cfg.Maps.BaseURL,
			RateLimit: cfg.Maps.RateLimit,
			Timeout:   cfg.Maps.Timeout,
			Language:  cfg.Maps.Language,
			Region:    cfg.Maps.Region,
		}
		client, err := maps.NewClient(mapsCfg)
		if err != nil {
			log.Fatalf("maps client: %v", err)
		}
		places = maps.NewPlacesService(client, mapsCfg)
		deps.Geocoder = places
		deps.Optimizer = maps.NewRouteService(client, mapsCfg)
	} else {
		log.Printf("[optimizer] GOOGLE_MAPS_API_KEY not set, optimization and place search are disabled")
	}

	prefs := trip.DefaultPreferences()
	prefs.AvoidTolls = cfg.Optimizer.AvoidTolls
	tripSvc := trip.NewService(deps, trip.Options{OptimizeTimeout: cfg.Optimizer.Timeout, Preferences: prefs})
	if err := tripSvc.Recover(ctx); err != nil {
		log.Printf("[trip] recover: %v", err)
	}

	serverDeps := httptransport.ServerDeps{
		Trips:     tripSvc,
		Location:  locationSvc,
		Sessions:  store,
		Verifier:  verifier,
		RateLimit: cfg.HTTP.RateLimit,
		Burst:     cfg.HTTP.Burst,
	}
	if places != nil {
		serverDeps.AddressLookup = places
	}
	if cfg.AI.GeminiKey != "" {
		provider, err := ai.NewGeminiProvider(ctx, cfg.AI.GeminiKey, cfg.AI.Model)
		if err != nil {
			log.Fatalf("gemini init: %v", err)
		}
		defer provider.Close()
		serverDeps.Importer = service.NewManifestImporter(provider, tripSvc, cfg.Maps.Region)
	}

	server := httptransport.NewServer(cfg.HTTP.Addr, serverDeps)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("[http] listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
