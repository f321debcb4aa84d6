package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	_ "github.com/jackc/pgx/v5/stdlib"

	"school-route-service/internal/adapters/cache"
	"school-route-service/internal/adapters/mapping"
	"school-route-service/internal/adapters/notify"
	"school-route-service/internal/adapters/repositories"
	"school-route-service/internal/api"
	"school-route-service/internal/config"
	"school-route-service/internal/platform/db"
	"school-route-service/internal/services"
)

// main is the application composition root. It wires concrete adapters
// (Postgres, SQLite caches, optional Redis, Google Maps) behind ports
// and starts the HTTP server plus the background workers.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	databaseURL := config.MustGet("DATABASE_URL")
	apiKey := config.MustGet("GOOGLE_MAPS_API_KEY")
	cachePath := config.Get("CACHE_DB_PATH", "data/cache.db")
	port := config.Get("PORT", "8080")

	pg, err := db.Open(databaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pg.Close()

	if err := repositories.InitSchema(pg); err != nil {
		log.Fatal(err)
	}

	cacheDB, err := openCacheDB(cachePath)
	if err != nil {
		log.Fatal(err)
	}
	defer cacheDB.Close()

	// The distance cache is node-local SQLite by default; REDIS_ADDR
	// switches in a shared cache for multi-node deployments.
	var distanceCache mapping.DistanceCache = cache.NewSqliteDistanceCache(cacheDB)
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		distanceCache = cache.NewRedisDistanceCache(client, config.GetDuration("REDIS_CACHE_TTL", 7*24*time.Hour))
		log.Printf("distance cache backend=redis addr=%s", addr)
	}
	geocodeCache := cache.NewSqliteGeocodeCache(cacheDB)

	provider, err := mapping.NewGoogleProvider(apiKey, distanceCache, geocodeCache)
	if err != nil {
		log.Fatal(err)
	}

	routeRepo := repositories.NewPostgresRouteRepository(pg)
	absenceQueue := repositories.NewPostgresAbsenceQueue(pg)

	optimizer := services.NewRouteOptimizer(provider)
	// One lock registry serializes pings and absence recalculation per
	// route instance.
	locks := services.NewInstanceLocks()
	monitor := services.NewGeofenceMonitor(routeRepo, notify.NewLogSink(), locks)
	planner := services.NewRoutePlanner(routeRepo, optimizer)
	recalculator := services.NewRouteRecalculator(routeRepo, absenceQueue, optimizer, locks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pollAbsences(ctx, recalculator, config.GetDuration("ABSENCE_POLL_INTERVAL", 30*time.Second))
	go sweepGeofences(ctx, monitor, config.GetDuration("GEOFENCE_SWEEP_INTERVAL", 15*time.Second))

	router := api.NewRouter(routeRepo, absenceQueue, monitor, planner, recalculator)

	// Write timeout allows for cold-cache template optimization, which
	// waits on external provider calls.
	log.Printf("Server listening addr=:%s", port)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}

func openCacheDB(path string) (*sql.DB, error) {
	cacheDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := cacheDB.Ping(); err != nil {
		return nil, err
	}
	if err := cache.InitCacheSchema(cacheDB); err != nil {
		return nil, err
	}
	return cacheDB, nil
}

// pollAbsences drains the pending-recalculation queue. The HTTP handler
// processes pushed absences inline; this picks up events written by
// other producers or left behind by a crash.
func pollAbsences(ctx context.Context, recalculator *services.RouteRecalculator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := recalculator.ProcessPending(ctx); err != nil {
				log.Printf("op=absence.poll err=%v", err)
			} else if n > 0 {
				log.Printf("op=absence.poll processed=%d", n)
			}
		}
	}
}

// sweepGeofences re-evaluates every in-progress route as a safety net
// behind per-ping evaluation.
func sweepGeofences(ctx context.Context, monitor *services.GeofenceMonitor, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := monitor.SweepActiveRoutes(ctx); err != nil {
				log.Printf("op=geofence.sweep err=%v", err)
			}
		}
	}
}
