package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/flashlearn/backend/internal/auth"
	"github.com/flashlearn/backend/internal/cache"
	"github.com/flashlearn/backend/internal/config"
	"github.com/flashlearn/backend/internal/database"
	"github.com/flashlearn/backend/internal/events"
	"github.com/flashlearn/backend/internal/flashcards"
	"github.com/flashlearn/backend/internal/generator"
	"github.com/flashlearn/backend/internal/logger"
	"github.com/flashlearn/backend/internal/middleware"
	"github.com/flashlearn/backend/internal/progress"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}

	// Stats cache and the bus that invalidates it
	bus, statsCache, closeRedis := newCacheAndBus(ctx, cfg, log)
	defer closeRedis()
	defer bus.Close()

	if err := cache.Watch(ctx, bus, statsCache, log); err != nil {
		log.Fatal("failed to subscribe stats cache", "error", err)
	}

	// Initialize services and handlers
	progressStore := progress.NewStore(db)
	progressService := progress.NewService(progressStore, bus, statsCache, log)
	flashcardService := flashcards.NewService(
		flashcards.NewStore(db),
		progressStore,
		generator.NewGenerator(cfg, log),
		statsCache,
		flashcards.Options{Location: cfg.StatsLocation, PerTopic: cfg.CardsPerTopic},
		log,
	)

	authHandler := auth.NewHandler(db, []byte(cfg.JWTSecret), log)
	progressHandler := progress.NewHandler(progressService, log)
	flashcardHandler := flashcards.NewHandler(flashcardService, log)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth([]byte(cfg.JWTSecret)))
	protected.HandleFunc("/auth/me", authHandler.GetCurrentUser).Methods("GET")
	progressHandler.RegisterRoutes(protected)
	flashcardHandler.RegisterRoutes(api, protected)

	// Health check
	r.HandleFunc("/health", healthHandler(db)).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("server shutdown", "error", err)
		}
	}()

	log.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", "error", err)
	}
	log.Info("server stopped")
}

// newCacheAndBus uses Redis when REDIS_ADDR is set and reachable, and
// in-process implementations otherwise.
func newCacheAndBus(ctx context.Context, cfg *config.Config, log *logger.Logger) (events.Bus, cache.StatsCache, func()) {
	local := func() (events.Bus, cache.StatsCache, func()) {
		return events.NewLocalBus(), cache.NewMemoryCache(cfg.StatsCacheTTL), func() {}
	}
	if cfg.RedisAddr == "" {
		log.Info("stats cache in memory")
		return local()
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unreachable, stats cache in memory", "addr", cfg.RedisAddr, "error", err)
		_ = rdb.Close()
		return local()
	}

	bus, err := events.NewRedisBus(log, rdb, cfg.RedisChannel)
	if err != nil {
		log.Fatal("failed to create redis bus", "error", err)
	}
	log.Info("stats cache in redis", "addr", cfg.RedisAddr, "channel", cfg.RedisChannel)
	return bus, cache.NewRedisCache(rdb, cfg.StatsCacheTTL), func() { _ = rdb.Close() }
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}

		body := map[string]any{"status": "ok"}
		if v, dirty, err := database.Version(ctx, db); err == nil {
			body["schema_version"] = v
			body["schema_dirty"] = dirty
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(body)
	}
}
