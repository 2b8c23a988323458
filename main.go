package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"upholdAPI/handlers"
	"upholdAPI/internal/notification"
	"upholdAPI/internal/reward"
	"upholdAPI/middleware"
	"upholdAPI/services"
)

var (
	dbPool             *pgxpool.Pool
	store              *services.PostgresStore
	notifier           notification.Notifier
	rewardService      *services.RewardService
	progressionService *services.ProgressionService
	trackingService    *services.TrackingService
	achievementService *services.AchievementService
	challengeService   *services.ChallengeService
	leaderboardService *services.LeaderboardService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to database")

	store = services.NewPostgresStore(dbPool)

	notifier = notification.NopNotifier{}
	fcm, err := notification.NewFCMNotifier("./serviceAccountKey.json", store)
	if err != nil {
		log.Printf("Warning: Could not initialize FCM, pushes disabled: %v", err)
	} else {
		notifier = fcm
		log.Println("FCM push provider initialized successfully")
	}

	pool := reward.DefaultPool()
	rewardService = services.NewRewardService(store, store)
	progressionService = services.NewProgressionService(store, notifier)
	trackingService = services.NewTrackingService(store, store, progressionService, rewardService, pool)
	achievementService = services.NewAchievementService(store, store, store, notifier)
	challengeService = services.NewChallengeService(store, rewardService, pool)
	leaderboardService = services.NewLeaderboardService(store, leaderboardTTL())

	middleware.InitPrometheus()
	services.InitEngineMetrics()
}

func leaderboardTTL() time.Duration {
	raw := os.Getenv("LEADERBOARD_TTL_SECONDS")
	if raw == "" {
		return services.DefaultLeaderboardTTL
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		log.Printf("Invalid LEADERBOARD_TTL_SECONDS %q, using default", raw)
		return services.DefaultLeaderboardTTL
	}
	return time.Duration(secs) * time.Second
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	trackingHandler := handlers.NewTrackingHandler(trackingService)
	progressionHandler := handlers.NewProgressionHandler(progressionService, achievementService)
	achievementHandler := handlers.NewAchievementHandler(achievementService)
	challengeHandler := handlers.NewChallengeHandler(challengeService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)
	healthHandler := handlers.NewHealthHandler(dbPool)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")

	// -------------------------------------------------------------------------
	// API V1 SUBROUTER
	// -------------------------------------------------------------------------
	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.IdentityMiddleware)

	protected.HandleFunc("/entities", trackingHandler.ListEntities).Methods("GET")
	protected.HandleFunc("/entities", trackingHandler.CreateEntity).Methods("POST")
	protected.HandleFunc("/activities", trackingHandler.RecordActivity).Methods("POST")
	protected.HandleFunc("/indulgences", trackingHandler.RecordIndulgence).Methods("POST")

	protected.HandleFunc("/progression", progressionHandler.GetProgression).Methods("GET")
	protected.HandleFunc("/achievements", achievementHandler.GetAchievements).Methods("GET")

	protected.HandleFunc("/challenges/participations/{participationId}/progress", challengeHandler.UpdateProgress).Methods("POST")

	protected.HandleFunc("/leaderboards", leaderboardHandler.GetLeaderboard).Methods("GET")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-User-ID"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
