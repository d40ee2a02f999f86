package main

import (
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/citypulse/api-edge/internal/api"
	"github.com/citypulse/api-edge/internal/auth"
	"github.com/citypulse/api-edge/internal/cache"
	"github.com/citypulse/api-edge/internal/config"
	"github.com/citypulse/api-edge/internal/db"
	"github.com/citypulse/api-edge/internal/handlers"
	"github.com/citypulse/api-edge/internal/membership"
	"github.com/citypulse/api-edge/internal/metrics"
	"github.com/citypulse/api-edge/internal/ratelimit"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := db.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	responseCache := cache.New(cache.NewRedisStore(redisClient), cfg.CacheOpTimeout)
	limiter := ratelimit.NewLimiter(ratelimit.NewRedisCounter(redisClient), cfg.CacheOpTimeout)

	authMW := auth.NewMiddleware(cfg.JWTSecret)

	router := mux.NewRouter()
	router.Use(metrics.Middleware)

	router.HandleFunc("/health", healthHandler).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Everything under /api runs with optional identity and the tiered
	// window; endpoint-class limiters stack on top per route.
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(mux.MiddlewareFunc(authMW.Optional))
	apiRouter.Use(limiter.Tiered(cfg.TierWindow, ratelimit.Quotas{
		Anonymous: cfg.TierMaxAnonymous,
		Regular:   cfg.TierMaxRegular,
		Approved:  cfg.TierMaxApproved,
	}, database))

	applyLimit := limiter.Class("apply", cfg.ApplyLimit.Max, cfg.ApplyLimit.Window,
		"Too many membership applications. Please try again later.")
	searchLimit := limiter.Class("search", cfg.SearchLimit.Max, cfg.SearchLimit.Window,
		"Too many search requests. Please slow down.")
	uploadLimit := limiter.Class("upload", cfg.UploadLimit.Max, cfg.UploadLimit.Window,
		"Upload limit reached. Please try again later.")

	handlers.NewEventsHandler(database, database, responseCache, cfg.CacheTTLEvents).
		RegisterRoutes(apiRouter, authMW, uploadLimit)
	handlers.NewPlacesHandler(database, database, responseCache, cfg.CacheTTLPlaces).
		RegisterRoutes(apiRouter, authMW, uploadLimit)
	handlers.NewInfluencersHandler(database, responseCache, cfg.CacheTTLInfluencers).
		RegisterRoutes(apiRouter)
	handlers.NewSearchHandler(database, responseCache, cfg.CacheTTLSearch).
		RegisterRoutes(apiRouter, searchLimit)
	membership.NewHandler(database).
		RegisterRoutes(apiRouter, authMW, applyLimit)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Str("port", cfg.ServerPort).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	api.OK(w, map[string]string{
		"status":  "healthy",
		"version": "1.0.0",
	})
}
