package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"bundleapi/internal/bundle"
	"bundleapi/internal/elastic"
	"bundleapi/internal/httpx"
	"bundleapi/internal/search"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load(".env.local")

	logger := mustBuildLogger()
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	serverAddress := getEnv("APP_ADDR", ":8080")
	storeURL := getEnv("STORE_URL", "http://localhost:9200")
	booksIndex := getEnv("BOOKS_INDEX", "books")
	bundlesIndex := getEnv("BUNDLES_INDEX", "b4")
	storeTimeout := getDurationEnv("STORE_TIMEOUT", 10*time.Second)

	client := elastic.NewClient(storeURL, storeTimeout)
	bundles := client.Collection(bundlesIndex, "bundle")
	books := client.Collection(booksIndex, "book")

	bundleHandler := bundle.NewHTTPHandler(bundle.NewService(bundles, books))
	searchHandler := search.NewHTTPHandler(search.NewService(books))

	router := http.NewServeMux()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	bundleHandler.Register(router)
	searchHandler.Register(router)

	var handler http.Handler = router
	if rps := getFloatEnv("RATE_LIMIT_RPS", 0); rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		handler = httpx.NewRateLimitMiddleware(rps, burst).Middleware(handler)
	}
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		handler = httpx.CORSMiddleware(strings.Split(origins, ","))(handler)
	}
	handler = httpx.SecurityHeadersMiddleware(handler)
	handler = httpx.RequestSizeLimitMiddleware(1 << 20)(handler)
	handler = httpx.RecoveryMiddleware(sugar)(handler)
	handler = httpx.AccessLogMiddleware(sugar)(handler)
	handler = httpx.RequestIDMiddleware(handler)

	httpServer := &http.Server{
		Addr:         serverAddress,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sugar.Infow("starting server", "addr", serverAddress, "store", storeURL)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		sugar.Fatalw("server error", "error", err)
	}
}

func mustBuildLogger() *zap.Logger {
	var logger *zap.Logger
	var err error
	if os.Getenv("APP_ENV") == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
