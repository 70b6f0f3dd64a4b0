package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/engine"
	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/feed"
	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/metrics"
	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/store"
	"github.com/Satendra-Soraiya/hytrade-4-sub000/internal/trade"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)

		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			slog.Error("schema setup failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Execution engine ---
	cfg := engine.DefaultConfig()
	if v := os.Getenv("STARTING_CASH"); v != "" {
		cash, err := decimal.NewFromString(v)
		if err != nil {
			slog.Error("invalid STARTING_CASH", "err", err)
			os.Exit(1)
		}
		cfg.StartingCash = cash
	}
	if v := os.Getenv("LOCK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid LOCK_TIMEOUT", "err", err)
			os.Exit(1)
		}
		cfg.LockTimeout = d
	}
	eng := engine.New(st, cfg)

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub()
	go wsHub.Run()

	// --- Trade service ---
	tradeSvc := trade.NewService(eng, wsHub)

	// --- Simulated price feed ---
	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()

	if os.Getenv("FEED_DISABLED") == "" {
		interval := 2 * time.Second
		if v := os.Getenv("FEED_INTERVAL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				slog.Error("invalid FEED_INTERVAL", "err", err)
				os.Exit(1)
			}
			interval = d
		}
		priceFeed := feed.New(eng, tradeSvc, feed.DefaultUniverse(), interval)
		go priceFeed.Run(feedCtx)
		slog.Info("price feed started", "interval", interval.String())
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"trading-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time trade and price updates.
		r.Get("/ws", wsHub.HandleWS)

		// Accounts and trade execution.
		r.Post("/accounts", tradeSvc.CreateAccount)
		r.Get("/accounts/{userID}", tradeSvc.GetAccount)
		r.Post("/accounts/{userID}/buy", tradeSvc.ExecuteBuy)
		r.Post("/accounts/{userID}/sell", tradeSvc.ExecuteSell)
		r.Get("/accounts/{userID}/portfolio", tradeSvc.GetPortfolio)
		r.Get("/accounts/{userID}/orders", tradeSvc.ListOrders)

		// Mark-price updates (simulated feed also drives this path).
		r.Post("/prices", tradeSvc.UpdatePrices)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("trading-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopFeed()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down trading-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("trading-engine stopped")
}
