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

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/history"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/money"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/poller"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, dotenv := config.Load()

	zlog, err := logger.New(cfg.LogEnv)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()
	zap.ReplaceGlobals(zlog)
	if !dotenv {
		zlog.Debug("no .env file, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Resource store client
	storeClient, err := store.NewClient(cfg.StoreBaseURL,
		store.WithLogger(zlog),
		store.WithReadRetries(cfg.ReadRetries, 200*time.Millisecond),
		store.WithHTTPClient(&http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	)
	if err != nil {
		zlog.Fatal("invalid store configuration", zap.Error(err))
	}

	// Hand-off cache and placement journal: redis when configured, in-process otherwise
	var (
		handoffs cache.HandoffCache
		journal  orders.Journal
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zlog.Fatal("redis connection failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		zlog.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))

		handoffs = cache.NewRedisCache(redisClient, cfg.HandoffTTL)
		journal = orders.NewRedisJournal(redisClient)
	} else {
		zlog.Warn("REDIS_ADDR not set, hand-off cache and placement journal are in-process")
		handoffs = cache.NewMemoryCache(cfg.HandoffTTL)
		journal = orders.NewMemoryJournal()
	}

	// Order events
	var publisher orders.Publisher = orders.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = orders.NewKafkaPublisher(cfg.OrdersTopic, cfg.KafkaBrokers...)
		zlog.Info("publishing order events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.OrdersTopic))
	}
	defer publisher.Close()

	cartService := cart.NewService(storeClient, handoffs, zlog)
	resolver := checkout.NewResolver(cartService, handoffs, zlog)
	assembler := checkout.NewAssembler(
		checkout.NewClassifier(cfg.ClassifyByCategory),
		checkout.FlatRate(money.VND(cfg.ShippingFee)),
	)
	placer := orders.NewPlacer(storeClient, cartService, journal,
		orders.WithClearRetry(cfg.ClearCartAttempts, 300*time.Millisecond),
		orders.WithPublisher(publisher),
		orders.WithLogger(zlog),
	)

	// Settle carts left uncleared by earlier placements
	go orders.NewRecoveryPoller(placer, cfg.RecoveryInterval, zlog).Run(ctx)

	reader := history.NewReader(storeClient, zlog)
	hub := history.NewHub(reader.FetchOrders, history.RefresherConfig{
		Interval: cfg.HistoryRefreshInterval,
		Timeout:  cfg.RequestTimeout,
		Location: cfg.Location(),
	}, zlog)
	defer hub.Close()

	// Order events from every instance drop hand-offs and refresh open views
	if len(cfg.KafkaBrokers) > 0 {
		group := cfg.OrderEventsGroup
		if group == "" {
			host, _ := os.Hostname()
			group = "storefront-" + host
		}
		events := poller.NewPoller(cfg.OrdersTopic, group, cfg.KafkaBrokers, handoffs, hub, zlog)
		defer events.Close()
		go events.Run(ctx)
	}

	router := h.NewRouter(h.Handlers{
		Cart:     h.NewCartHandler(cartService, cfg.RequestTimeout, zlog),
		Checkout: h.NewCheckoutHandler(resolver, assembler, placer, cfg.RequestTimeout, zlog),
		Orders:   h.NewOrdersHandler(reader, hub, cfg.Location(), cfg.RequestTimeout, zlog),
	}, h.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}, zlog)

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     otelhttp.NewHandler(router, "storefront"),
		ReadTimeout: 10 * time.Second,
		// handlers bound their own work; the history stream stays open
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("storefront starting", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreBaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	zlog.Info("shutting down server...")

	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	zlog.Info("server exited")
}
