package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/addressbook"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/admin"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/backend"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/cache"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/cart"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/checkout"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/config"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/events"
	h "github.com/NguyenTrgKien/manage-sell-client-sub001/internal/http"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/idempotency"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/identity"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/logger"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/storage"
	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/voucher"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg := logger.New(cfg.LogLevel)
	slog.SetDefault(logg)
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Query cache, invalidation bus and checkout sessions
	var (
		queryCache cache.Cache
		bus        cache.Bus
		sessions   storage.SessionStore
	)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		queryCache = cache.NewRedisCache(redisClient, cfg.Redis.CacheTTL)
		bus = cache.NewRedisBus(redisClient, logg)
		sessions = storage.NewRedisSessionStore(redisClient, cfg.Redis.SessionTTL)
		logg.Info("connected to redis", "addr", cfg.Redis.Addr)
	} else {
		queryCache = cache.NewMemoryCache(cfg.Redis.CacheTTL)
		bus = cache.NewMemoryBus()
		sessions = storage.NewMemorySessionStore(cfg.Redis.SessionTTL)
		logg.Warn("REDIS_ADDR not set, caching in process memory")
	}
	queries := cache.NewQueries(queryCache, bus, logg)

	// Guest carts and addresses
	var local storage.LocalStore
	if cfg.Mongo.URI != "" {
		mongoDB, err := storage.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer func() { _ = mongoDB.Client().Disconnect(context.Background()) }()
		store := storage.NewMongoLocalStore(mongoDB)
		if err := store.CreateIndexes(ctx); err != nil {
			log.Fatalf("Failed to create indexes: %v", err)
		}
		local = store
		logg.Info("connected to mongodb", "database", cfg.Mongo.DBName)
	} else {
		local = storage.NewMemoryLocalStore()
		logg.Warn("MONGO_URI not set, guest carts live in process memory")
	}

	ledger, err := idempotency.NewRepository(cfg.Idempotency.Driver, cfg.Idempotency.DSN)
	if err != nil {
		log.Fatalf("Failed to open idempotency store: %v", err)
	}
	defer ledger.Close()
	if err := ledger.RunMigrations(cfg.Idempotency.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logg.Info("idempotency migrations completed", "driver", cfg.Idempotency.Driver)

	client := backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	carts := cart.NewService(client, local, queries, logg)
	addresses := addressbook.NewService(client, local, queries)
	vouchers := voucher.NewService(client, queries)

	var publisher events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		listener := events.NewListener(carts, logg, cfg.Kafka.InstanceID, cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		defer listener.Close()
		go listener.Run(ctx)
		logg.Info("publishing order events", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers, "group", events.ListenerGroup(cfg.Kafka.InstanceID))
	} else {
		publisher = events.NewNopPublisher(logg)
	}
	defer publisher.Close()

	rule := domain.ShippingRule{
		FreeThreshold: cfg.Checkout.FreeShippingThreshold,
		FlatFee:       cfg.Checkout.FlatShippingFee,
	}
	checkoutService := checkout.NewService(checkout.Deps{
		Sessions:  sessions,
		Carts:     carts,
		Addresses: addresses,
		Vouchers:  vouchers,
		Orders:    client,
		Ledger:    ledger,
		Quoter:    checkout.NewShippingQuoter(client, rule, logg),
		Events:    publisher,
	}, checkout.Config{
		PollInterval: cfg.Checkout.PaymentPollInterval,
		PollTimeout:  cfg.Checkout.PaymentPollTimeout,
	}, logg)

	router := h.NewRouter(h.Services{
		Identity:  identity.NewProvider(cfg.Auth.JWTSecret, client, queries, logg),
		Carts:     carts,
		Updates:   queries,
		Checkout:  checkoutService,
		Addresses: addresses,
		Vouchers:  vouchers,
		Admin:     admin.NewService(client, queries),
	}, h.RouterConfig{
		RequestTimeout:     cfg.Server.RequestTimeout,
		MaxRequestBodySize: cfg.Server.MaxRequestBodySize,
		SecureCookies:      cfg.Server.SecureCookies,
	}, logg)

	// No WriteTimeout: cart events and payment watches hold the response open.
	srv := &http.Server{
		Addr:              ":" + cfg.Server.HTTPPort,
		Handler:           otelhttp.NewHandler(router, "storefront"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logg.Info("storefront starting", "port", cfg.Server.HTTPPort, "backend", cfg.Backend.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	logg.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server forced to shutdown", "error", err)
	}

	logg.Info("server exited")
}
