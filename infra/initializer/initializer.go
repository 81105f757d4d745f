package initializer

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amirasaad/giftfund/infra"
	infracache "github.com/amirasaad/giftfund/infra/cache"
	infraeventbus "github.com/amirasaad/giftfund/infra/eventbus"
	"github.com/amirasaad/giftfund/infra/metrics"
	"github.com/amirasaad/giftfund/infra/provider/sandbox"
	"github.com/amirasaad/giftfund/infra/provider/stripeconnect"
	custodialrepo "github.com/amirasaad/giftfund/infra/repository/custodial"
	"github.com/amirasaad/giftfund/pkg/app"
	"github.com/amirasaad/giftfund/pkg/cache"
	"github.com/amirasaad/giftfund/pkg/config"
	"github.com/amirasaad/giftfund/pkg/eventbus"
	"github.com/amirasaad/giftfund/pkg/provider/connect"
	"github.com/redis/go-redis/v9"
)

const (
	driverRedis = "redis"
	driverKafka = "kafka"
)

// InitializeDependencies builds every infrastructure dependency from config.
func InitializeDependencies(cfg *config.App) (*app.Deps, error) {
	logger := setupLogger(cfg.Log)
	deps := &app.Deps{Logger: logger}

	logger.Info("initializing dependencies",
		"env", cfg.Env,
		"mode", cfg.Mode,
		"stripe_key", config.MaskValue(stripeKey(cfg)),
		"database_url", config.MaskValue(dbURL(cfg)),
	)

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return nil, err
	}
	if cfg.DB.RunMigrations {
		if err := infra.RunMigrations(db); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("✅ migrations applied")
	}
	deps.Accounts = custodialrepo.NewAccountRepository(db)
	deps.Profiles = custodialrepo.NewProfileRepository(db)

	m := metrics.New()
	deps.Metrics = m
	deps.Gateway = initGateway(cfg, m, logger)

	client := newRedisClient(cfg.Redis, logger)
	deps.Locker = initLocker(cfg, client, logger)

	deps.EventBus, err = initEventBus(cfg, client, logger)
	if err != nil {
		return nil, err
	}
	return deps, nil
}

// initGateway falls back to the in-memory sandbox when no Stripe key is
// configured. The sandbox always runs in test mode.
func initGateway(cfg *config.App, m *metrics.Metrics, logger *slog.Logger) connect.Gateway {
	if strings.TrimSpace(stripeKey(cfg)) == "" {
		logger.Warn("⚠️ STRIPE_API_KEY not set, using the in-memory sandbox gateway")
		cfg.Mode = config.ModeTest
		var secret, currency string
		if cfg.Stripe != nil {
			secret, currency = cfg.Stripe.SigningSecret, cfg.Stripe.Currency
		}
		return sandbox.New(secret, currency)
	}
	return stripeconnect.New(cfg.Stripe, m, logger)
}

// newRedisClient returns nil when no redis URL is configured or the URL is
// unusable.
func newRedisClient(cfg *config.Redis, logger *slog.Logger) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.URL) == "" {
		return nil
	}
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		logger.Warn("invalid redis url, continuing without redis", "error", err)
		return nil
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout
	return redis.NewClient(opt)
}

func initLocker(cfg *config.App, client *redis.Client, logger *slog.Logger) cache.Locker {
	wait := 5 * time.Second
	if cfg.Lock != nil {
		wait = cfg.Lock.Wait
	}
	if client == nil {
		logger.Info("using in-memory locker")
		return infracache.NewMemoryLocker(wait)
	}
	prefix := "giftfund:"
	if cfg.Redis != nil && cfg.Redis.KeyPrefix != "" {
		prefix = cfg.Redis.KeyPrefix
	}
	logger.Info("using redis locker", "prefix", prefix)
	return infracache.NewRedisLocker(client, prefix, wait, logger)
}

// initEventBus picks the bus driver. An explicit redis driver without a
// client is a configuration error; an unreachable broker falls back to memory.
func initEventBus(cfg *config.App, client *redis.Client, logger *slog.Logger) (eventbus.Bus, error) {
	driver := ""
	if cfg.EventBus != nil {
		driver = strings.ToLower(strings.TrimSpace(cfg.EventBus.Driver))
	}
	switch driver {
	case driverKafka:
		return initKafkaBus(cfg.EventBus, logger), nil
	case driverRedis:
	default:
		return infraeventbus.NewWithMemory(logger), nil
	}
	if client == nil {
		return nil, fmt.Errorf("eventbus driver %q requires REDIS_URL", driverRedis)
	}
	bus, err := infraeventbus.NewWithRedis(
		client,
		cfg.EventBus.Stream,
		cfg.EventBus.Group,
		infraeventbus.CustodialEventTypes(),
		logger,
	)
	if err != nil {
		logger.Warn("⚠️ redis event bus unavailable, falling back to memory", "error", err)
		return infraeventbus.NewWithMemory(logger), nil
	}
	return bus, nil
}

func initKafkaBus(cfg *config.EventBus, logger *slog.Logger) eventbus.Bus {
	bus, err := infraeventbus.NewWithKafka(cfg.Kafka, cfg.Group, infraeventbus.CustodialEventTypes(), logger)
	if err != nil {
		logger.Warn("⚠️ kafka event bus unavailable, falling back to memory", "error", err)
		return infraeventbus.NewWithMemory(logger)
	}
	return bus
}

func stripeKey(cfg *config.App) string {
	if cfg.Stripe == nil {
		return ""
	}
	return cfg.Stripe.ApiKey
}

func dbURL(cfg *config.App) string {
	if cfg.DB == nil {
		return ""
	}
	return cfg.DB.Url
}

