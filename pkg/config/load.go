package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads the first env file found (searching upwards from the working
// directory for each candidate name), then processes the environment.
// Real environment variables always win over file values.
func Load(envFiles ...string) (*App, error) {
	logger := slog.Default()
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, name := range envFiles {
		path, err := findEnvFile(name)
		if err != nil {
			logger.Debug("Environment file not found", "name", name)
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logger.Warn("Failed to load environment file", "path", path, "error", err)
			continue
		}
		logger.Info("Loaded environment file", "path", path)
		break
	}
	return loadFromEnv(logger)
}

func loadFromEnv(logger *slog.Logger) (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	cfg.Mode = ResolveMode(cfg.Stripe.ApiKey)

	logger.Info("App config loaded",
		"env", cfg.Env,
		"stripe_mode", cfg.Mode,
		"stripe_api_key", MaskValue(cfg.Stripe.ApiKey),
		"stripe_country", cfg.Stripe.Country,
		"rate_limit_max_requests", cfg.RateLimit.MaxRequests,
		"rate_limit_window", cfg.RateLimit.Window,
		"db", MaskValue(cfg.DB.Url),
		"redis", MaskValue(cfg.Redis.URL),
		"eventbus_driver", cfg.EventBus.Driver,
		"public_base_url", cfg.Public.BaseURL,
	)
	return &cfg, nil
}

func (a *App) validate() error {
	var errs []error
	if strings.TrimSpace(a.Auth.Jwt.Secret) == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must not be empty"))
	}
	if len(a.Stripe.Country) != 2 {
		errs = append(errs, fmt.Errorf("STRIPE_COUNTRY must be a two-letter code, got %q", a.Stripe.Country))
	}
	if u, err := url.Parse(a.Public.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL must be an absolute URL, got %q", a.Public.BaseURL))
	}
	switch strings.ToLower(strings.TrimSpace(a.EventBus.Driver)) {
	case "", "memory", "redis", "kafka":
	default:
		errs = append(errs, fmt.Errorf("EVENTBUS_DRIVER %q is not one of memory, redis, kafka", a.EventBus.Driver))
	}
	return errors.Join(errs...)
}

// findEnvFile walks from the working directory up to the filesystem root.
func findEnvFile(name string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// MaskValue hides everything but the edges of a secret for logging.
func MaskValue(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
