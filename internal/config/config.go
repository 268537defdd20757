package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "PBX"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultAccessTTL      = 15 * time.Minute
	defaultRefreshTTL     = 30 * 24 * time.Hour
	defaultFxCacheTTL     = 60 * time.Second
	defaultFxDevRate      = 56.0
	defaultRateLockTTL    = 15 * time.Minute

	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// FX provider selection values for FX_PROVIDER.
const (
	FxProviderHTTP   = "http"
	FxProviderStatic = "static"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	Env            string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	JWTSecret       string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Quote engine settings. FxProvider selects the mid-market source:
	// "http" fetches FxRateURL, "static" serves FxDevRate for offline demos.
	FxProvider  string
	FxRateURL   string
	FxAPIKey    string
	FxCacheTTL  time.Duration
	FxDevRate   float64
	RateLockTTL time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
// DATABASE_URL and REDIS_URL may be left empty in development, in which case the
// application falls back to in-memory stores.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		Env:             strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
		JWTSecret:       getEnv("JWT_SECRET", "pbx-dev-secret"),
		RefreshSecret:   getEnv("REFRESH_SECRET", "pbx-dev-refresh-secret"),
		AccessTokenTTL:  defaultAccessTTL,
		RefreshTokenTTL: defaultRefreshTTL,
		FxProvider:      strings.ToLower(getEnv("FX_PROVIDER", FxProviderHTTP)),
		FxRateURL:       os.Getenv("FX_RATE_URL"),
		FxAPIKey:        os.Getenv("FX_API_KEY"),
		FxCacheTTL:      defaultFxCacheTTL,
		FxDevRate:       defaultFxDevRate,
		RateLockTTL:     defaultRateLockTTL,
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	var err error
	if cfg.AccessTokenTTL, err = durationEnv("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = durationEnv("REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.FxCacheTTL, err = durationEnv("FX_CACHE_TTL", cfg.FxCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.RateLockTTL, err = durationEnv("RATE_LOCK_TTL", cfg.RateLockTTL); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("FX_DEV_RATE"); v != "" {
		rate, parseErr := strconv.ParseFloat(v, 64)
		if parseErr != nil || rate <= 0 {
			return Config{}, fmt.Errorf("invalid FX_DEV_RATE: %q", v)
		}
		cfg.FxDevRate = rate
	}

	switch cfg.FxProvider {
	case FxProviderHTTP, FxProviderStatic:
	default:
		return Config{}, fmt.Errorf("invalid FX_PROVIDER: %q", cfg.FxProvider)
	}

	if cfg.FxProvider == FxProviderHTTP && cfg.FxRateURL == "" && !isDev(cfg.Env) {
		return Config{}, fmt.Errorf("FX_RATE_URL must be set when FX_PROVIDER=http and APP_ENV=%s", cfg.Env)
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the configured environment is a development one.
func (c Config) IsDev() bool {
	return isDev(c.Env)
}

func isDev(env string) bool {
	switch env {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
