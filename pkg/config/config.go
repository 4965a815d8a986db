package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	appErrors "github.com/altavia-air/altavia-api/pkg/errors"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Registry  RegistryConfig
	Audit     AuditConfig
	CORS      CORSConfig
	Log       LogConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds signing key material and token lifetimes. Lifetimes are
// fixed at mint time and never extended in place.
type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
	Audience      []string
}

// TierConfig is one token-bucket tier: capacity tokens refilled at
// RefillPerMinute spread evenly over the minute.
type TierConfig struct {
	Capacity        int
	RefillPerMinute int
}

// RateLimitConfig defines the per-tier bucket parameters and the idle period
// after which unused buckets are evicted.
type RateLimitConfig struct {
	Public       TierConfig
	Auth         TierConfig
	BookingWrite TierConfig
	Payment      TierConfig
	IdleEviction time.Duration
}

// RegistryConfig tunes the refresh-token registry. Backend is "memory" or
// "redis"; MaxEntries bounds the in-memory store.
type RegistryConfig struct {
	Backend         string
	MaxEntries      int
	CleanupInterval time.Duration
}

// AuditConfig tunes the audit dispatcher buffer.
type AuditConfig struct {
	BufferSize int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:        v.GetString("JWT_SECRET"),
		AccessExpiry:  parseDuration(v.GetString("JWT_ACCESS_EXPIRATION"), 15*time.Minute),
		RefreshExpiry: parseDuration(v.GetString("JWT_REFRESH_EXPIRATION"), 7*24*time.Hour),
		Issuer:        v.GetString("JWT_ISSUER"),
		Audience:      splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.RateLimit = RateLimitConfig{
		Public:       TierConfig{Capacity: v.GetInt("RATE_PUBLIC_CAPACITY"), RefillPerMinute: v.GetInt("RATE_PUBLIC_REFILL")},
		Auth:         TierConfig{Capacity: v.GetInt("RATE_AUTH_CAPACITY"), RefillPerMinute: v.GetInt("RATE_AUTH_REFILL")},
		BookingWrite: TierConfig{Capacity: v.GetInt("RATE_BOOKING_CAPACITY"), RefillPerMinute: v.GetInt("RATE_BOOKING_REFILL")},
		Payment:      TierConfig{Capacity: v.GetInt("RATE_PAYMENT_CAPACITY"), RefillPerMinute: v.GetInt("RATE_PAYMENT_REFILL")},
		IdleEviction: parseDuration(v.GetString("RATE_IDLE_EVICTION"), time.Hour),
	}

	cfg.Registry = RegistryConfig{
		Backend:         v.GetString("REGISTRY_BACKEND"),
		MaxEntries:      v.GetInt("REGISTRY_MAX_ENTRIES"),
		CleanupInterval: parseDuration(v.GetString("REGISTRY_CLEANUP_INTERVAL"), 5*time.Minute),
	}

	cfg.Audit = AuditConfig{
		BufferSize: v.GetInt("AUDIT_BUFFER_SIZE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects configurations the process must not start with. This is
// the only place a ConfigurationError may abort startup; nothing downstream
// checks key material per-request.
func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return appErrors.Clone(appErrors.ErrConfiguration, "JWT_SECRET must be set")
	}
	if c.Env == EnvProduction && c.JWT.Secret == devSecret {
		return appErrors.Clone(appErrors.ErrConfiguration, "JWT_SECRET must not use the development default in production")
	}
	if c.JWT.AccessExpiry <= 0 || c.JWT.RefreshExpiry <= c.JWT.AccessExpiry {
		return appErrors.Clone(appErrors.ErrConfiguration, "token expirations must be positive and refresh must outlive access")
	}
	switch c.Registry.Backend {
	case "memory", "redis":
	default:
		return appErrors.Clone(appErrors.ErrConfiguration, "REGISTRY_BACKEND must be memory or redis")
	}
	return nil
}

const devSecret = "dev_secret"

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "altavia_booking")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", devSecret)
	v.SetDefault("JWT_ACCESS_EXPIRATION", "15m")
	v.SetDefault("JWT_REFRESH_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "altavia-api")
	v.SetDefault("JWT_AUDIENCE", "altavia-clients")

	v.SetDefault("RATE_PUBLIC_CAPACITY", 100)
	v.SetDefault("RATE_PUBLIC_REFILL", 100)
	v.SetDefault("RATE_AUTH_CAPACITY", 10)
	v.SetDefault("RATE_AUTH_REFILL", 10)
	v.SetDefault("RATE_BOOKING_CAPACITY", 10)
	v.SetDefault("RATE_BOOKING_REFILL", 10)
	v.SetDefault("RATE_PAYMENT_CAPACITY", 5)
	v.SetDefault("RATE_PAYMENT_REFILL", 5)
	v.SetDefault("RATE_IDLE_EVICTION", "1h")

	v.SetDefault("REGISTRY_BACKEND", "memory")
	v.SetDefault("REGISTRY_MAX_ENTRIES", 100000)
	v.SetDefault("REGISTRY_CLEANUP_INTERVAL", "5m")

	v.SetDefault("AUDIT_BUFFER_SIZE", 1024)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
