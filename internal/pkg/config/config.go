package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. It is built once at startup
// and threaded through constructors; nothing reads the environment after
// Load returns.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Geocode   GeocodeConfig   `mapstructure:"geocode"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Proximity ProximityConfig `mapstructure:"proximity"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// GeocodeConfig configures the geocode providers and regional biasing.
type GeocodeConfig struct {
	GoogleAPIKey   string `mapstructure:"google_api_key"`
	BiasCity       string `mapstructure:"bias_city"`
	BiasRegion     string `mapstructure:"bias_region"`
	CountryCode    string `mapstructure:"country_code"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RoutingConfig configures the directions provider.
type RoutingConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// ProximityConfig configures the intersection check.
type ProximityConfig struct {
	DefaultRadiusMeters float64 `mapstructure:"default_radius_m"`
	MaxRadiusMeters     float64 `mapstructure:"max_radius_m"`
	// DistanceMode is "point" (vertex-wise, the production behavior) or
	// "segment" (cross-track point-to-segment distance).
	DistanceMode string `mapstructure:"distance_mode"`
}

// LimitsConfig configures the usage governor caps.
type LimitsConfig struct {
	ProviderDailyCap   int `mapstructure:"provider_daily_cap"`
	ProximityHourlyCap int `mapstructure:"proximity_hourly_cap"`
	ContactHourlyCap   int `mapstructure:"contact_hourly_cap"`
	LoginHourlyCap     int `mapstructure:"login_hourly_cap"`
}

// CacheConfig configures polyline cache lifetime and rebuild pacing.
type CacheConfig struct {
	PolylineTTLMinutes     int `mapstructure:"polyline_ttl_minutes"`
	RebuildCooldownMinutes int `mapstructure:"rebuild_cooldown_minutes"`
}

func (c CacheConfig) PolylineTTL() time.Duration {
	return time.Duration(c.PolylineTTLMinutes) * time.Minute
}

func (c CacheConfig) RebuildCooldown() time.Duration {
	return time.Duration(c.RebuildCooldownMinutes) * time.Minute
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "transit")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "nearbus")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("geocode.google_api_key", "")
	v.SetDefault("geocode.bias_city", "Vijayawada")
	v.SetDefault("geocode.bias_region", "Andhra Pradesh")
	v.SetDefault("geocode.country_code", "in")
	v.SetDefault("geocode.timeout_seconds", 5)
	v.SetDefault("routing.timeout_seconds", 10)
	v.SetDefault("proximity.default_radius_m", 1000)
	v.SetDefault("proximity.max_radius_m", 10000)
	v.SetDefault("proximity.distance_mode", "point")
	v.SetDefault("limits.provider_daily_cap", 2500)
	v.SetDefault("limits.proximity_hourly_cap", 20)
	v.SetDefault("limits.contact_hourly_cap", 10)
	v.SetDefault("limits.login_hourly_cap", 5)
	v.SetDefault("cache.polyline_ttl_minutes", 120)
	v.SetDefault("cache.rebuild_cooldown_minutes", 10)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: NEARBUS_GEOCODE_GOOGLE_API_KEY → geocode.google_api_key
	v.SetEnvPrefix("NEARBUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Geocode.TimeoutSeconds <= 0 {
		errs = append(errs, "geocode.timeout_seconds must be positive")
	}
	if c.Routing.TimeoutSeconds <= 0 {
		errs = append(errs, "routing.timeout_seconds must be positive")
	}
	if c.Proximity.DefaultRadiusMeters <= 0 {
		errs = append(errs, "proximity.default_radius_m must be positive")
	}
	if c.Proximity.MaxRadiusMeters < c.Proximity.DefaultRadiusMeters {
		errs = append(errs, "proximity.max_radius_m must be >= proximity.default_radius_m")
	}
	if m := c.Proximity.DistanceMode; m != "point" && m != "segment" {
		errs = append(errs, fmt.Sprintf("proximity.distance_mode must be point or segment, got %q", m))
	}
	if c.Limits.ProviderDailyCap <= 0 {
		errs = append(errs, "limits.provider_daily_cap must be positive")
	}
	if c.Limits.ProximityHourlyCap <= 0 {
		errs = append(errs, "limits.proximity_hourly_cap must be positive")
	}
	if c.Limits.ContactHourlyCap <= 0 {
		errs = append(errs, "limits.contact_hourly_cap must be positive")
	}
	if c.Limits.LoginHourlyCap <= 0 {
		errs = append(errs, "limits.login_hourly_cap must be positive")
	}
	if c.Cache.PolylineTTLMinutes <= 0 {
		errs = append(errs, "cache.polyline_ttl_minutes must be positive")
	}
	if c.Cache.RebuildCooldownMinutes <= 0 {
		errs = append(errs, "cache.rebuild_cooldown_minutes must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
