package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "HSC"

// MinJWTSecretLength is the shortest accepted HS256 signing secret.
const MinJWTSecretLength = 32

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN). postgres:// or a sqlite path.
	DatabaseURL string `mapstructure:"database_url"`

	// Server bind address (host:port)
	ServerAddr string `mapstructure:"server_addr"`

	// Public base URL, used as the token audience
	ServerURL string `mapstructure:"server_url"`

	// Maximum database connection pool size
	MaxDBConnections int `mapstructure:"max_db_connections"`

	// Enable debug logging
	Debug bool `mapstructure:"debug"`

	JWT           JWTConfig           `mapstructure:"jwt"`
	LoginRate     RateConfig          `mapstructure:"login_rate"`
	CORS          CORSConfig          `mapstructure:"cors"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Retention     RetentionConfig     `mapstructure:"retention"`
}

// JWTConfig configures the tokens issued by POST /auth/login.
type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// RateConfig is a token bucket: PerSecond refill, Burst capacity.
type RateConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ObservabilityConfig holds OpenTelemetry settings.
// An empty OTLPEndpoint disables trace export.
type ObservabilityConfig struct {
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
	Insecure       bool   `mapstructure:"insecure"`
}

// RetentionConfig holds defaults for the rgpd commands.
type RetentionConfig struct {
	Years             int `mapstructure:"years"`
	NotificationsDays int `mapstructure:"notifications_days"`
	SMSDays           int `mapstructure:"sms_days"`
	AuditDays         int `mapstructure:"audit_days"`
}

// keys lists every leaf key. Viper's AutomaticEnv does not surface nested
// keys through Unmarshal unless they are bound explicitly.
var keys = []string{
	"database_url",
	"server_addr",
	"server_url",
	"max_db_connections",
	"debug",
	"jwt.secret",
	"jwt.issuer",
	"jwt.ttl",
	"login_rate.per_second",
	"login_rate.burst",
	"cors.allowed_origins",
	"observability.otlp_endpoint",
	"observability.service_name",
	"observability.service_version",
	"observability.environment",
	"observability.insecure",
	"retention.years",
	"retention.notifications_days",
	"retention.sms_days",
	"retention.audit_days",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_addr", "localhost:8080")
	v.SetDefault("max_db_connections", 25)
	v.SetDefault("debug", false)
	v.SetDefault("jwt.issuer", "hscapi")
	v.SetDefault("jwt.ttl", "8h")
	v.SetDefault("login_rate.per_second", 1.0)
	v.SetDefault("login_rate.burst", 5)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("observability.service_name", "hscapi")
	v.SetDefault("observability.service_version", "dev")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("retention.years", 3)
	v.SetDefault("retention.notifications_days", 90)
	v.SetDefault("retention.sms_days", 180)
	v.SetDefault("retention.audit_days", 365)
}

// Load reads configuration from the global viper instance: defaults, then
// any config file already read by the caller, then HSC_ environment
// variables (highest precedence after flags).
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against an explicit viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	cfg := &Config{}
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required (env: %s_DATABASE_URL)", EnvPrefix)
	}
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required (env: %s_SERVER_URL)", EnvPrefix)
	}
	if c.MaxDBConnections <= 0 {
		return fmt.Errorf("max_db_connections must be positive, got %d", c.MaxDBConnections)
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("jwt.ttl must be positive, got %s", c.JWT.TTL)
	}
	if c.Retention.Years <= 0 {
		return fmt.Errorf("retention.years must be positive, got %d", c.Retention.Years)
	}
	return nil
}

// ValidateServe adds the checks that only matter when serving HTTP.
func (c *Config) ValidateServe() error {
	if len(c.JWT.Secret) < MinJWTSecretLength {
		return fmt.Errorf("jwt.secret must be at least %d bytes (env: %s_JWT_SECRET)", MinJWTSecretLength, EnvPrefix)
	}
	if c.LoginRate.PerSecond <= 0 || c.LoginRate.Burst <= 0 {
		return fmt.Errorf("login_rate requires positive per_second and burst")
	}
	return nil
}
