package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/audit-flash/internal/db"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Redis       RedisConfig       `yaml:"redis" mapstructure:"redis"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Registries  RegistriesConfig  `yaml:"registries" mapstructure:"registries"`
	Acquisition AcquisitionConfig `yaml:"acquisition" mapstructure:"acquisition"`
	Regulation  RegulationConfig  `yaml:"regulation" mapstructure:"regulation"`
	Condo       CondoConfig       `yaml:"condo" mapstructure:"condo"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	// Driver is memory, sqlite or postgres.
	Driver      string         `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string         `yaml:"database_url" mapstructure:"database_url"`
	Pool        *db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// RedisConfig moves sessions to Redis when URL is set.
type RedisConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	SweepInterval  string   `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RegistryConfig configures one upstream registry client.
type RegistryConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	// RadiusMeters bounds proximity searches (dpe, dvf).
	RadiusMeters int `yaml:"radius_m" mapstructure:"radius_m"`
}

// GeocodeConfig configures the BAN client and its result cache.
type GeocodeConfig struct {
	RegistryConfig `yaml:",inline" mapstructure:",squash"`
	MinScore       float64 `yaml:"min_score" mapstructure:"min_score"`
	CacheTTLHours  int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// RegistriesConfig groups the registry clients.
type RegistriesConfig struct {
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Cadastre RegistryConfig `yaml:"cadastre" mapstructure:"cadastre"`
	DPE      RegistryConfig `yaml:"dpe" mapstructure:"dpe"`
	DVF      RegistryConfig `yaml:"dvf" mapstructure:"dvf"`
}

// AcquisitionConfig tunes the registry fan-out.
type AcquisitionConfig struct {
	CallTimeoutMs     int `yaml:"call_timeout_ms" mapstructure:"call_timeout_ms"`
	DeadlineMs        int `yaml:"deadline_ms" mapstructure:"deadline_ms"`
	MaxAttempts       int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs  int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold  int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs  int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
	SessionTTLMinutes int `yaml:"session_ttl_minutes" mapstructure:"session_ttl_minutes"`
}

// CallTimeout is the per-attempt registry timeout.
func (a AcquisitionConfig) CallTimeout() time.Duration {
	return time.Duration(a.CallTimeoutMs) * time.Millisecond
}

// Deadline bounds a whole acquisition round.
func (a AcquisitionConfig) Deadline() time.Duration {
	return time.Duration(a.DeadlineMs) * time.Millisecond
}

// SessionTTL is how long an untouched session lives.
func (a AcquisitionConfig) SessionTTL() time.Duration {
	return time.Duration(a.SessionTTLMinutes) * time.Minute
}

// RegulationConfig points at an optional YAML overlay of the regulatory table.
type RegulationConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// CondoConfig configures RNIC imports.
type CondoConfig struct {
	Charset   string `yaml:"charset" mapstructure:"charset"`
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
	Sheet     string `yaml:"sheet" mapstructure:"sheet"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "audit.db")
	v.SetDefault("redis.url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.sweep_interval", "10m")
	v.SetDefault("registries.geocode.base_url", "https://api-adresse.data.gouv.fr")
	v.SetDefault("registries.geocode.rate_limit", 40)
	v.SetDefault("registries.geocode.min_score", 0.5)
	v.SetDefault("registries.geocode.cache_ttl_hours", 24*30)
	v.SetDefault("registries.cadastre.base_url", "https://apicarto.ign.fr")
	v.SetDefault("registries.cadastre.rate_limit", 10)
	v.SetDefault("registries.dpe.base_url", "https://data.ademe.fr/data-fair/api/v1/datasets/dpe03existant")
	v.SetDefault("registries.dpe.rate_limit", 10)
	v.SetDefault("registries.dpe.radius_m", 50)
	v.SetDefault("registries.dvf.base_url", "https://api.cquest.org")
	v.SetDefault("registries.dvf.rate_limit", 5)
	v.SetDefault("registries.dvf.radius_m", 500)
	v.SetDefault("acquisition.call_timeout_ms", 8000)
	v.SetDefault("acquisition.deadline_ms", 10000)
	v.SetDefault("acquisition.max_attempts", 3)
	v.SetDefault("acquisition.initial_backoff_ms", 200)
	v.SetDefault("acquisition.max_backoff_ms", 2000)
	v.SetDefault("acquisition.failure_threshold", 5)
	v.SetDefault("acquisition.reset_timeout_secs", 30)
	v.SetDefault("acquisition.session_ttl_minutes", 24*60)
	v.SetDefault("regulation.path", "")
	v.SetDefault("condo.charset", "")
	v.SetDefault("condo.delimiter", ";")
	v.SetDefault("condo.batch_size", 1000)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are serve,
// audit (the one-shot lifecycle commands) and import. Every problem is
// reported at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "memory", "sqlite", "postgres":
		if c.Store.Driver != "memory" && c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for "+c.Store.Driver)
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of memory, sqlite, postgres", c.Store.Driver))
	}

	switch mode {
	case "serve", "audit":
		a := c.Acquisition
		if a.CallTimeoutMs <= 0 || a.DeadlineMs <= 0 {
			errs = append(errs, "acquisition timeouts must be > 0")
		} else if a.CallTimeoutMs > a.DeadlineMs {
			errs = append(errs, "acquisition.call_timeout_ms must not exceed deadline_ms")
		}
		if a.SessionTTLMinutes <= 0 {
			errs = append(errs, "acquisition.session_ttl_minutes must be > 0")
		}
		if mode == "serve" {
			if c.Server.Port <= 0 {
				errs = append(errs, "server.port must be > 0")
			}
			if d, err := time.ParseDuration(c.Server.SweepInterval); err != nil || d <= 0 {
				errs = append(errs, "server.sweep_interval must be a positive duration")
			}
		}
	case "import":
		if c.Store.Driver == "memory" {
			errs = append(errs, "condo import needs a sqlite or postgres store")
		}
		if len([]rune(c.Condo.Delimiter)) > 1 {
			errs = append(errs, "condo.delimiter must be a single character")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
