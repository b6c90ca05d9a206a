package config

import (
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	StoreDriverJSON = "json"
	StoreDriverBolt = "bolt"
)

// ListenHost is the only interface either server binds to.
const ListenHost = "127.0.0.1"

type ServerConfig struct {
	Environment string `mapstructure:"environment"`
}

type ListenerConfig struct {
	Port int `mapstructure:"port"`
}

type BackendConfig struct {
	Host string `mapstructure:"host"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type LivenessConfig struct {
	Timeout string `mapstructure:"timeout"`
}

type BreakerConfig struct {
	Threshold    int    `mapstructure:"threshold"`
	ResetTimeout string `mapstructure:"reset_timeout"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Verbose bool   `mapstructure:"verbose"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Proxy    ListenerConfig `mapstructure:"proxy"`
	Admin    ListenerConfig `mapstructure:"admin"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Store    StoreConfig    `mapstructure:"store"`
	Liveness LivenessConfig `mapstructure:"liveness"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Load builds the configuration from defaults, an optional config.yaml,
// environment variables and the command-line args, in increasing order of
// precedence. args excludes the program name.
func Load(args []string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("proxy.port", 3003)
	v.SetDefault("admin.port", 3004)
	v.SetDefault("backend.host", "localhost")
	v.SetDefault("store.driver", StoreDriverJSON)
	v.SetDefault("store.path", "routes.json")
	v.SetDefault("liveness.timeout", "2s")
	v.SetDefault("breaker.threshold", 0)
	v.SetDefault("breaker.reset_timeout", "5s")
	v.SetDefault("metrics.buffer_size", 1000)
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.verbose", false)

	flags := pflag.NewFlagSet("portrouter", pflag.ContinueOnError)
	configFile := flags.String("config", "", "path to a config file")
	flags.Int("proxy-port", 3003, "proxy listener port")
	flags.Int("admin-port", 3004, "admin listener port")
	flags.String("store", "routes.json", "route store path")
	flags.String("store-driver", StoreDriverJSON, "route store driver (json or bolt)")
	flags.BoolP("verbose", "v", false, "log every request at debug level")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	for key, name := range map[string]string{
		"proxy.port":      "proxy-port",
		"admin.port":      "admin-port",
		"store.path":      "store",
		"store.driver":    "store-driver",
		"logging.verbose": "verbose",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, err
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("logging.verbose", "LOGGING_VERBOSE", "VERBOSE"); err != nil {
		return nil, err
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Debug("config file not found, using defaults, environment and flags")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ProxyAddr() string {
	return net.JoinHostPort(ListenHost, strconv.Itoa(c.Proxy.Port))
}

func (c *Config) AdminAddr() string {
	return net.JoinHostPort(ListenHost, strconv.Itoa(c.Admin.Port))
}

// LogLevel is the effective level; verbose mode forces debug.
func (c *Config) LogLevel() string {
	if c.Logging.Verbose {
		return LogLevelDebug
	}
	return c.Logging.Level
}

// LivenessTimeout and ResetTimeout assume a validated config.
func (c *Config) LivenessTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Liveness.Timeout)
	return d
}

func (c *Config) ResetTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Breaker.ResetTimeout)
	return d
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
				)
			}),
		),
		validation.Field(&c.Proxy, validation.By(validateListener)),
		validation.Field(&c.Admin,
			validation.By(validateListener),
			validation.By(func(value interface{}) error {
				if c.Admin.Port == c.Proxy.Port {
					return validation.NewError("validation_port_conflict", "must differ from the proxy port")
				}
				return nil
			}),
		),
		validation.Field(&c.Backend,
			validation.By(func(value interface{}) error {
				bc, ok := value.(BackendConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a BackendConfig")
				}
				return validation.ValidateStruct(&bc,
					validation.Field(&bc.Host, validation.Required, is.Host),
				)
			}),
		),
		validation.Field(&c.Store,
			validation.By(func(value interface{}) error {
				sc, ok := value.(StoreConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a StoreConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Driver,
						validation.Required,
						validation.In(StoreDriverJSON, StoreDriverBolt),
					),
					validation.Field(&sc.Path, validation.Required),
				)
			}),
		),
		validation.Field(&c.Liveness,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LivenessConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LivenessConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Timeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Breaker,
			validation.By(func(value interface{}) error {
				bc, ok := value.(BreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
				}
				return validation.ValidateStruct(&bc,
					validation.Field(&bc.Threshold, validation.Min(0)),
					validation.Field(&bc.ResetTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.BufferSize, validation.Required, validation.Min(1)),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
	)
}

func validateListener(value interface{}) error {
	lc, ok := value.(ListenerConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a ListenerConfig")
	}
	return validation.ValidateStruct(&lc,
		validation.Field(&lc.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}
	if d <= 0 {
		return validation.NewError("validation_nonpositive_duration", "must be positive")
	}

	return nil
}
