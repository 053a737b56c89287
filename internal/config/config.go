// Package config loads the CLI configuration.
//
// Sources in order of priority: command line flags, WEBSTUFF_* environment variables,
// the .env file and the defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lodego/webstuff/pkg/logger"
)

const (
	EnvPrefix      = "WEBSTUFF"
	DefaultEnvFile = ".env"

	TransportNative = "native"
	TransportHTTP2  = "http2"
	TransportResty  = "resty"
)

// ErrInvalidConfig is wrapped by all validation errors returned by Load.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	BaseURL   string        `mapstructure:"base_url"`
	LogLevel  string        `mapstructure:"log_level"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Transport string        `mapstructure:"transport"`
	NoColor   bool          `mapstructure:"no_color"`
	Trace     bool          `mapstructure:"trace"`
	Dump      bool          `mapstructure:"dump"`
	Telemetry bool          `mapstructure:"telemetry"`
	// Level is parsed from the LogLevel.
	Level logger.Level `mapstructure:"-"`
}

// option binds a config key to a flag, the flag name uses dashes.
type option struct {
	key   string
	value any
	usage string
}

var options = []option{
	{key: "base_url", value: "https://httpbin.org/", usage: "base URL of relative endpoints"},
	{key: "log_level", value: "info", usage: "log level: debug, info, warning, error, critical"},
	{key: "timeout", value: 30 * time.Second, usage: "timeout of a request, 0 means no timeout"},
	{key: "transport", value: TransportNative, usage: "HTTP transport: native, http2, resty"},
	{key: "no_color", value: false, usage: "disable colors"},
	{key: "trace", value: false, usage: "log HTTP requests to stderr"},
	{key: "dump", value: false, usage: "dump HTTP requests and responses to stderr"},
	{key: "telemetry", value: false, usage: "export OpenTelemetry spans and metrics of requests to stderr"},
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// RegisterFlags defines a flag for each config key.
func RegisterFlags(flags *pflag.FlagSet) {
	for _, o := range options {
		switch v := o.value.(type) {
		case string:
			flags.String(flagName(o.key), v, o.usage)
		case bool:
			flags.Bool(flagName(o.key), v, o.usage)
		case time.Duration:
			flags.Duration(flagName(o.key), v, o.usage)
		default:
			panic(fmt.Errorf(`unexpected type "%T" of the config key "%s"`, v, o.key))
		}
	}
}

// Load merges all configuration sources and validates the result.
// The flags can be nil. A missing envFile is ignored.
func Load(flags *pflag.FlagSet, envFile string) (*Config, error) {
	v := viper.New()

	for _, o := range options {
		v.SetDefault(o.key, o.value)
	}

	// The .env file overrides the defaults, it does not modify the process environment
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf(`cannot read env file "%s": %w`, envFile, err)
		}
		for k, val := range values {
			if key, found := strings.CutPrefix(k, EnvPrefix+"_"); found {
				v.SetDefault(strings.ToLower(key), val)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, o := range options {
			if flag := flags.Lookup(flagName(o.key)); flag != nil {
				if err := v.BindPFlag(o.key, flag); err != nil {
					return nil, fmt.Errorf(`cannot bind flag "%s": %w`, flag.Name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	errs := &multierror.Error{ErrorFormat: formatErrors}

	if u, err := url.Parse(c.BaseURL); err != nil {
		errs = multierror.Append(errs, fmt.Errorf(`base_url "%s" is not valid: %w`, c.BaseURL, err))
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = multierror.Append(errs, fmt.Errorf(`base_url "%s" must be an absolute http or https URL`, c.BaseURL))
	}

	if level, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = multierror.Append(errs, err)
	} else {
		c.Level = level
	}

	if c.Timeout < 0 {
		errs = multierror.Append(errs, fmt.Errorf(`timeout "%s" cannot be negative`, c.Timeout))
	}

	switch c.Transport {
	case TransportNative, TransportHTTP2, TransportResty:
	default:
		errs = multierror.Append(errs, fmt.Errorf(`transport "%s" is not supported, use one of: native, http2, resty`, c.Transport))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func formatErrors(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}
