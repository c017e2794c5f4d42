// Package config loads instance and transfer settings from a file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/flowtransfer/pkg/apiclient"
	"github.com/dukex/flowtransfer/pkg/transfer"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type HTTP struct {
	Timeout     time.Duration `mapstructure:"timeout"      validate:"gt=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
	BaseDelay   time.Duration `mapstructure:"base_delay"   validate:"gte=0"`
}

// Config holds everything a transfer needs besides per-run flags.
type Config struct {
	Source      apiclient.Instance `mapstructure:"source"`
	Target      apiclient.Instance `mapstructure:"target"`
	HTTP        HTTP               `mapstructure:"http"`
	Transfer    transfer.Options   `mapstructure:"transfer"     validate:"-"`
	OutputDir   string             `mapstructure:"output_dir"   validate:"required"`
	PluginsPath string             `mapstructure:"plugins_path"`
	Schedule    string             `mapstructure:"schedule"`
	EventBus    string             `mapstructure:"event_bus"    validate:"omitempty,oneof=none gochannel kafka"`
	Brokers     string             `mapstructure:"kafka_brokers"`
}

// envBindings maps config keys to the environment variables overriding them.
var envBindings = map[string]string{
	"source.url":     "SOURCE_URL",
	"source.api_key": "SOURCE_API_KEY",
	"target.url":     "TARGET_URL",
	"target.api_key": "TARGET_API_KEY",
	"output_dir":     "OUTPUT_DIR",
	"plugins_path":   "PLUGINS_PATH",
	"schedule":       "SCHEDULE",
	"event_bus":      "EVENT_BUS",
	"kafka_brokers":  "KAFKA_BROKERS",
}

func defaults(v *viper.Viper) {
	v.SetDefault("source.name", "source")
	v.SetDefault("target.name", "target")
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.base_delay", "1s")
	v.SetDefault("output_dir", "./reports")
	v.SetDefault("plugins_path", "./plugins")
	v.SetDefault("event_bus", "none")
}

// Load reads the optional config file at path and applies environment overrides.
// Nothing is validated here: flags may still fill missing values.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	for key, env := range envBindings {
		err := v.BindEnv(key, env)
		if err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix("FLOWTRANSFER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		err := v.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var config Config

	err := v.Unmarshal(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// Validate checks that both instances are usable.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields = append(fields, fmt.Sprintf("%s (%s)", fieldErr.Namespace(), fieldErr.Tag()))
	}

	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
}
