package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything the handler needs, read once at process start
type Config struct {
	// ServiceArns is the comma-separated list of services to reconcile.
	// Read from ECS_SERVICE_ARN.
	ServiceArns string `mapstructure:"ecs_service_arn"`
	// TrimSpace trims whitespace around each service entry and drops empty
	// entries. When false the list is split on commas verbatim.
	TrimSpace bool `mapstructure:"scaler_trim_space"`
	// ContinueOnError keeps reconciling the remaining services after a backend
	// failure instead of aborting the invocation.
	ContinueOnError bool `mapstructure:"scaler_continue_on_error"`
	// MetricsNamespace enables CloudWatch adjustment metrics when set
	MetricsNamespace string `mapstructure:"scaler_metrics_namespace"`
	// Region overrides the SDK default region resolution
	Region string `mapstructure:"aws_region"`

	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		TrimSpace:       false,
		ContinueOnError: false,
		LogLevel:        "info",
		LogJSON:         false,
	}
}

// SetDefaults registers every key on v so AutomaticEnv can resolve it
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("ecs_service_arn", defaults.ServiceArns)
	v.SetDefault("scaler_trim_space", defaults.TrimSpace)
	v.SetDefault("scaler_continue_on_error", defaults.ContinueOnError)
	v.SetDefault("scaler_metrics_namespace", defaults.MetricsNamespace)
	v.SetDefault("aws_region", defaults.Region)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_json", defaults.LogJSON)
}

// New returns a viper instance wired to the process environment
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return v
}

// Load unmarshals v into a Config
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing configuration: %w", err)
	}
	return cfg, nil
}

// FromEnv loads the configuration from environment variables
func FromEnv() (*Config, error) {
	return Load(New())
}

// ServiceList returns the configured services in list order
func (c *Config) ServiceList() []string {
	return SplitServices(c.ServiceArns, c.TrimSpace)
}

// SplitServices splits a comma-separated service list. Without trim the
// result matches a plain split on ",", including empty and padded entries.
func SplitServices(list string, trim bool) []string {
	if list == "" {
		return nil
	}

	items := strings.Split(list, ",")
	if !trim {
		return items
	}

	services := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		services = append(services, item)
	}
	return services
}
