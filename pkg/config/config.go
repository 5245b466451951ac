package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/MalkIPP/openfisca-core/pkg/errors"
)

// EnvPrefix prefixes the environment variables read by Viper
const EnvPrefix = "OPENFISCA"

// EngineConfig is the configuration of a resolution run.
type EngineConfig struct {
	// Name labels the table in logs and metrics
	Name string `yaml:"name" mapstructure:"name"`

	// Registry is the path of the column registry file
	Registry string `yaml:"registry" mapstructure:"registry"`

	Source SourceConfig `yaml:"source" mapstructure:"source"`

	// Policies maps variable names to "flood" or "roles". When empty the
	// built-in household-uniform set is used.
	Policies map[string]string `yaml:"policies,omitempty" mapstructure:"policies"`

	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
}

// SourceConfig locates the survey data
type SourceConfig struct {
	// Driver is sqlite, pgx or mysql
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
	// Layout is flat or split
	Layout string `yaml:"layout" mapstructure:"layout"`
	// Tables maps entity keys to table names
	Tables map[string]string `yaml:"tables,omitempty" mapstructure:"tables"`
	// Subset restricts the survey to these SubsetEntity identifiers
	Subset       []int64       `yaml:"subset,omitempty" mapstructure:"subset"`
	SubsetEntity string        `yaml:"subset_entity" mapstructure:"subset_entity"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// LoggingConfig selects the log level and encoding
type LoggingConfig struct {
	Level    string `yaml:"level" mapstructure:"level"`
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

// TracingConfig selects the trace exporter
type TracingConfig struct {
	// Exporter is stdout or none
	Exporter     string  `yaml:"exporter" mapstructure:"exporter"`
	SamplingRate float64 `yaml:"sampling_rate" mapstructure:"sampling_rate"`
}

// NewEngineConfig returns a configuration with every default set.
func NewEngineConfig() *EngineConfig {
	return &EngineConfig{
		Name: "survey",
		Source: SourceConfig{
			Driver:  "sqlite",
			Layout:  "split",
			Timeout: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Tracing: TracingConfig{
			Exporter:     "none",
			SamplingRate: 1,
		},
	}
}

// Validate checks the configuration for correctness.
func (c *EngineConfig) Validate() error {
	switch c.Source.Driver {
	case "sqlite", "pgx", "mysql":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported source driver %q", c.Source.Driver)
	}
	if c.Source.DSN == "" {
		return errors.New(errors.ErrorTypeConfig, "source dsn is required")
	}
	switch strings.ToLower(c.Source.Layout) {
	case "flat", "split":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown layout %q", c.Source.Layout)
	}
	if c.Source.Timeout < 0 {
		return errors.New(errors.ErrorTypeConfig, "source timeout cannot be negative")
	}
	if c.Registry == "" {
		return errors.New(errors.ErrorTypeConfig, "registry file is required")
	}
	for name, p := range c.Policies {
		switch strings.ToLower(p) {
		case "flood", "roles":
		default:
			return errors.Newf(errors.ErrorTypeConfig, "unknown policy %q", p).WithDetail("variable", name)
		}
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return errors.New(errors.ErrorTypeConfig, "sampling_rate must be within [0, 1]")
	}
	return nil
}

// LoadEngine reads an engine configuration from a YAML file, with ${ENV}
// substitution, on top of the defaults.
func LoadEngine(path string) (*EngineConfig, error) {
	cfg := NewEngineConfig()
	if err := Load(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadViper loads an engine configuration through v. path may be empty
// when every setting comes from the environment or from flags bound to v.
func ReadViper(v *viper.Viper, path string) (*EngineConfig, error) {
	defaults := NewEngineConfig()
	v.SetDefault("name", defaults.Name)
	v.SetDefault("source.driver", defaults.Source.Driver)
	v.SetDefault("source.dsn", "")
	v.SetDefault("source.layout", defaults.Source.Layout)
	v.SetDefault("source.subset_entity", "")
	v.SetDefault("source.timeout", defaults.Source.Timeout)
	v.SetDefault("registry", "")
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.encoding", defaults.Logging.Encoding)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.sampling_rate", defaults.Tracing.SamplingRate)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config").WithDetail("path", path)
		}
	}

	cfg := &EngineConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
