package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultEndpoint is the public runs API.
const DefaultEndpoint = "https://api.smith.langchain.com"

// EnvPrefix is prepended to every config key when read from the environment,
// e.g. LANGSMITH_API_KEY.
const EnvPrefix = "LANGSMITH"

// ValidOutputFormats lists the accepted values of the output key.
var ValidOutputFormats = []string{"table", "json", "jsonl", "csv", "yaml"}

// Config represents the effective lsq configuration
type Config struct {
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Project    string        `mapstructure:"project" yaml:"project"`
	Output     string        `mapstructure:"output" yaml:"output"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// DefaultPath returns $XDG_CONFIG_HOME/lsq/config.yml (or the platform equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "lsq", "config.yml")
}

// Load reads configuration from defaults, an optional YAML file and LANGSMITH_*
// environment variables, in increasing order of precedence.
//
// An explicit path must exist. An empty path falls back to DefaultPath, which
// is silently skipped when absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("endpoint", DefaultEndpoint)
	// Unmarshal only sees env vars for keys viper already knows
	v.SetDefault("api_key", "")
	v.SetDefault("project", "default")
	v.SetDefault("output", "table")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("max_retries", 3)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if explicit {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate performs strict validation on the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("endpoint must be an absolute URL, got %q", c.Endpoint)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint scheme must be http or https, got %q", u.Scheme)
	}

	if !IsValidOutputFormat(c.Output) {
		return fmt.Errorf("output must be one of %s, got %q", strings.Join(ValidOutputFormats, ", "), c.Output)
	}

	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}

	return nil
}

// IsValidOutputFormat reports whether format is one of ValidOutputFormats.
func IsValidOutputFormat(format string) bool {
	for _, f := range ValidOutputFormats {
		if f == format {
			return true
		}
	}
	return false
}

// WriteYAML writes the configuration as YAML with the API key masked.
func (c *Config) WriteYAML(w io.Writer) error {
	masked := *c
	masked.APIKey = MaskSecret(c.APIKey)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&masked); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// MaskSecret keeps the last four characters of a secret.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
