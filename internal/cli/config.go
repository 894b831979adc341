package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Credential variables read from the environment or a .env file.
const (
	EnvAccessKey = "AWS_ACCESS_KEY"
	EnvSecretKey = "AWS_SECRET_ACCESS_KEY"

	// EnvPrefix prefixes every other setting, e.g. S3TRANSFER_REGION.
	EnvPrefix = "S3TRANSFER"
)

// Config is the resolved command-line configuration.
//
// Precedence (highest to lowest): flags, environment, config file, defaults.
type Config struct {
	AccessKey string
	SecretKey string

	Region    string
	Endpoint  string
	PathStyle bool
	Proxy     string

	Concurrency int
	MaxRetries  int
	PartTimeout time.Duration
	Timeout     time.Duration
	ACL         string

	LogLevel  string
	LogFormat string

	MetricsTextfile string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("region", "us-east-1")
	v.SetDefault("max-retries", 10)
	v.SetDefault("acl", "private")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
}

// loadDotEnv loads path into the process environment when it exists.
// Variables already set are not overridden.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// loadConfig resolves the configuration from flags, environment and an
// optional config file.
func loadConfig(v *viper.Viper, flags *pflag.FlagSet, configFile string) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// The credential variables keep their conventional names.
	if err := v.BindEnv("access-key", EnvAccessKey); err != nil {
		return nil, err
	}
	if err := v.BindEnv("secret-key", EnvSecretKey); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		AccessKey:       v.GetString("access-key"),
		SecretKey:       v.GetString("secret-key"),
		Region:          v.GetString("region"),
		Endpoint:        v.GetString("endpoint"),
		PathStyle:       v.GetBool("path-style"),
		Proxy:           v.GetString("proxy"),
		Concurrency:     v.GetInt("concurrency"),
		MaxRetries:      v.GetInt("max-retries"),
		PartTimeout:     v.GetDuration("part-timeout"),
		Timeout:         v.GetDuration("timeout"),
		ACL:             v.GetString("acl"),
		LogLevel:        v.GetString("log-level"),
		LogFormat:       v.GetString("log-format"),
		MetricsTextfile: v.GetString("metrics-textfile"),
	}
	return cfg, nil
}

// Validate checks the settings every transfer needs.
func (c *Config) Validate() error {
	var missing []string
	if c.AccessKey == "" {
		missing = append(missing, EnvAccessKey)
	}
	if c.SecretKey == "" {
		missing = append(missing, EnvSecretKey)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: set %s", strings.Join(missing, " and "))
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries cannot be negative")
	}
	return nil
}
