// Package config loads CLI settings from the config file, .env files,
// environment variables and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/satishbabariya/prisma-go-relations/eagerload"
	"github.com/satishbabariya/prisma-go-relations/query/sqlsource"
)

// AppFs is the filesystem used for .env and relation files.
var AppFs = afero.NewOsFs()

const (
	// FileName is the config file name without extension.
	FileName = ".prisma-relations"
	// EnvPrefix prefixes environment overrides, e.g. PRISMA_RELATIONS_PROVIDER.
	EnvPrefix = "PRISMA_RELATIONS"
)

// Keys
const (
	KeyRelationsPath       = "relations_path"
	KeyProvider            = "provider"
	KeyDatabaseURL         = "database_url"
	KeyConcurrency         = "concurrency"
	KeyMaxKeysPerQuery     = "max_keys_per_query"
	KeyDiscriminatorPolicy = "discriminator_policy"
	KeyDebug               = "debug"
)

// Config holds the application configuration
type Config struct {
	RelationsPath       string
	Provider            string
	DatabaseURL         string
	Concurrency         int
	MaxKeysPerQuery     int
	DiscriminatorPolicy eagerload.DiscriminatorPolicy
	Debug               bool
	// ConfigFile is the config file that was read, empty if none.
	ConfigFile string
}

// Defaults registers default values on v.
func Defaults(v *viper.Viper) {
	v.SetDefault(KeyRelationsPath, "relations.yaml")
	v.SetDefault(KeyConcurrency, 1)
	v.SetDefault(KeyMaxKeysPerQuery, 0)
	v.SetDefault(KeyDiscriminatorPolicy, eagerload.DiscriminatorSkip.String())
	v.SetDefault(KeyDebug, false)
}

// Load reads configuration into v. configFile overrides the search of
// ., $HOME and $HOME/.config/prisma-relations.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "prisma-relations"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	Defaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	loadEnvFiles()

	policy, err := eagerload.ParseDiscriminatorPolicy(v.GetString(KeyDiscriminatorPolicy))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RelationsPath:       v.GetString(KeyRelationsPath),
		Provider:            v.GetString(KeyProvider),
		DatabaseURL:         v.GetString(KeyDatabaseURL),
		Concurrency:         v.GetInt(KeyConcurrency),
		MaxKeysPerQuery:     v.GetInt(KeyMaxKeysPerQuery),
		DiscriminatorPolicy: policy,
		Debug:               v.GetBool(KeyDebug),
		ConfigFile:          v.ConfigFileUsed(),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.Provider == "" && cfg.DatabaseURL != "" {
		cfg.Provider = DetectProvider(cfg.DatabaseURL)
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("%s must be at least 1, got %d", KeyConcurrency, cfg.Concurrency)
	}
	return cfg, nil
}

// loadEnvFiles loads .env and then .env.local, which wins. Missing or
// unreadable files are ignored.
func loadEnvFiles() {
	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}
}

// DetectProvider guesses the provider from a connection string.
func DetectProvider(url string) string {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres"
	case strings.Contains(url, "mysql"), strings.Contains(url, "@tcp("):
		return "mysql"
	case strings.Contains(url, "sqlite"), strings.HasPrefix(url, "file:"), url == ":memory:",
		strings.HasSuffix(url, ".db"):
		return "sqlite"
	}
	return "postgres"
}

// Source returns the database settings for sqlsource.
func (c *Config) Source() (sqlsource.Config, error) {
	if c.DatabaseURL == "" {
		return sqlsource.Config{}, fmt.Errorf("no database URL: set %s or %s_DATABASE_URL", KeyDatabaseURL, EnvPrefix)
	}
	url := c.DatabaseURL
	if c.Provider == "mysql" {
		url = strings.TrimPrefix(url, "mysql://")
	}
	return sqlsource.Config{
		Provider:       c.Provider,
		URL:            url,
		MaxConnections: 10,
		MaxIdleTime:    300,
		ConnectTimeout: 10,
	}, nil
}

// ResolverOptions converts the engine settings into eagerload options.
func (c *Config) ResolverOptions() []eagerload.Option {
	return []eagerload.Option{
		eagerload.WithConcurrency(c.Concurrency),
		eagerload.WithMaxKeysPerQuery(c.MaxKeysPerQuery),
		eagerload.WithDiscriminatorPolicy(c.DiscriminatorPolicy),
	}
}
