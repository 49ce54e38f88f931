package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Registry  RegistryConfig
	Fetcher   FetcherConfig
	Analytics AnalyticsConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type RegistryConfig struct {
	Path string
}

type FetcherConfig struct {
	// BaseURL is a format string receiving the data source id.
	BaseURL string
	Timeout time.Duration
}

type AnalyticsConfig struct {
	TopN int
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("LEADBOARD")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("registry.path", "domains.json")
	viper.SetDefault("fetcher.baseurl", "https://docs.google.com/spreadsheets/d/%s/export?format=csv&gid=0")
	viper.SetDefault("fetcher.timeout", "30s")
	viper.SetDefault("analytics.topn", 10)
	viper.SetDefault("ratelimit.enabled", true)
	viper.SetDefault("ratelimit.rps", 10)
	viper.SetDefault("ratelimit.burst", 20)

	var cfg Config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if path := os.Getenv("DOMAINS_FILE"); path != "" {
		cfg.Registry.Path = path
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}

	return &cfg, nil
}
