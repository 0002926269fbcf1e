// Package config loads froidapi settings from config.toml and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       appConfig       `toml:"app" mapstructure:"app"`
	Debug     bool            `toml:"debug" mapstructure:"debug"`
	Server    serverConfig    `toml:"server" mapstructure:"server"`
	CORS      corsConfig      `toml:"cors" mapstructure:"cors"`
	Site      siteConfig      `toml:"site" mapstructure:"site"`
	DB        dbConfig        `toml:"db" mapstructure:"db"`
	Cache     cacheConfig     `toml:"cache" mapstructure:"cache"`
	Email     emailConfig     `toml:"email" mapstructure:"email"`
	API       apiConfig       `toml:"api" mapstructure:"api"`
	RateLimit rateLimitConfig `toml:"ratelimit" mapstructure:"ratelimit"`
}

type appConfig struct {
	Name        string `toml:"name" mapstructure:"name"`
	Version     string `toml:"version" mapstructure:"version"`
	Description string `toml:"description" mapstructure:"description"`
	Contact     string `toml:"contact" mapstructure:"contact"`
	BaseURL     string `toml:"base_url" mapstructure:"base_url"` // Public URL, used in emails
}

type serverConfig struct {
	Port       int  `toml:"port" mapstructure:"port"`
	TrustProxy bool `toml:"trust_proxy" mapstructure:"trust_proxy"` // Behind Cloud Run or a load balancer
}

type corsConfig struct {
	Origins     []string `toml:"origins" mapstructure:"origins"`
	Methods     []string `toml:"methods" mapstructure:"methods"`
	Headers     []string `toml:"headers" mapstructure:"headers"`
	Credentials bool     `toml:"credentials" mapstructure:"credentials"`
}

type siteConfig struct {
	BaseURL   string        `toml:"base_url" mapstructure:"base_url"`
	UserAgent string        `toml:"user_agent" mapstructure:"user_agent"`
	Timeout   time.Duration `toml:"timeout" mapstructure:"timeout"`
	Attempts  uint          `toml:"attempts" mapstructure:"attempts"`
}

type dbConfig struct {
	Path string `toml:"path" mapstructure:"path"`
}

type cacheConfig struct {
	Bucket    string        `toml:"bucket" mapstructure:"bucket"`
	LocalPath string        `toml:"local_path" mapstructure:"local_path"`
	TTL       time.Duration `toml:"ttl" mapstructure:"ttl"`
}

type emailConfig struct {
	Provider        string `toml:"provider" mapstructure:"provider"` // mock, gmail or brevo
	CredentialsJSON string `toml:"credentials_json" mapstructure:"credentials_json"`
	BrevoAPIKey     string `toml:"brevo_api_key" mapstructure:"brevo_api_key"`
	From            string `toml:"from" mapstructure:"from"`
}

type apiConfig struct {
	RequireToken bool `toml:"require_token" mapstructure:"require_token"`
}

type rateLimitConfig struct {
	Requests int           `toml:"requests" mapstructure:"requests"`
	Window   time.Duration `toml:"window" mapstructure:"window"`
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "FroidAPI")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.description", "Unofficial REST API for farsroid.com")
	v.SetDefault("app.contact", "")
	v.SetDefault("app.base_url", "http://localhost:8080")

	v.SetDefault("debug", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("cors.origins", []string{"*"})
	v.SetDefault("cors.methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.headers", []string{"Authorization", "Content-Type"})
	v.SetDefault("cors.credentials", false)

	v.SetDefault("site.base_url", "https://www.farsroid.com")
	v.SetDefault("site.user_agent", "")
	v.SetDefault("site.timeout", 30*time.Second)
	v.SetDefault("site.attempts", 5)

	v.SetDefault("db.path", "data/froidapi.db")

	v.SetDefault("cache.bucket", "")
	v.SetDefault("cache.local_path", "./data")
	v.SetDefault("cache.ttl", time.Hour)

	v.SetDefault("email.provider", "mock")
	v.SetDefault("email.credentials_json", "")
	v.SetDefault("email.brevo_api_key", "")
	v.SetDefault("email.from", "")

	v.SetDefault("api.require_token", false)

	v.SetDefault("ratelimit.requests", 10)
	v.SetDefault("ratelimit.window", time.Minute)
}

// Load reads config.toml from the given directories (the working directory and
// /etc/froidapi/ when none are given) and overlays FROID_* environment
// variables. A missing config file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if len(paths) == 0 {
		paths = []string{".", "/etc/froidapi/"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("FROID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Deployment platforms set these without a prefix.
	if url := os.Getenv("DATABASE_URL"); url != "" {
		v.Set("db.path", url)
	}
	if port := os.Getenv("PORT"); port != "" {
		v.Set("server.port", port)
	}
	if bucket := os.Getenv("STORAGE_BUCKET"); bucket != "" {
		v.Set("cache.bucket", bucket)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Site.Attempts < 1 {
		return fmt.Errorf("site.attempts must be positive, got %d", c.Site.Attempts)
	}
	if c.RateLimit.Requests < 1 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit.requests and ratelimit.window must be positive, got %d per %s",
			c.RateLimit.Requests, c.RateLimit.Window)
	}
	switch c.Email.Provider {
	case "mock", "gmail":
	case "brevo":
		if c.Email.BrevoAPIKey == "" {
			return errors.New("email.brevo_api_key is required for the brevo provider")
		}
	default:
		return fmt.Errorf("unknown email.provider %q", c.Email.Provider)
	}
	return nil
}
