// Package config loads service configuration from the environment. Both
// binaries fail fast on a half-configured state: a missing signing secret or
// partial OAuth credentials aborts startup.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Auth configures the identity service binary.
type Auth struct {
	Env     string `env:"APP_ENV" env-default:"development"`
	Address string `env:"AUTH_ADDR" env-default:":5001"`

	PGDSN string `env:"PG_DSN"`

	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"JWT_EXPIRES_IN" env-default:"720h"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisUsername string `env:"REDIS_USERNAME"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"GOOGLE_CALLBACK_URL"`

	FrontendURL    string   `env:"FRONTEND_URL" env-default:"http://localhost:5173"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" env-separator:","`

	RateBurst  int `env:"RATE_BURST" env-default:"20"`
	RatePerSec int `env:"RATE_PER_SEC" env-default:"10"`

	ReadTimeout  time.Duration `env:"READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" env-default:"60s"`
}

// Development reports whether the service runs in local development, which
// relaxes the Secure attribute on the auth cookie.
func (c *Auth) Development() bool {
	return strings.EqualFold(c.Env, "development") || strings.EqualFold(c.Env, "local")
}

// Validate enforces the fatal-at-startup rules.
func (c *Auth) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	google := []string{c.GoogleClientID, c.GoogleClientSecret, c.GoogleCallbackURL}
	set := 0
	for _, v := range google {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	if set != 0 && set != len(google) {
		return errors.New("config: google oauth requires GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_CALLBACK_URL together")
	}
	return nil
}

// GoogleEnabled reports whether the federated login flow is configured.
func (c *Auth) GoogleEnabled() bool {
	return strings.TrimSpace(c.GoogleClientID) != ""
}

// Gateway configures the gateway binary.
type Gateway struct {
	Env     string `env:"APP_ENV" env-default:"development"`
	Address string `env:"GATEWAY_ADDR" env-default:":5000"`

	AuthServiceURL string `env:"AUTH_SERVICE_URL" env-default:"http://localhost:5001"`
	MainServiceURL string `env:"MAIN_SERVICE_URL" env-default:"http://localhost:5002"`

	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" env-separator:","`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" env-default:"30s"`

	ReadTimeout  time.Duration `env:"READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" env-default:"60s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" env-default:"60s"`
}

// Validate enforces the fatal-at-startup rules for the gateway.
func (c *Gateway) Validate() error {
	if strings.TrimSpace(c.AuthServiceURL) == "" || strings.TrimSpace(c.MainServiceURL) == "" {
		return errors.New("config: AUTH_SERVICE_URL and MAIN_SERVICE_URL are required")
	}
	return nil
}

// MustLoadAuth reads the identity service configuration or panics.
func MustLoadAuth() *Auth {
	var cfg Auth
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(err.Error())
	}
	return &cfg
}

// MustLoadGateway reads the gateway configuration or panics.
func MustLoadGateway() *Gateway {
	var cfg Gateway
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(err.Error())
	}
	return &cfg
}
