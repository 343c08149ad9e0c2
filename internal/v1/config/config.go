// Package config loads and validates the process environment for the hub.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Preon1/lrcom/internal/v1/logging"
)

// Config holds the validated environment configuration recognized by the hub process.
type Config struct {
	Port string
	Host string

	PublicDir string

	TurnURLs               []string
	TurnSecret             string
	TurnUsernameTTLSeconds int
	TurnRelayMinPort       int
	TurnRelayMaxPort       int

	TLSKeyPath  string
	TLSCertPath string

	VapidPublicKey  string
	VapidPrivateKey string
	VapidSubject    string
	PushGatewayURL  string

	RedisAddr     string
	RedisPassword string

	AllowedOrigins []string

	StartupLog string
	GoEnv      string
}

// Load reads and validates the environment, accumulating every problem into a
// single joined error instead of failing on the first one.
func Load(getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	cfg := &Config{}
	var problems []string

	cfg.Port = getEnvOrDefault(getenv, "PORT", "8080")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got %q)", cfg.Port))
	}

	cfg.Host = getEnvOrDefault(getenv, "HOST", "0.0.0.0")
	cfg.PublicDir = getEnvOrDefault(getenv, "PUBLIC_DIR", "./public")

	if raw := getenv("TURN_URLS"); raw != "" {
		for _, u := range strings.Split(raw, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.TurnURLs = append(cfg.TurnURLs, u)
			}
		}
	}
	cfg.TurnSecret = getenv("TURN_SECRET")

	cfg.TurnUsernameTTLSeconds = 3600
	if raw := getenv("TURN_USERNAME_TTL_SECONDS"); raw != "" {
		ttl, err := strconv.Atoi(raw)
		if err != nil || ttl <= 0 {
			problems = append(problems, fmt.Sprintf("TURN_USERNAME_TTL_SECONDS must be a positive integer (got %q)", raw))
		} else {
			cfg.TurnUsernameTTLSeconds = ttl
		}
	}

	if raw := getenv("TURN_RELAY_MIN_PORT"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("TURN_RELAY_MIN_PORT must be an integer (got %q)", raw))
		}
		cfg.TurnRelayMinPort = v
	}
	if raw := getenv("TURN_RELAY_MAX_PORT"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("TURN_RELAY_MAX_PORT must be an integer (got %q)", raw))
		}
		cfg.TurnRelayMaxPort = v
	}

	cfg.TLSKeyPath = getenv("TLS_KEY_PATH")
	cfg.TLSCertPath = getenv("TLS_CERT_PATH")
	if (cfg.TLSKeyPath == "") != (cfg.TLSCertPath == "") {
		problems = append(problems, "TLS_KEY_PATH and TLS_CERT_PATH must both be set or both be empty")
	}

	cfg.VapidPublicKey = getenv("VAPID_PUBLIC_KEY")
	cfg.VapidPrivateKey = getenv("VAPID_PRIVATE_KEY")
	cfg.VapidSubject = getenv("VAPID_SUBJECT")
	if (cfg.VapidPublicKey == "") != (cfg.VapidPrivateKey == "") {
		problems = append(problems, "VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must both be set or both be empty")
	}
	cfg.PushGatewayURL = getenv("PUSH_GATEWAY_URL")

	cfg.RedisAddr = getenv("REDIS_ADDR")
	cfg.RedisPassword = getenv("REDIS_PASSWORD")

	if raw := getenv("ALLOWED_ORIGINS"); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	cfg.StartupLog = getEnvOrDefault(getenv, "STARTUP_LOG", "")
	cfg.GoEnv = getEnvOrDefault(getenv, "GO_ENV", "production")

	if len(problems) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}

	return cfg, nil
}

// PushEnabled reports whether a VAPID keypair is configured.
func (c *Config) PushEnabled() bool {
	return c.VapidPublicKey != "" && c.VapidPrivateKey != ""
}

// TurnEnabled reports whether a TURN shared secret is configured.
func (c *Config) TurnEnabled() bool {
	return c.TurnSecret != ""
}

// LogStartup logs the validated configuration with secrets redacted.
func (c *Config) LogStartup() {
	logging.Info(nil, "environment configuration validated",
		zap.String("port", c.Port),
		zap.String("host", c.Host),
		zap.Strings("turn_urls", c.TurnURLs),
		zap.String("turn_secret", redactSecret(c.TurnSecret)),
		zap.Int("turn_username_ttl_seconds", c.TurnUsernameTTLSeconds),
		zap.Bool("push_enabled", c.PushEnabled()),
		zap.String("vapid_private_key", redactSecret(c.VapidPrivateKey)),
		zap.Bool("redis_configured", c.RedisAddr != ""),
		zap.String("go_env", c.GoEnv),
	)
}

func getEnvOrDefault(getenv func(string) string, key, defaultValue string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// redactSecret shows only a short prefix of a secret value.
func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
