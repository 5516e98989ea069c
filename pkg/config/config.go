package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type SMTP struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	From string `yaml:"from"`
}

type Config struct {
	Env      string `yaml:"env"`
	HTTPAddr string `yaml:"http_addr"`

	// Base URL used when building links embedded in emails.
	BasePublicURL string `yaml:"base_public_url"`

	// Shared HMAC secret for session and single-use tokens.
	JWTSecret string `yaml:"jwt_secret"`

	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	CORSOrigins []string `yaml:"cors_origins"`

	SMTP SMTP `yaml:"smtp"`
}

// Load builds config from defaults, an optional YAML file (CONFIG_FILE) and
// environment variables, in increasing precedence. A .env file is honoured.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Env:           "dev",
		HTTPAddr:      ":8080",
		BasePublicURL: "http://localhost:8080",
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("config: read %s: %v", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Fatalf("config: parse %s: %v", path, err)
		}
	}

	cfg.Env = env("SSOFORGE_ENV", cfg.Env)
	cfg.HTTPAddr = env("SSOFORGE_HTTP_ADDR", cfg.HTTPAddr)
	cfg.BasePublicURL = strings.TrimRight(env("BASE_PUBLIC_URL", cfg.BasePublicURL), "/")
	cfg.JWTSecret = env("JWT_SECRET", cfg.JWTSecret)
	cfg.DatabaseURL = env("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = env("REDIS_URL", cfg.RedisURL)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	cfg.SMTP.Host = env("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = envInt("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.User = env("SMTP_USER", cfg.SMTP.User)
	cfg.SMTP.Pass = env("SMTP_PASS", cfg.SMTP.Pass)
	cfg.SMTP.From = env("SMTP_FROM", cfg.SMTP.From)

	if cfg.JWTSecret == "" {
		if cfg.Env == "prod" {
			log.Fatal("config: JWT_SECRET is required in prod")
		}
		log.Println("[WARN] JWT_SECRET not set, using insecure dev secret")
		cfg.JWTSecret = "ssoforge-dev-secret"
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
