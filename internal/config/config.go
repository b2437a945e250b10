package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          string
	DBPath        string
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
	MigrationsDir string
	SweepInterval time.Duration
}

// fileConfig mirrors the optional YAML config file. Environment variables
// override anything set here.
type fileConfig struct {
	Port                 string   `yaml:"port"`
	DBPath               string   `yaml:"db_path"`
	JWTSecret            string   `yaml:"jwt_secret"`
	TokenTTLHours        int      `yaml:"token_ttl_hours"`
	CORSOrigins          []string `yaml:"cors_origins"`
	MigrationsDir        string   `yaml:"migrations_dir"`
	SweepIntervalSeconds int      `yaml:"sweep_interval_seconds"`
}

func Load() Config {
	file := loadFile(getEnv("CONFIG_PATH", "./config.yaml"))

	return Config{
		Port:          getEnv("PORT", orDefault(file.Port, "8080")),
		DBPath:        getEnv("DB_PATH", orDefault(file.DBPath, "./data/stints.db")),
		JWTSecret:     getEnv("JWT_SECRET", orDefault(file.JWTSecret, "change-this-secret")),
		TokenTTL:      time.Duration(getEnvInt("TOKEN_TTL_HOURS", orDefaultInt(file.TokenTTLHours, 72))) * time.Hour,
		CORSOrigins:   getEnvList("CORS_ORIGINS", orDefaultList(file.CORSOrigins, []string{"http://localhost:5173", "http://127.0.0.1:5173"})),
		MigrationsDir: getEnv("MIGRATIONS_DIR", orDefault(file.MigrationsDir, "./migrations")),
		SweepInterval: time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", orDefaultInt(file.SweepIntervalSeconds, 30))) * time.Second,
	}
}

func loadFile(path string) fileConfig {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}
	}
	return cfg
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func orDefaultInt(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func orDefaultList(value, fallback []string) []string {
	if len(value) > 0 {
		return value
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
