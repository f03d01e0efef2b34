package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr     string         `yaml:"addr"`
	LogLevel string         `yaml:"log_level"`
	Database DatabaseConfig `yaml:"database"`
	CORS     struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	BcryptCost int `yaml:"bcrypt_cost"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func defaultConfig() Config {
	var cfg Config
	cfg.Addr = ":8080"
	cfg.LogLevel = "info"
	cfg.Database = DatabaseConfig{
		Driver:          "pgx",
		URL:             "postgres://postgres:postgres@db:5432/taskhub?sslmode=disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
	cfg.CORS.AllowedOrigins = []string{"*"}
	cfg.BcryptCost = bcrypt.DefaultCost
	return cfg
}

// LoadConfig layers defaults, the optional YAML file at path and environment
// overrides. ${VAR} placeholders in the file are replaced from the environment.
// A missing file is only an error when required is set.
func LoadConfig(path string, required bool) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !required:
		case err != nil:
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		default:
			if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &cfg); err != nil {
				return Config{}, fmt.Errorf("error parsing config: %w", err)
			}
		}
	}

	cfg.Addr = getenv("ADDR", cfg.Addr)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.Database.Driver = getenv("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.URL = getenv("DATABASE_URL", cfg.Database.URL)
	if v := getenv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		cfg.CORS.AllowedOrigins = strings.Split(v, ",")
	}
	for key, dst := range map[string]*int{
		"BCRYPT_COST":             &cfg.BcryptCost,
		"DATABASE_MAX_OPEN_CONNS": &cfg.Database.MaxOpenConns,
		"DATABASE_MAX_IDLE_CONNS": &cfg.Database.MaxIdleConns,
	} {
		v := getenv(key, "")
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s value: %w", key, err)
		}
		*dst = n
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("bcrypt cost %d out of range", cfg.BcryptCost)
	}
	if _, err := lookupDialect(cfg.Database.Driver); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func expandEnv(content string) string {
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		content = strings.ReplaceAll(content, "${"+pair[0]+"}", pair[1])
	}
	return content
}

func (c Config) slogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
