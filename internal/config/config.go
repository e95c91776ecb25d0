// Package config assembles chanstream's runtime configuration from a JSON
// file overlaid with environment variables, the same two-step load the
// teacher market-data service uses.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the chanstream-probe binary. The probe
// applies Database, Redis and Service.StepByStep; it builds its engine from
// engine.DefaultConfig(), so Bi, Seg, Service.SkipStep and Service.LogLevel
// are loaded and validated but do not change a run.
type Config struct {
	Bi       BiConfig       `json:"bi"`
	Seg      SegConfig      `json:"seg"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Service  ServiceConfig  `json:"service"`
}

// BiConfig holds the spec.md §6 bi_* stroke tunables.
type BiConfig struct {
	Algo         string `json:"bi_algo"`          // "normal" | "fx"
	IsStrict     bool   `json:"is_strict"`
	GapAsKl      bool   `json:"gap_as_kl"`
	FxCheck      string `json:"bi_fx_check"`       // STRICT | LOSS | HALF | TOTALLY
	EndIsPeak    bool   `json:"bi_end_is_peak"`
	AllowSubPeak bool   `json:"bi_allow_sub_peak"`
}

// SegConfig holds the spec.md §6 seg_*/left_method tunables.
type SegConfig struct {
	Algo       string `json:"seg_algo"` // "chan" is the only supported value
	LeftMethod string `json:"left_method"` // PEAK | ALL
}

// DatabaseConfig holds PostgreSQL connection parameters for internal/persistence.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Name     string `json:"name"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// ConnString builds a PostgreSQL connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// RedisConfig holds Redis connection parameters for internal/bus.
type RedisConfig struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	DB            int    `json:"db"`
	Password      string `json:"password"`
	ChannelPrefix string `json:"channel_prefix"`
}

// Addr returns host:port for Redis.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ServiceConfig holds operational parameters.
type ServiceConfig struct {
	StepByStep bool   `json:"step_by_step"`
	SkipStep   int    `json:"skip_step"`
	LogLevel   string `json:"log_level"`
}

// Load reads config from a JSON file, then overrides with environment
// variables. path == "" skips the file and relies on defaults plus env.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", path, err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	overrideFromEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Bi: BiConfig{
			Algo:         "normal",
			IsStrict:     true,
			FxCheck:      "STRICT",
			AllowSubPeak: true,
		},
		Seg: SegConfig{
			Algo:       "chan",
			LeftMethod: "ALL",
		},
		Database: DatabaseConfig{
			Host: "localhost",
			Port: 5432,
			Name: "chanstream",
			User: "chanstream",
		},
		Redis: RedisConfig{
			Host:          "localhost",
			Port:          6379,
			ChannelPrefix: "chanstream",
		},
		Service: ServiceConfig{
			StepByStep: true,
			LogLevel:   "info",
		},
	}
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("BI_ALGO"); v != "" {
		cfg.Bi.Algo = v
	}
	if v := os.Getenv("BI_FX_CHECK"); v != "" {
		cfg.Bi.FxCheck = v
	}
	if v := os.Getenv("SEG_LEFT_METHOD"); v != "" {
		cfg.Seg.LeftMethod = v
	}

	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = p
		}
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}

	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = p
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("SERVICE_STEP_BY_STEP"); v != "" {
		cfg.Service.StepByStep = v == "true" || v == "1"
	}
	if v := os.Getenv("SERVICE_LOG_LEVEL"); v != "" {
		cfg.Service.LogLevel = v
	}
}

func validate(cfg *Config) error {
	validAlgo := map[string]bool{"normal": true, "fx": true}
	if !validAlgo[cfg.Bi.Algo] {
		return fmt.Errorf("invalid bi_algo %q: must be normal or fx", cfg.Bi.Algo)
	}

	validFxCheck := map[string]bool{"STRICT": true, "LOSS": true, "HALF": true, "TOTALLY": true}
	if !validFxCheck[cfg.Bi.FxCheck] {
		return fmt.Errorf("invalid bi_fx_check %q", cfg.Bi.FxCheck)
	}

	if cfg.Seg.Algo != "chan" {
		return fmt.Errorf("invalid seg_algo %q: \"chan\" is the only supported algorithm", cfg.Seg.Algo)
	}

	validLeftMethod := map[string]bool{"PEAK": true, "ALL": true}
	if !validLeftMethod[cfg.Seg.LeftMethod] {
		return fmt.Errorf("invalid left_method %q: must be PEAK or ALL", cfg.Seg.LeftMethod)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("invalid log level %q: must be debug, info, warn, or error", cfg.Service.LogLevel)
	}

	return nil
}
