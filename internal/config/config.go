package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr            string
	DatabaseURL     string
	SupabaseURL     string
	SupabaseAnonKey string
	StarterWallet   int64
	PricingFile     string
	EnsureSchema    bool
}

type WorkerConfig struct {
	DatabaseURL  string
	CycleEvery   time.Duration
	PricingFile  string
	EnsureSchema bool
	RunOnce      bool
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("FACTORY_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:            addr,
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SupabaseURL:     strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/"),
		SupabaseAnonKey: strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY")),
		StarterWallet:   envInt64Default("FACTORY_STARTER_WALLET", 1_000),
		PricingFile:     strings.TrimSpace(os.Getenv("FACTORY_PRICING_FILE")),
		EnsureSchema:    envBoolDefault("FACTORY_ENSURE_SCHEMA", true),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SupabaseURL == "" {
		return cfg, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.SupabaseAnonKey == "" {
		return cfg, fmt.Errorf("SUPABASE_ANON_KEY is required")
	}
	if cfg.StarterWallet < 0 {
		return cfg, fmt.Errorf("FACTORY_STARTER_WALLET must not be negative")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	cfg := WorkerConfig{
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CycleEvery:   envDurationDefault("FACTORY_CYCLE_EVERY", time.Hour),
		PricingFile:  strings.TrimSpace(os.Getenv("FACTORY_PRICING_FILE")),
		EnsureSchema: envBoolDefault("FACTORY_ENSURE_SCHEMA", true),
		RunOnce:      envBoolDefault("FACTORY_WORKER_RUN_ONCE", false),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CycleEvery <= 0 {
		return cfg, fmt.Errorf("FACTORY_CYCLE_EVERY must be positive")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("FCTL_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt64Default(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
