// Package config loads the access layer configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/iacai-network/access-layer/pkg/logger"
)

// ExecutionMode selects the purchase execution path.
type ExecutionMode string

const (
	// ModeSimulated drives purchases through timed local steps. Used for
	// development and demos; no blockchain access required.
	ModeSimulated ExecutionMode = "simulated"
	// ModeChain submits purchases through the wallet provider as real
	// transactions.
	ModeChain ExecutionMode = "chain"
)

// Config is the root configuration for the access layer.
type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Database  DatabaseConfig       `yaml:"database"`
	Redis     RedisConfig          `yaml:"redis"`
	Logging   logger.LoggingConfig `yaml:"logging"`
	Web3      Web3Config           `yaml:"web3"`
	RateLimit RateLimitConfig      `yaml:"rate_limit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host" env:"SERVER_HOST"`
	Port            int           `yaml:"port" env:"SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig controls the optional PostgreSQL store. When DSN is empty
// the application falls back to the in-memory store.
type DatabaseConfig struct {
	Driver          string `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN             string `yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
}

// RedisConfig controls the optional Redis-backed store.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// Web3Config controls wallet, contract and verifier settings.
type Web3Config struct {
	Mode                 ExecutionMode `yaml:"mode" env:"WEB3_MODE"`
	WalletAddress        string        `yaml:"wallet_address" env:"WALLET_ADDRESS"`
	NFTContractAddress   string        `yaml:"nft_contract_address" env:"NFT_CONTRACT_ADDRESS"`
	TokenContractAddress string        `yaml:"token_contract_address" env:"TOKEN_CONTRACT_ADDRESS"`
	VerifierEndpoint     string        `yaml:"verifier_endpoint" env:"VERIFIER_ENDPOINT"`
	JWTSecret            string        `yaml:"jwt_secret" env:"WEB3_JWT_SECRET"`
	PurchaseTimeout      time.Duration `yaml:"purchase_timeout" env:"PURCHASE_TIMEOUT"`
}

// RateLimitConfig controls per-wallet request throttling.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" env:"RATE_LIMIT_PER_MINUTE"`
	Burst             int `yaml:"burst" env:"RATE_LIMIT_BURST"`
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "postgres",
		},
		Logging: logger.LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Web3: Web3Config{
			Mode:            ModeSimulated,
			PurchaseTimeout: 2 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			Burst:             10,
		},
	}
}

// Load reads configuration from ACCESS_LAYER_CONFIG (or config/config.yaml)
// and applies environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	path := os.Getenv("ACCESS_LAYER_CONFIG")
	if path == "" {
		path = filepath.Join("config", "config.yaml")
	}
	return LoadFromPath(path)
}

// LoadFromPath reads configuration from a specific file and applies
// environment overrides.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults plus environment only
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Web3.Mode {
	case ModeSimulated, ModeChain:
	default:
		return fmt.Errorf("unknown web3 mode %q", c.Web3.Mode)
	}
	if c.Web3.Mode == ModeChain && c.Web3.TokenContractAddress == "" {
		return fmt.Errorf("chain mode requires token_contract_address")
	}
	if c.Web3.PurchaseTimeout <= 0 {
		c.Web3.PurchaseTimeout = 2 * time.Minute
	}
	return nil
}
