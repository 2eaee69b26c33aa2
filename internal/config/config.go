package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tradsys/lobcore/internal/common"
)

// Config represents the application configuration
type Config struct {
	// Database configuration (repository SQL backend)
	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	// Cache configuration (repository read-side cache)
	Cache struct {
		Addr string        `mapstructure:"addr"`
		DB   int           `mapstructure:"db"`
		TTL  time.Duration `mapstructure:"ttl"`
	} `mapstructure:"cache"`

	// Matching engine configuration: symbols to start a SymbolRouter
	// worker for, and per-symbol arena sizing.
	Matching struct {
		Symbols         []string `mapstructure:"symbols"`
		OrderArenaSize  int      `mapstructure:"order_arena_size"`
		PricePointArena int      `mapstructure:"price_point_arena_size"`
		TickExponent    int      `mapstructure:"tick_exponent"`
	} `mapstructure:"matching"`

	// Admission configuration: token-bucket front door in front of the
	// engine (internal/admission), entirely outside the engine itself.
	Admission struct {
		RatePerSecond int `mapstructure:"rate_per_second"`
		Burst         int `mapstructure:"burst"`
	} `mapstructure:"admission"`

	// Monitoring configuration
	Monitoring struct {
		PrometheusPort int    `mapstructure:"prometheus_port"`
		LogLevel       string `mapstructure:"log_level"`
	} `mapstructure:"monitoring"`
}

var (
	config *Config
	once   sync.Once
)

// LoadConfig loads config.yaml from the directory configPath, or from the
// default search paths when configPath is empty
func LoadConfig(configPath string) (*Config, error) {
	var err error

	once.Do(func() {
		config = &Config{}

		// Set default values
		setDefaults()

		// Initialize viper
		v := viper.New()
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Add config path
		if configPath != "" {
			v.AddConfigPath(configPath)
		} else {
			v.AddConfigPath(".")
			v.AddConfigPath("./config")
			v.AddConfigPath("/etc/tradsys")
		}

		// Read environment variables
		v.AutomaticEnv()
		v.SetEnvPrefix("TRADSYS")

		// Read config file
		if err = v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				err = fmt.Errorf("failed to read config file: %w", err)
				return
			}
			// Config file not found, using defaults and environment variables
			err = nil
		}

		// Unmarshal config
		if err = v.Unmarshal(config); err != nil {
			err = fmt.Errorf("failed to unmarshal config: %w", err)
			return
		}
	})

	return config, err
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	if config == nil {
		_, err := LoadConfig("")
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	}
	return config
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Marshal config to JSON
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setDefaults sets default values for the configuration
func setDefaults() {
	// Database defaults
	config.Database.Host = "localhost"
	config.Database.Port = 5432
	config.Database.User = "postgres"
	config.Database.Name = "lobcore"
	config.Database.SSLMode = "disable"

	// Cache defaults
	config.Cache.Addr = "localhost:6379"
	config.Cache.DB = 0
	config.Cache.TTL = 5 * time.Second

	// Matching defaults
	config.Matching.Symbols = []string{"BTC-USD", "ETH-USD"}
	config.Matching.OrderArenaSize = 1 << 16
	config.Matching.PricePointArena = 1 << 12
	config.Matching.TickExponent = -2

	// Admission defaults
	config.Admission.RatePerSecond = 50000
	config.Admission.Burst = 5000

	// Monitoring defaults
	config.Monitoring.PrometheusPort = 9090
	config.Monitoring.LogLevel = "info"
}

// InitLogger initializes the logger based on the configuration
func InitLogger(cfg *Config) (*zap.Logger, error) {
	development := cfg.Monitoring.LogLevel == "debug"
	logger, err := common.NewLogger(development, common.LogLevel(cfg.Monitoring.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
