package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	AI      AIConfig      `yaml:"ai"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type AIConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	TextModel   string  `yaml:"text_model"`
	ImageModel  string  `yaml:"image_model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type StoreConfig struct {
	// Driver selects the scrapbook backend: "memory", "file", "redis" or "mysql".
	Driver string      `yaml:"driver"`
	Key    string      `yaml:"key"`
	File   FileConfig  `yaml:"file"`
	Redis  RedisConfig `yaml:"redis"`
	MySQL  MySQLConfig `yaml:"mysql"`
}

type FileConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MySQLConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	return &cfg, nil
}

// Default returns a runnable configuration without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// Image generation round trips are slow.
		c.Server.WriteTimeout = 180 * time.Second
	}
	if c.AI.TextModel == "" {
		c.AI.TextModel = "gpt-4o-mini"
	}
	if c.AI.ImageModel == "" {
		c.AI.ImageModel = "dall-e-3"
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 1024
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = 0.8
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "file"
	}
	if c.Store.Key == "" {
		c.Store.Key = "classic-rides-memories"
	}
	if c.Store.File.Path == "" {
		c.Store.File.Path = "./data/" + c.Store.Key + ".json"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) applyEnv() {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		c.AI.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		c.AI.BaseURL = baseURL
	}
}

// Validate checks the configuration for problems, collecting all of
// them into a single error.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}

	switch c.Store.Driver {
	case "memory":
	case "file":
		if c.Store.File.Path == "" {
			errs = append(errs, "store.file.path is required for the file driver")
		}
	case "redis":
		if c.Store.Redis.Host == "" {
			errs = append(errs, "store.redis.host is required for the redis driver")
		}
	case "mysql":
		if c.Store.MySQL.Host == "" {
			errs = append(errs, "store.mysql.host is required for the mysql driver")
		}
		if c.Store.MySQL.Database == "" {
			errs = append(errs, "store.mysql.database is required for the mysql driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be one of memory, file, redis, mysql; got %q", c.Store.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
