package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Host string `yaml:"host"`
}

type LoggingConfig struct {
	Development bool `yaml:"development"`
}

type StorageConfig struct {
	Type      string         `yaml:"type"` // "inmemory", "redis" или "postgres"
	KeyPrefix string         `yaml:"key_prefix"`
	Redis     RedisConfig    `yaml:"redis"`
	Postgres  PostgresConfig `yaml:"postgres"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	SessionTTL Duration     `yaml:"session_ttl"`
	SweepEvery Duration     `yaml:"sweep_every"`
	Users      []UserConfig `yaml:"users"`
}

// Duration позволяет писать в yaml "24h" вместо наносекунд
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("неверная длительность %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type UserConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("не могу открыть %s: %w", path, err)
	}
	defer file.Close()

	var cfg Config
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "inmemory"
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "todo-app-tasks-"
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = Duration(24 * time.Hour)
	}
	if c.Auth.SweepEvery == 0 {
		c.Auth.SweepEvery = Duration(10 * time.Minute)
	}
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
