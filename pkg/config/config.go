// Package config loads service configuration from config.yaml with
// environment variable overrides. Secrets only come from the environment.
package config

import (
	"fmt"
	"strconv"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/finsight/analytics-engine/pkg/adapters/datasource/mssql"
)

// Config holds all configuration for the analytics engine.
// Environment variables always override YAML values for fields that support
// both. Secrets (passwords, API keys) must only come from environment
// variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL, conversation log)
	Database DatabaseConfig `yaml:"database"`

	// Datasource configuration (SQL Server, analytics data)
	Datasource DatasourceConfig `yaml:"datasource"`

	// LLM endpoint configuration
	LLM LLMConfig `yaml:"llm"`

	// Schema cache configuration
	Schema SchemaConfig `yaml:"schema"`
}

// DatabaseConfig holds PostgreSQL conversation log configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"analytics"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"analytics_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DatasourceConfig holds SQL Server datasource configuration.
type DatasourceConfig struct {
	Server   string `yaml:"server" env:"MSSQL_SERVER" env-default:"localhost"`
	Port     int    `yaml:"port" env:"MSSQL_PORT" env-default:"1433"`
	Database string `yaml:"database" env:"MSSQL_DATABASE"`
	Username string `yaml:"username" env:"MSSQL_USERNAME"`
	Password string `yaml:"-" env:"MSSQL_PASSWORD"` // Secret - not in YAML
	Encrypt  bool   `yaml:"encrypt" env:"MSSQL_ENCRYPT" env-default:"false"`
}

// MSSQLConfig converts to the adapter's config type.
func (c *DatasourceConfig) MSSQLConfig() *mssql.Config {
	return &mssql.Config{
		Server:   c.Server,
		Port:     c.Port,
		Database: c.Database,
		Username: c.Username,
		Password: c.Password,
		Encrypt:  strconv.FormatBool(c.Encrypt),
	}
}

// LLMConfig holds the OpenAI-compatible model endpoint configuration.
type LLMConfig struct {
	Endpoint    string  `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"http://localhost:11434/v1"`
	Model       string  `yaml:"model" env:"LLM_MODEL" env-default:"qwen2.5-coder:32b"`
	APIKey      string  `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.1"`
}

// SchemaConfig holds schema cache settings.
type SchemaConfig struct {
	// TTLSeconds is how long a schema snapshot is served before refresh.
	TTLSeconds int `yaml:"ttl_seconds" env:"SCHEMA_TTL_SECONDS" env-default:"3600"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Datasource.Database == "" {
		return fmt.Errorf("datasource database is required (MSSQL_DATABASE)")
	}
	if c.Datasource.Username == "" {
		return fmt.Errorf("datasource username is required (MSSQL_USERNAME)")
	}
	if c.LLM.Endpoint == "" {
		return fmt.Errorf("llm endpoint is required (LLM_ENDPOINT)")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model is required (LLM_MODEL)")
	}
	return nil
}
