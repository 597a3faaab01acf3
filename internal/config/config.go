package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sources   []SourceConfig  `mapstructure:"sources"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

type IngestConfig struct {
	Workers      int      `mapstructure:"workers"`
	RetryCount   int      `mapstructure:"retry_count"`
	LookbackDays int      `mapstructure:"lookback_days"`
	RoleQueries  []string `mapstructure:"role_queries"`
}

type SchedulerConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Timezone      string `mapstructure:"timezone"`
	PassStartHour int    `mapstructure:"pass_start_hour"`
	PassEndHour   int    `mapstructure:"pass_end_hour"`
	AuditHour     int    `mapstructure:"audit_hour"`
	RunOnStart    bool   `mapstructure:"run_on_start"`
}

// SourceConfig describes one data source. The same workday adapter serves
// every Workday-backed board; only the tenant coordinates differ.
type SourceConfig struct {
	Name         string   `mapstructure:"name"`
	Company      string   `mapstructure:"company"`
	Type         string   `mapstructure:"type"`
	Enabled      bool     `mapstructure:"enabled"`
	BaseURL      string   `mapstructure:"base_url"`
	Tenant       string   `mapstructure:"tenant"`
	Site         string   `mapstructure:"site"`
	ManifestPath string   `mapstructure:"manifest_path"`
	RoleQueries  []string `mapstructure:"role_queries"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/jobtrack.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "jobtrack")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("ingest.workers", 5)
	v.SetDefault("ingest.retry_count", 3)
	v.SetDefault("ingest.lookback_days", 7)
	v.SetDefault("ingest.role_queries", []string{
		"Data Scientist", "Data Analyst", "Machine Learning Engineer",
	})
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.timezone", "America/New_York")
	v.SetDefault("scheduler.pass_start_hour", 7)
	v.SetDefault("scheduler.pass_end_hour", 17)
	v.SetDefault("scheduler.audit_hour", 18)
	v.SetDefault("scheduler.run_on_start", true)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("server.port", "API_PORT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// RoleQueriesFor returns the role queries for a source, falling back to the
// pipeline-wide default list when the source does not override them.
func (c *Config) RoleQueriesFor(src SourceConfig) []string {
	if len(src.RoleQueries) > 0 {
		return src.RoleQueries
	}
	return c.Ingest.RoleQueries
}
