package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Allocations   AllocationsConfig   `json:"allocations"`
	Notifications NotificationsConfig `json:"notifications"`
	Storage       StorageConfig       `json:"storage"`
	Security      SecurityConfig      `json:"security"`
	Logging       LoggingConfig       `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	User         string        `json:"user"`
	Password     string        `json:"password"`
	DBName       string        `json:"db_name"`
	SSLMode      string        `json:"ssl_mode"`
	MaxConns     int           `json:"max_conns"`
	MaxIdleConns int           `json:"max_idle_conns"`
	MaxLifetime  time.Duration `json:"max_lifetime"`
}

// AllocationsConfig carries the service-unit bounds applied to every
// grant.
type AllocationsConfig struct {
	ServiceUnitsMin decimal.Decimal `json:"service_units_min"`
	ServiceUnitsMax decimal.Decimal `json:"service_units_max"`
}

// NotificationsConfig configures the email side of the portal. When
// Enabled is false every send is recorded as skipped.
type NotificationsConfig struct {
	Enabled     bool     `json:"enabled"`
	Provider    string   `json:"provider"` // "ses" or "smtp"
	FromAddress string   `json:"from_address"`
	AdminCCList []string `json:"admin_cc_list"`
	Signature   string   `json:"signature"`
	SMTPHost    string   `json:"smtp_host"`
	SMTPPort    int      `json:"smtp_port"`
	SMTPUser    string   `json:"smtp_user"`
	SMTPPass    string   `json:"smtp_pass"`
}

// StorageConfig names the S3 bucket that holds uploaded memoranda of
// understanding.
type StorageConfig struct {
	MemorandaBucket string `json:"memoranda_bucket"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string        `json:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    os.Getenv("USER"),
			DBName:  "allocation_portal",
			SSLMode: "disable",
		},
		Allocations: AllocationsConfig{
			ServiceUnitsMin: decimal.Zero,
			ServiceUnitsMax: decimal.New(100000000, -2),
		},
		Storage: StorageConfig{
			MemorandaBucket: "allocation-portal-memoranda",
		},
		Security: SecurityConfig{
			TokenTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if enabled := os.Getenv("NOTIFICATIONS_ENABLED"); enabled != "" {
		config.Notifications.Enabled = enabled == "true" || enabled == "1"
	}
	if from := os.Getenv("NOTIFICATIONS_FROM"); from != "" {
		config.Notifications.FromAddress = from
	}
	if bucket := os.Getenv("MEMORANDA_BUCKET"); bucket != "" {
		config.Storage.MemorandaBucket = bucket
	}
	if max := os.Getenv("SERVICE_UNITS_MAX"); max != "" {
		if v, err := decimal.NewFromString(max); err == nil {
			config.Allocations.ServiceUnitsMax = v
		}
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
