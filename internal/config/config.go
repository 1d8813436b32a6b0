package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Collaborators CollaboratorConfig
	App           AppConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// CollaboratorConfig holds base URLs and the shared timeout budget for the
// external services the orchestrator calls
type CollaboratorConfig struct {
	OrdersServiceURL       string
	PaymentServiceURL      string
	ShippingServiceURL     string
	NotificationServiceURL string
	CallTimeout            time.Duration
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment   string
	LogLevel      string
	RedisURL      string
	StatsCacheTTL time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "returns_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Collaborators: CollaboratorConfig{
			OrdersServiceURL:       getEnv("ORDERS_SERVICE_URL", "http://orders-service:8080"),
			PaymentServiceURL:      getEnv("PAYMENT_SERVICE_URL", "http://payment-service:8080"),
			ShippingServiceURL:     getEnv("SHIPPING_SERVICE_URL", "http://shipping-service:8080"),
			NotificationServiceURL: getEnv("NOTIFICATION_SERVICE_URL", "http://notification-service:8090"),
			CallTimeout:            getEnvAsDuration("COLLABORATOR_TIMEOUT", 10*time.Second),
		},
		App: AppConfig{
			Environment:   getEnv("APP_ENV", "development"),
			LogLevel:      getEnv("LOG_LEVEL", "info"),
			RedisURL:      getEnv("REDIS_URL", ""),
			StatsCacheTTL: getEnvAsDuration("STATS_CACHE_TTL", 5*time.Minute),
		},
	}

	return config, nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
