package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	// Core service configuration
	Environment string `mapstructure:"ENVIRONMENT"`
	Port        int    `mapstructure:"PORT"`

	Server ServerConfig `mapstructure:",squash"`
	DB     DBConfig     `mapstructure:",squash"`
	S3     S3Config     `mapstructure:",squash"`
	JWT    JWTConfig    `mapstructure:",squash"`
	Upload UploadConfig `mapstructure:",squash"`
	Rate   RateConfig   `mapstructure:",squash"`
}

// ServerConfig holds HTTP server timeouts
type ServerConfig struct {
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"SERVER_IDLE_TIMEOUT"`
}

// DBConfig holds database configuration
type DBConfig struct {
	Host     string `mapstructure:"DB_HOST"`
	Port     int    `mapstructure:"DB_PORT"`
	User     string `mapstructure:"DB_USER"`
	Password string `mapstructure:"DB_PASSWORD"`
	Name     string `mapstructure:"DB_NAME"`
	SSLMode  string `mapstructure:"DB_SSLMODE"`
}

// S3Config holds S3 storage configuration
type S3Config struct {
	Region          string        `mapstructure:"S3_REGION"`
	Bucket          string        `mapstructure:"S3_BUCKET"`
	AccessKeyID     string        `mapstructure:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string        `mapstructure:"S3_SECRET_ACCESS_KEY"`
	Endpoint        string        `mapstructure:"S3_ENDPOINT"`
	UsePathStyle    bool          `mapstructure:"S3_USE_PATH_STYLE"`
	PresignExpiry   time.Duration `mapstructure:"S3_PRESIGN_EXPIRY"`
}

// JWTConfig holds JWT authentication configuration
type JWTConfig struct {
	Enabled      bool   `mapstructure:"JWT_ENABLED"`
	PublicKeyURL string `mapstructure:"JWT_PUBLIC_KEY_URL"`
	Secret       string `mapstructure:"JWT_SECRET"`
	Algorithm    string `mapstructure:"JWT_ALGORITHM"`
}

// UploadConfig points at the optional upload policy file and bounds upload requests
type UploadConfig struct {
	PolicyPath       string        `mapstructure:"UPLOAD_POLICY_PATH"`
	MaxRequestSizeMB int           `mapstructure:"UPLOAD_MAX_REQUEST_MB"`
	Timeout          time.Duration `mapstructure:"UPLOAD_TIMEOUT"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

// RateConfig configures request rate limiting on the data routes
type RateConfig struct {
	RequestsPerSecond float64 `mapstructure:"RATE_LIMIT_RPS"`
	Burst             int     `mapstructure:"RATE_LIMIT_BURST"`
}

// Load reads the configuration from environment variables and returns a Config struct
func Load() (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Optional: Read from config file if specified
	configFile := v.GetString("CONFIG_FILE")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal config into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// DSN returns the lib/pq connection string
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the postgres:// form of the connection settings used by the migrator
func (c DBConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// setDefaults sets default values for configuration.
// Every key needs a default so that Unmarshal picks up its environment variable.
func setDefaults(v *viper.Viper) {
	// Core service defaults
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("PORT", 8080)
	v.SetDefault("CONFIG_FILE", "")

	// Server defaults
	v.SetDefault("SERVER_READ_TIMEOUT", 60*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 120*time.Second)
	v.SetDefault("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Database defaults
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "filemanager")
	v.SetDefault("DB_SSLMODE", "disable")

	// S3 defaults
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_BUCKET", "exames")
	v.SetDefault("S3_ACCESS_KEY_ID", "")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_USE_PATH_STYLE", false)
	v.SetDefault("S3_PRESIGN_EXPIRY", time.Hour)

	// JWT defaults
	v.SetDefault("JWT_ENABLED", false)
	v.SetDefault("JWT_PUBLIC_KEY_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ALGORITHM", "HS256")

	// Upload policy defaults
	v.SetDefault("UPLOAD_POLICY_PATH", "")
	// Uploads bypass REQUEST_TIMEOUT and the server read timeout
	v.SetDefault("UPLOAD_MAX_REQUEST_MB", 1024)
	v.SetDefault("UPLOAD_TIMEOUT", 30*time.Minute)
	v.SetDefault("REQUEST_TIMEOUT", 60*time.Second)

	// Rate limiting is off unless RATE_LIMIT_RPS is set
	v.SetDefault("RATE_LIMIT_RPS", 0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
}
