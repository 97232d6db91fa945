package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDynamoDB = "dynamodb"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	DynamoDB DynamoDBConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	JWT      JWTConfig
	OTP      OTPConfig
	Password PasswordConfig
	Twilio   TwilioConfig
	Brevo    BrevoConfig
}

type ServerConfig struct {
	Port         string
	BaseURL      string
	LogLevel     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type StoreConfig struct {
	Driver string
}

type DynamoDBConfig struct {
	Endpoint  string
	Region    string
	TableName string
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// RedisConfig configures the notification queue. An empty URL disables it and
// notifications are delivered in-process.
type RedisConfig struct {
	URL   string
	Queue string
}

type JWTConfig struct {
	SecretKey        string
	SessionExpiry    time.Duration
	EmailTokenExpiry time.Duration
}

type OTPConfig struct {
	Length int
	Expiry time.Duration
}

type PasswordConfig struct {
	BcryptCost int
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

type BrevoConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// Load reads the environment, after merging an optional .env file from the
// working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			BaseURL:      strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080/api/auth"), "/"),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreDynamoDB)),
		},
		DynamoDB: DynamoDBConfig{
			Endpoint:  getEnv("DYNAMODB_ENDPOINT", ""),
			Region:    getEnv("DYNAMODB_REGION", "us-east-1"),
			TableName: getEnv("DYNAMODB_TABLE_NAME", "Accounts"),
		},
		Mongo: MongoConfig{
			URI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:   getEnv("MONGO_DATABASE", "accounts"),
			Collection: getEnv("MONGO_COLLECTION", "users"),
		},
		Redis: RedisConfig{
			URL:   getEnv("REDIS_URL", ""),
			Queue: getEnv("NOTIFY_QUEUE", "notifications"),
		},
		JWT: JWTConfig{
			SecretKey:        getEnv("JWT_SECRET_KEY", ""),
			SessionExpiry:    getEnvAsDuration("JWT_SESSION_EXPIRY", 0),
			EmailTokenExpiry: getEnvAsDuration("EMAIL_TOKEN_EXPIRY", 24*time.Hour),
		},
		OTP: OTPConfig{
			Length: getEnvAsInt("OTP_LENGTH", 6),
			Expiry: getEnvAsDuration("OTP_EXPIRY", 5*time.Minute),
		},
		Password: PasswordConfig{
			BcryptCost: getEnvAsInt("BCRYPT_COST", 12),
		},
		Twilio: TwilioConfig{
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		},
		Brevo: BrevoConfig{
			APIKey:    getEnv("BREVO_API_KEY", ""),
			FromEmail: getEnv("BREVO_FROM_EMAIL", ""),
			FromName:  getEnv("BREVO_FROM_NAME", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY environment variable is required")
	}

	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 bytes (256 bits)")
	}

	switch c.Store.Driver {
	case StoreDynamoDB, StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}

	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 10")
	}

	if c.OTP.Expiry <= 0 || c.JWT.EmailTokenExpiry <= 0 {
		return fmt.Errorf("OTP_EXPIRY and EMAIL_TOKEN_EXPIRY must be positive")
	}

	if c.JWT.SessionExpiry < 0 {
		return fmt.Errorf("JWT_SESSION_EXPIRY must not be negative")
	}

	return nil
}

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
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
