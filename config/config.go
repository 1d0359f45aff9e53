package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   string
	AppEnv string

	Mongo    MongoConfig
	Redis    RedisConfig
	Razorpay RazorpayConfig

	JWTKey   string
	TokenTTL time.Duration

	PlatformFee float64
	Currency    string

	CORSOrigins []string

	RateLimitRPS   float64
	RateLimitBurst int

	CartSweepInterval time.Duration
}

type MongoConfig struct {
	URI string
	DB  string
}

// RedisConfig with an empty Addr disables every Redis-backed feature.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RazorpayConfig struct {
	KeyID     string
	KeySecret string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	port := getEnv("PORT", ":3001")
	if port == "" {
		port = ":3001"
	} else if port[0] != ':' {
		port = ":" + port
	}

	cfg := &Config{
		Port:   port,
		AppEnv: getEnv("APP_ENV", "development"),
		Mongo: MongoConfig{
			URI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
			DB:  getEnv("MONGO_DB", "scatch"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Razorpay: RazorpayConfig{
			KeyID:     getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),
		},
		JWTKey:            getEnv("JWT_KEY", ""),
		TokenTTL:          getEnvDuration("TOKEN_TTL", 24*time.Hour),
		PlatformFee:       getEnvFloat("PLATFORM_FEE", 20),
		Currency:          getEnv("CURRENCY", "INR"),
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		RateLimitRPS:      getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", 10),
		CartSweepInterval: getEnvDuration("CART_SWEEP_INTERVAL", time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.Mongo.DB == "" {
		return fmt.Errorf("MONGO_DB is required")
	}
	if c.JWTKey == "" {
		return fmt.Errorf("JWT_KEY is required")
	}
	if c.Razorpay.KeyID == "" || c.Razorpay.KeySecret == "" {
		return fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required")
	}
	if c.PlatformFee < 0 {
		return fmt.Errorf("PLATFORM_FEE must not be negative")
	}
	if c.Currency == "" {
		return fmt.Errorf("CURRENCY is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.CartSweepInterval <= 0 {
		return fmt.Errorf("CART_SWEEP_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
