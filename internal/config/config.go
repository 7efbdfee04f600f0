package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	GuardPostgres = "postgres"
	GuardBolt     = "bolt"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string
	AppURL     string
	JWTSecret  string

	// InternalSecretKey grants the internal rate limit tier via X-Service-Auth.
	InternalSecretKey string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayTestKeyID     string
	RazorpayTestKeySecret string
	RazorpayTestMode      bool

	// SettlementGuard selects where settled payment ids are claimed:
	// "postgres" (shared across instances) or "bolt" (local file).
	SettlementGuard string
	BoltPath        string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    getString("APP_PORT", "8080"),
		AppEnv:     os.Getenv("APP_ENV"),
		AppURL:     getString("APP_URL", "http://localhost:8080"),
		JWTSecret:  os.Getenv("SECRET_KEY"),

		InternalSecretKey: os.Getenv("INTERNAL_SECRET_KEY"),

		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayTestKeyID:     os.Getenv("RAZORPAY_TEST_KEY_ID"),
		RazorpayTestKeySecret: os.Getenv("RAZORPAY_TEST_KEY_SECRET"),
		RazorpayTestMode:      getBool("RAZORPAY_TEST_MODE", false),

		SettlementGuard: getString("SETTLEMENT_GUARD", GuardPostgres),
		BoltPath:        getString("BOLT_PATH", "settlements.db"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	if cfg.SettlementGuard != GuardPostgres && cfg.SettlementGuard != GuardBolt {
		log.Fatalf("invalid SETTLEMENT_GUARD: %s (must be %q or %q)", cfg.SettlementGuard, GuardPostgres, GuardBolt)
	}

	return cfg
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("invalid boolean for %s=%q, using %v", key, v, def)
		return def
	}
	return b
}
