package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	MongoURI    string
	DBName      string
	Environment string
	AppId       string
	CORSOrigins string

	SchedulerEnabled   bool
	ScriptsDir         string
	ErrorRateThreshold float64
	SeedFile           string

	RedisURL      string // empty selects the in-process lock
	ExternalDBDSN string // postgres DSN used by sql: scripts

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "coprox"),
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "coprox"),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),

		SchedulerEnabled:   getEnv("SCHEDULER_ENABLED", "true") == "true",
		ScriptsDir:         getEnv("SCRIPTS_DIR", "./scripts"),
		ErrorRateThreshold: getEnvFloat("ERROR_RATE_THRESHOLD", 0.1),
		SeedFile:           getEnv("SEED_FILE", "cmd/seed/data/cron_configs.yaml"),

		RedisURL:      getEnv("REDIS_URL", ""),
		ExternalDBDSN: getEnv("EXTERNAL_DB_DSN", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "coprox@localhost"),
	}, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}
