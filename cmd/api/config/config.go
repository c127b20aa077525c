package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                string
	DataDir             string
	DockerHost          string
	DockerAPIVersion    string
	DockerTLSCertPath   string
	DockerTLSVerify     bool
	JwtSecret           string
	MaxConcurrentBuilds int
}

// Load loads configuration from environment variables
// Automatically loads .env file if present
func Load() *Config {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		DataDir:             getEnv("DATA_DIR", "/var/lib/trainstack"),
		DockerHost:          getEnv("DOCKER_HOST", ""),
		DockerAPIVersion:    getEnv("DOCKER_API_VERSION", ""),
		DockerTLSCertPath:   getEnv("DOCKER_TLS_CERT_PATH", ""),
		DockerTLSVerify:     getEnvBool("DOCKER_TLS_VERIFY", false),
		JwtSecret:           getEnv("JWT_SECRET", ""),
		MaxConcurrentBuilds: getEnvInt("MAX_CONCURRENT_BUILDS", 2),
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
