package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

var envOnce sync.Once

// LoadEnvOnce loads a .env file once per process. Deployments that
// inject real environment variables simply have no .env file.
func LoadEnvOnce() {
	envOnce.Do(func() {
		for _, path := range []string{".env", "../.env"} {
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := godotenv.Load(path); err == nil {
				log.Printf("environment loaded from %s", path)
				return
			}
		}
	})
}

// GetEnvWithFallback returns the variable's value, or fallback when it
// is unset or empty.
func GetEnvWithFallback(key, fallback string) string {
	LoadEnvOnce()
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// GetEnvBool reads a boolean-ish environment variable.
func GetEnvBool(key string, fallback bool) bool {
	LoadEnvOnce()
	switch os.Getenv(key) {
	case "":
		return fallback
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
