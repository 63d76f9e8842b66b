package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	Port           string
	PostgresURL    string
	JWTKey         string
	AllowedOrigins []string
	Debug          bool
}

// Load reads the server configuration from the environment. Missing
// required variables are an error so main can refuse to start.
func Load() (Config, error) {
	cfg := Config{
		Port:  "8080",
		Debug: os.Getenv("DEBUG") == "true",
	}

	if port, ok := os.LookupEnv("PORT"); ok {
		cfg.Port = port
	}

	postgresURL, ok := os.LookupEnv("POSTGRES_URL")
	if !ok {
		return Config{}, fmt.Errorf("missing required environment variable POSTGRES_URL")
	}
	cfg.PostgresURL = postgresURL

	jwtKey, ok := os.LookupEnv("JWT_KEY")
	if !ok {
		return Config{}, fmt.Errorf("missing required environment variable JWT_KEY")
	}
	cfg.JWTKey = jwtKey

	origins, ok := os.LookupEnv("ALLOWED_ORIGINS")
	if !ok {
		return Config{}, fmt.Errorf("missing required environment variable ALLOWED_ORIGINS")
	}
	for _, origin := range strings.Split(origins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}
	if len(cfg.AllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("ALLOWED_ORIGINS must list at least one origin")
	}

	return cfg, nil
}
