// Package config reads server settings from the environment.
// main loads a .env file first (godotenv), so values there apply too.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable of the server.
type Config struct {
	Port         string
	LogLevel     string
	DBPath       string
	CatAPIURL    string
	CatAPIKey    string
	CatHosts     []string
	GameBatch    int
	GalleryBatch int
	ClientOrigin string
	TicketSecret string
	SessionIdle  time.Duration
	Production   bool
}

// Load reads Config from the environment, applying defaults.
func Load() Config {
	return Config{
		Port:         GetEnv("PORT", "5175"),
		LogLevel:     GetEnv("LOG_LEVEL", "info"),
		DBPath:       GetEnv("DB_PATH", "./data/catcatch.db"),
		CatAPIURL:    GetEnv("CAT_API_URL", "https://api.thecatapi.com/v1"),
		CatAPIKey:    GetEnv("CAT_API_KEY", ""),
		CatHosts:     splitList(GetEnv("CAT_HOSTS", "cdn2.thecatapi.com")),
		GameBatch:    GetEnvInt("GAME_BATCH", 10),
		GalleryBatch: GetEnvInt("GALLERY_BATCH", 20),
		ClientOrigin: GetEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		TicketSecret: GetEnv("TICKET_SECRET", "dev_secret_change_me"),
		SessionIdle:  time.Duration(GetEnvInt("SESSION_IDLE_MINUTES", 30)) * time.Minute,
		Production:   os.Getenv("NODE_ENV") == "production",
	}
}

// GetEnv returns the value of the environment variable named by the key,
// or fallback if the variable is not set or empty.
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetEnvInt is GetEnv for positive integers; junk falls back too.
func GetEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
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
