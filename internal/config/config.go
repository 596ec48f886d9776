// Package config loads settings from IPTV_DECK_* environment variables,
// optionally seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds provider, persistence, and server settings.
type Config struct {
	// Provider: either an Xtream panel (URL + credentials) or a direct
	// M3U playlist URL. Credentials pass through to the panel verbatim.
	ProviderURL  string
	ProviderUser string
	ProviderPass string
	M3UURL       string
	EPGURL       string // optional XMLTV feed

	// Persistence
	CatalogPath string // JSON snapshot path
	DBPath      string // SQLite snapshot path; "" disables the store

	// Behavior
	StrictPlaylist bool // error on malformed playlist structure instead of tolerating it
	FetchTimeout   time.Duration

	// Server
	ListenAddr string
}

// Load reads config from the environment. Call LoadEnvFile(".env") first
// to seed from a .env file.
func Load() *Config {
	c := &Config{
		ProviderURL:    strings.TrimSuffix(os.Getenv("IPTV_DECK_PROVIDER_URL"), "/"),
		ProviderUser:   os.Getenv("IPTV_DECK_PROVIDER_USER"),
		ProviderPass:   os.Getenv("IPTV_DECK_PROVIDER_PASS"),
		M3UURL:         os.Getenv("IPTV_DECK_M3U_URL"),
		EPGURL:         os.Getenv("IPTV_DECK_EPG_URL"),
		CatalogPath:    getEnv("IPTV_DECK_CATALOG", "./catalog.json"),
		DBPath:         os.Getenv("IPTV_DECK_DB"),
		StrictPlaylist: getEnvBool("IPTV_DECK_STRICT_PLAYLIST", false),
		FetchTimeout:   getEnvDuration("IPTV_DECK_FETCH_TIMEOUT", 90*time.Second),
		ListenAddr:     getEnv("IPTV_DECK_LISTEN", ":8089"),
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 90 * time.Second
	}
	return c
}

// HasXtream reports whether panel credentials are configured.
func (c *Config) HasXtream() bool {
	return c.ProviderURL != "" && c.ProviderUser != "" && c.ProviderPass != ""
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return defaultVal
}
