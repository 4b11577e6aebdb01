package config

import (
	"encoding/base64"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBDSN    string
	RedisDSN string
	HTTPAddr string
	LogLevel string

	// raw secrets kept in-memory only; never log these
	EncryptionKeyRaw string
	EncryptionKey    []byte // decoded from EncryptionKeyRaw
	AdminSecretKey   string
	CORSOrigins      []string

	SimplyPluralAPIURL    string
	SimplyPluralSocketURL string

	// website adapter publishes rendered pages to an S3/R2 bucket
	WebsiteBucket    string
	WebsiteEndpoint  string
	WebsitePublicURL string
	WebsiteRegion    string

	// the pinned-message editor needs a deployment-level companion bot
	DiscordStatusMessageAvailable bool
	DiscordStatusMessageURL       string

	RefreshInterval time.Duration
	AdapterTimeout  time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		DBDSN:                 os.Getenv("DB_DSN"),
		RedisDSN:              getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		HTTPAddr:              getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:              getenvDefault("LOG_LEVEL", "info"),
		AdminSecretKey:        getenvDefault("ADMIN_SECRET_KEY", ""),
		SimplyPluralAPIURL:    getenvDefault("SIMPLY_PLURAL_API_URL", "https://api.apparyllis.com"),
		SimplyPluralSocketURL: getenvDefault("SIMPLY_PLURAL_SOCKET_URL", "wss://api.apparyllis.com/v1/socket"),
		WebsiteBucket:         getenvDefault("WEBSITE_BUCKET", ""),
		WebsiteEndpoint:       getenvDefault("WEBSITE_ENDPOINT", ""),
		WebsitePublicURL:      getenvDefault("WEBSITE_PUBLIC_URL", ""),
		WebsiteRegion:         getenvDefault("WEBSITE_REGION", "auto"),
	}

	cfg.EncryptionKeyRaw = os.Getenv("ENCRYPTION_KEY")

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}

	// decode encryption key (base64, must be 32 bytes)
	if cfg.EncryptionKeyRaw == "" {
		return Config{}, errors.New("missing ENCRYPTION_KEY")
	}
	key, err := base64.StdEncoding.DecodeString(cfg.EncryptionKeyRaw)
	if err != nil {
		return Config{}, errors.New("ENCRYPTION_KEY must be valid base64")
	}
	if len(key) != 32 {
		return Config{}, errors.New("ENCRYPTION_KEY must be 32 bytes (256 bits)")
	}
	cfg.EncryptionKey = key

	cfg.DiscordStatusMessageAvailable = getenvBool("DISCORD_STATUS_MESSAGE_AVAILABLE", false)
	cfg.DiscordStatusMessageURL = getenvDefault("DISCORD_STATUS_MESSAGE_URL", "")
	if cfg.DiscordStatusMessageAvailable && cfg.DiscordStatusMessageURL == "" {
		return Config{}, errors.New("DISCORD_STATUS_MESSAGE_AVAILABLE requires DISCORD_STATUS_MESSAGE_URL")
	}

	refreshSeconds := getenvInt("REFRESH_INTERVAL_SECONDS", 60)
	if refreshSeconds < 5 {
		return Config{}, errors.New("REFRESH_INTERVAL_SECONDS must be at least 5")
	}
	cfg.RefreshInterval = time.Duration(refreshSeconds) * time.Second

	adapterSeconds := getenvInt("ADAPTER_TIMEOUT_SECONDS", 30)
	if adapterSeconds < 1 {
		return Config{}, errors.New("ADAPTER_TIMEOUT_SECONDS must be at least 1")
	}
	cfg.AdapterTimeout = time.Duration(adapterSeconds) * time.Second

	// parse CORS origins
	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(k string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}
