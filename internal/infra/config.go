package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv              string
	Port                string
	DatabaseURL         string
	JWTSecret           string
	StoragePath         string
	StorageBaseURL      string
	GeoIPDBPath         string
	GoogleClientID      string
	GoogleIssuer        string
	StripeSecretKey     string
	StripeBaseURL       string
	StripePriceID       string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	AvatarBaseURL       string
	FreeDownloadLimit   int
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
	RateLimitPerMin     int
	WorkerPollInterval  time.Duration
	ReconcileInterval   time.Duration
	DefaultLocale       string
	CORSAllowedOrigin   string
	DownloadURLLifetime time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		StoragePath:         getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:      getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		GeoIPDBPath:         os.Getenv("GEOIP_DB_PATH"),
		GoogleClientID:      os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleIssuer:        getEnv("GOOGLE_ISSUER", "https://accounts.google.com"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeBaseURL:       getEnv("STRIPE_BASE_URL", "https://api.stripe.com"),
		StripePriceID:       os.Getenv("STRIPE_PRICE_ID"),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:5173/success?session_id={CHECKOUT_SESSION_ID}"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", "http://localhost:5173/"),
		AvatarBaseURL:       getEnv("AVATAR_BASE_URL", "https://api.dicebear.com/9.x/shapes/svg"),
		FreeDownloadLimit:   getEnvInt("FREE_DOWNLOAD_LIMIT", 5),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		WorkerPollInterval:  time.Second * time.Duration(getEnvInt("WORKER_POLL_SECONDS", 2)),
		ReconcileInterval:   time.Minute * time.Duration(getEnvInt("RECONCILE_INTERVAL_MINUTES", 10)),
		DefaultLocale:       getEnv("DEFAULT_LOCALE", "es"),
		CORSAllowedOrigin:   getEnv("CORS_ALLOWED_ORIGIN", "*"),
		DownloadURLLifetime: time.Minute * time.Duration(getEnvInt("DOWNLOAD_URL_LIFETIME_MINUTES", 15)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.FreeDownloadLimit <= 0 {
		return nil, fmt.Errorf("FREE_DOWNLOAD_LIMIT must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
