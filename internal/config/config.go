package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	EventSubjectBase       string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	ListingCacheTTL        time.Duration
	AIProvider             string
	OpenAIAPIKey           string
	OpenAIBaseURL          string
	OpenAIModel            string
	AIDetectorURL          string
	AIDetectorAPIKey       string
	AIFetchTimeout         time.Duration
	AIRequestTimeout       time.Duration
	PublishRateLimit       int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsDevelopment reports whether raw upstream error detail may be exposed to clients.
func (c Config) IsDevelopment() bool {
	env := strings.ToLower(strings.TrimSpace(c.AppEnv))
	return env == "development" || env == "dev" || env == "local"
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ERDUCATE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	v.SetDefault("app.name", "ERDucate API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "erducate")
	v.SetDefault("listing.cache_ttl", "5m")
	v.SetDefault("events.subject", "erducate")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.fetch_timeout", "8s")
	v.SetDefault("ai.request_timeout", "60s")
	v.SetDefault("ai.publish_rate_limit", 10)

	ttl, err := parseDuration(v, "listing.cache_ttl", 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid listing cache ttl: %w", err)
	}

	fetchTimeout, err := parseDuration(v, "ai.fetch_timeout", 8*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ai fetch timeout: %w", err)
	}

	requestTimeout, err := parseDuration(v, "ai.request_timeout", 60*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ai request timeout: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		EventSubjectBase:       strings.Trim(v.GetString("events.subject"), "."),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		ListingCacheTTL:        ttl,
		AIProvider:             strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		OpenAIBaseURL:          v.GetString("openai_base_url"),
		OpenAIModel:            v.GetString("ai.model"),
		AIDetectorURL:          v.GetString("ai.detector_url"),
		AIDetectorAPIKey:       v.GetString("ai.detector_api_key"),
		AIFetchTimeout:         fetchTimeout,
		AIRequestTimeout:       requestTimeout,
		PublishRateLimit:       v.GetInt("ai.publish_rate_limit"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.AIProvider {
	case "openai", "http":
	default:
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	if cfg.PublishRateLimit <= 0 {
		cfg.PublishRateLimit = 10
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
