package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

// devJWTSecret is only used when JWT_SECRET is not provided.
const devJWTSecret = "super-secret-key-at-least-32-chars-long-for-dev"

type Config struct {
	Configuration struct {
		Port     string `envconfig:"PORT" default:"3001"`
		LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

		// Auth backend
		JWTSecret               string `envconfig:"JWT_SECRET" default:"super-secret-key-at-least-32-chars-long-for-dev"`
		JWTTTLInSeconds         int    `envconfig:"JWT_TTL_IN_SECONDS" default:"3600"`
		BcryptSaltRounds        int    `envconfig:"BCRYPT_SALT_ROUNDS" default:"12"`
		DatabaseURL             string `envconfig:"DATABASE_URL" default:""`
		UsersDBPath             string `envconfig:"USERS_DB_PATH" default:"data/users.db"`
		StatsDBPath             string `envconfig:"STATS_DB_PATH" default:"data/stats.db"`
		StatsAccessToken        string `envconfig:"STATS_ACCESS_TOKEN" default:""`
		AllowedOrigins          string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173"`
		AuthRateLimitMax        int    `envconfig:"AUTH_RATE_LIMIT_MAX" default:"5"`
		AuthRateLimitWindowSecs int    `envconfig:"AUTH_RATE_LIMIT_WINDOW_SECS" default:"900"`

		// Catalog
		CatalogBaseURL    string `envconfig:"CATALOG_BASE_URL" default:"https://itunes.apple.com/search"`
		CatalogTimeoutMs  int    `envconfig:"CATALOG_TIMEOUT_MS" default:"5000"`
		SearchLimit       int    `envconfig:"SEARCH_LIMIT" default:"50"`
		AutocompleteLimit int    `envconfig:"AUTOCOMPLETE_LIMIT" default:"10"`
		SuggestionCap     int    `envconfig:"SUGGESTION_CAP" default:"5"`
		MaxQueryLength    int    `envconfig:"MAX_QUERY_LENGTH" default:"100"`

		// Client
		ItemsPerPage    int    `envconfig:"ITEMS_PER_PAGE" default:"12"`
		FavItemsPerPage int    `envconfig:"FAV_ITEMS_PER_PAGE" default:"6"`
		DebounceDelayMs int    `envconfig:"DEBOUNCE_DELAY_MS" default:"300"`
		UndoWindowMs    int    `envconfig:"UNDO_WINDOW_MS" default:"5000"`
		SyncDelayMs     int    `envconfig:"SYNC_DELAY_MS" default:"300"`
		SkeletonCount   int    `envconfig:"SKELETON_COUNT" default:"8"`
		ClientDBPath    string `envconfig:"CLIENT_DB_PATH" default:"data/moodtunes.db"`
		ClientLogFile   string `envconfig:"MOODTUNES_LOG_FILE" default:"moodtunes.log"`
		AgentBridgeAddr string `envconfig:"AGENT_BRIDGE_ADDR" default:"127.0.0.1:3002"`
		AuthServerURL   string `envconfig:"AUTH_SERVER_URL" default:"http://localhost:3001"`
	}

	FeatureFlags struct {
		StoreCompression bool `envconfig:"FF_STORE_COMPRESSION" default:"false"`
	}
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Debugf("Error loading env config: %v", err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("Unable to load configuration")
	}

	return c
}

func Get() Config {
	return conf
}

// Validate checks values that would otherwise fail late at request time.
func (c Config) Validate() error {
	cfg := c.Configuration
	if len(cfg.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if cfg.BcryptSaltRounds < 10 {
		return fmt.Errorf("BCRYPT_SALT_ROUNDS must be at least 10, got %d", cfg.BcryptSaltRounds)
	}
	if cfg.AuthRateLimitMax <= 0 || cfg.AuthRateLimitWindowSecs <= 0 {
		return fmt.Errorf("auth rate limit must be positive (max=%d, window=%ds)", cfg.AuthRateLimitMax, cfg.AuthRateLimitWindowSecs)
	}
	if cfg.ItemsPerPage <= 0 || cfg.FavItemsPerPage <= 0 {
		return fmt.Errorf("page sizes must be positive")
	}
	if cfg.MaxQueryLength <= 0 {
		return fmt.Errorf("MAX_QUERY_LENGTH must be positive")
	}
	return nil
}

// UsesDevSecret reports whether the development JWT secret is in use.
func (c Config) UsesDevSecret() bool {
	return c.Configuration.JWTSecret == devJWTSecret
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.Configuration.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// AuthRateWindow returns the auth rate limit window as a duration.
func (c Config) AuthRateWindow() time.Duration {
	return time.Duration(c.Configuration.AuthRateLimitWindowSecs) * time.Second
}

func (c Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Configuration.CatalogTimeoutMs) * time.Millisecond
}

func (c Config) DebounceDelay() time.Duration {
	return time.Duration(c.Configuration.DebounceDelayMs) * time.Millisecond
}

func (c Config) UndoWindow() time.Duration {
	return time.Duration(c.Configuration.UndoWindowMs) * time.Millisecond
}

func (c Config) SyncDelay() time.Duration {
	return time.Duration(c.Configuration.SyncDelayMs) * time.Millisecond
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Configuration.JWTTTLInSeconds) * time.Second
}
