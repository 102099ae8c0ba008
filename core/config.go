package core

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime settings for the API process.
type Config struct {
	Port            string        // HTTP listen port (e.g., "3000")
	AppEnv          string        // "production" turns on secure cookies by default
	DatabaseURL     string        // user store URL; scheme picks mongodb/postgres/memory
	DatabaseName    string        // Mongo database name
	UsersCollection string        // collection (Mongo) or table (Postgres) holding users
	SessionSecret   string        // cookie signing key
	SessionStore    string        // memory|redis
	RedisURL        string        // Redis URL (redis://host:port/db)
	SessionTTL      time.Duration // server-side session lifetime and cookie MaxAge
	CookieSecure    bool          // Whether to set Secure flag on session cookie
	CookieSameSite  string        // SameSite policy: Strict/Lax/None
	CSRFEnabled     bool          // validate CSRF token on unsafe methods
	AllowedOrigins  []string      // allowed origins for CORS/CSRF origin check
	StoreTimeout    time.Duration // bound on every user/session store call
	BcryptCost      int           // bcrypt work factor for new hashes
	LogDir          string        // Directory to write application logs; empty = stdout only
	StaticDir       string        // served under /public
}

// fileConfig is the optional YAML overlay referenced by CONFIG_FILE.
// Environment variables take precedence over anything set here.
type fileConfig struct {
	Port            string   `yaml:"port"`
	AppEnv          string   `yaml:"app_env"`
	DatabaseURL     string   `yaml:"database_url"`
	DatabaseName    string   `yaml:"database_name"`
	UsersCollection string   `yaml:"users_collection"`
	SessionSecret   string   `yaml:"session_secret"`
	SessionStore    string   `yaml:"session_store"`
	RedisURL        string   `yaml:"redis_url"`
	SessionTTL      string   `yaml:"session_ttl"`
	CookieSecure    *bool    `yaml:"cookie_secure"`
	CookieSameSite  string   `yaml:"cookie_samesite"`
	CSRFEnabled     *bool    `yaml:"csrf_enabled"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	StoreTimeout    string   `yaml:"store_timeout"`
	BcryptCost      int      `yaml:"bcrypt_cost"`
	LogDir          string   `yaml:"log_dir"`
	StaticDir       string   `yaml:"static_dir"`
}

// Load populates Config from CONFIG_FILE (if set) and environment variables.
// Secrets have no defaults; call Validate before using the result.
func Load() (Config, error) {
	var fc fileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	appEnv := firstNonEmpty(os.Getenv("APP_ENV"), fc.AppEnv, "development")
	cookieSecureDefault := strings.EqualFold(appEnv, "production")
	if fc.CookieSecure != nil {
		cookieSecureDefault = *fc.CookieSecure
	}
	csrfDefault := true
	if fc.CSRFEnabled != nil {
		csrfDefault = *fc.CSRFEnabled
	}
	origins := parseCSV(os.Getenv("ALLOWED_ORIGINS"))
	if len(origins) == 0 {
		origins = fc.AllowedOrigins
	}

	return Config{
		Port:            firstNonEmpty(os.Getenv("PORT"), fc.Port, "3000"),
		AppEnv:          appEnv,
		DatabaseURL:     firstNonEmpty(os.Getenv("MONGO_URI"), os.Getenv("DATABASE_URL"), fc.DatabaseURL),
		DatabaseName:    firstNonEmpty(os.Getenv("MONGO_DB"), fc.DatabaseName, "sampledb"),
		UsersCollection: firstNonEmpty(os.Getenv("USERS_COLLECTION"), fc.UsersCollection, "users"),
		SessionSecret:   firstNonEmpty(os.Getenv("SESSION_SECRET"), fc.SessionSecret),
		SessionStore:    strings.ToLower(firstNonEmpty(os.Getenv("SESSION_STORE"), fc.SessionStore, "memory")),
		RedisURL:        firstNonEmpty(os.Getenv("REDIS_URL"), fc.RedisURL, "redis://localhost:6379/0"),
		SessionTTL:      durationFromEnv("SESSION_TTL", durationOr(fc.SessionTTL, 5*time.Hour)),
		CookieSecure:    boolFromEnv("COOKIE_SECURE", cookieSecureDefault),
		CookieSameSite:  firstNonEmpty(os.Getenv("COOKIE_SAMESITE"), fc.CookieSameSite, "Lax"),
		CSRFEnabled:     boolFromEnv("CSRF_ENABLED", csrfDefault),
		AllowedOrigins:  origins,
		StoreTimeout:    durationFromEnv("STORE_TIMEOUT", durationOr(fc.StoreTimeout, 3*time.Second)),
		BcryptCost:      intFromEnv("BCRYPT_COST", intOr(fc.BcryptCost, DefaultBcryptCost)),
		LogDir:          firstNonEmpty(os.Getenv("LOG_DIR"), fc.LogDir),
		StaticDir:       firstNonEmpty(os.Getenv("STATIC_DIR"), fc.StaticDir, "./public"),
	}, nil
}

// Validate reports every missing required setting. Values are never echoed.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("missing MONGO_URI (or DATABASE_URL) in environment variables"))
	}
	if strings.TrimSpace(c.SessionSecret) == "" {
		errs = append(errs, errors.New("missing SESSION_SECRET in environment variables"))
	}
	switch c.SessionStore {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unsupported SESSION_STORE %q (want memory or redis)", c.SessionStore))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// boolFromEnv reads a boolean from env var name, falling back to defaultVal when empty or invalid.
func boolFromEnv(name string, defaultVal bool) bool {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// intFromEnv reads an int from env var name, falling back to defaultVal when empty or invalid.
func intFromEnv(name string, defaultVal int) int {
	if v := os.Getenv(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// durationFromEnv accepts Go durations ("90s") or plain seconds ("90").
func durationFromEnv(name string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, ok := parseDuration(v); ok {
			return d
		}
	}
	return defaultVal
}

func durationOr(s string, defaultVal time.Duration) time.Duration {
	if d, ok := parseDuration(s); ok {
		return d
	}
	return defaultVal
}

func parseDuration(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}

func intOr(v, defaultVal int) int {
	if v != 0 {
		return v
	}
	return defaultVal
}

// parseCSV splits comma-separated list and trims spaces; empty entries are skipped.
func parseCSV(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
