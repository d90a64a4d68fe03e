// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"trcinventory/internal/logger"
)

// Store drivers understood by the data layer.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverSupabase = "supabase"
)

// Variables available everywhere
var (
	AllowedOrigin string // For CORS
	ServerHost    string
	ServerPort    string
)

// StoreConfig selects and configures the backend behind the data-access wrapper.
type StoreConfig struct {
	Driver       string
	DatabasePath string
	MySQLDSN     string
	SupabaseURL  string
	SupabaseKey  string
}

// SessionConfig configures session tokens and login throttling.
type SessionConfig struct {
	Secret           []byte
	TTL              time.Duration
	LoginMaxAttempts int
	LoginWindow      time.Duration
	LoginLockout     time.Duration
}

//
// --- Utility Helpers ---
//

// Helper: get a setting based on ENVIRONMENT (dev or prod), falling back to the bare key
func GetEnvBasedSetting(base string) string {
	if v := os.Getenv(fmt.Sprintf("%s_%s", base, strings.ToUpper(Environment()))); v != "" {
		return v
	}
	return os.Getenv(base)
}

// Environment returns the running environment name, "dev" when unset.
func Environment() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	return env
}

// Helper: log which environment is running
func LogCurrentEnvironment() {
	if Environment() == "dev" {
		logger.LogInfo("Running in development environment")
	} else {
		logger.LogInfo("Running in %s environment", Environment())
	}
}

func getString(base, fallback string) string {
	if v := GetEnvBasedSetting(base); v != "" {
		return v
	}
	return fallback
}

func getInt(base string, fallback int) int {
	raw := GetEnvBasedSetting(base)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		logger.LogWarn("Invalid %s: %s, using default %d", base, raw, fallback)
		return fallback
	}
	return n
}

func getDuration(base string, fallback time.Duration) time.Duration {
	raw := GetEnvBasedSetting(base)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		logger.LogWarn("Invalid %s: %s, using default %v", base, raw, fallback)
		return fallback
	}
	return d
}

func getBool(base string, fallback bool) bool {
	raw := GetEnvBasedSetting(base)
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		logger.LogWarn("Invalid %s: %s, using default %t", base, raw, fallback)
		return fallback
	}
	return b
}

//
// --- Loaders ---
//

// LoadEnv reads .env file
func LoadEnv() {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("Could not determine working directory: %v", err)
	}

	err = godotenv.Load(".env")
	if err != nil {
		log.Printf("No .env file found in %s. Using system environment variables.", wd)
	} else {
		log.Printf("Loaded environment variables from .env file in %s", wd)
	}

	ServerHost = getString("SERVER_HOST", "127.0.0.1")
	ServerPort = getString("SERVER_PORT", "5051")
}

// LoggerConfig returns a logger.Config struct populated from environment
func LoggerConfig() logger.Config {
	return logger.Config{
		LogsDirectory: getString("LOGS_DIRECTORY", "./logs"),
		LogFileFormat: getString("LOG_FILE_FORMAT", "server_%Y-%m-%d.log"),
		TimeZone:      TimeZoneName(),
		Level:         getString("LOG_LEVEL", "INFO"),
	}
}

// LoadStoreConfig reads the backend selection and validates the fields that driver needs.
func LoadStoreConfig() (StoreConfig, error) {
	cfg := StoreConfig{
		Driver:       strings.ToLower(getString("STORE_DRIVER", DriverSQLite)),
		DatabasePath: getString("DATABASE_PATH", "./data/trc.db"),
		MySQLDSN:     GetEnvBasedSetting("MYSQL_DSN"),
		SupabaseURL:  GetEnvBasedSetting("SUPABASE_URL"),
		SupabaseKey:  GetEnvBasedSetting("SUPABASE_KEY"),
	}

	switch cfg.Driver {
	case DriverSQLite:
		logger.LogInfo("Using sqlite store at %s", cfg.DatabasePath)
	case DriverMySQL:
		if cfg.MySQLDSN == "" {
			return cfg, fmt.Errorf("MYSQL_DSN is required for the mysql store")
		}
		logger.LogInfo("Using mysql store")
	case DriverSupabase:
		if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
			return cfg, fmt.Errorf("SUPABASE_URL and SUPABASE_KEY are required for the supabase store")
		}
		logger.LogInfo("Using supabase store at %s", cfg.SupabaseURL)
	default:
		return cfg, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Driver)
	}
	return cfg, nil
}

// LoadSessionConfig reads the session signing secret and login throttle settings.
func LoadSessionConfig() (SessionConfig, error) {
	secret := GetEnvBasedSetting("SESSION_SECRET")
	if len(secret) < 32 {
		if Environment() != "dev" {
			return SessionConfig{}, fmt.Errorf("SESSION_SECRET must be at least 32 characters")
		}
		logger.LogWarn("SESSION_SECRET missing or short, using an insecure development secret")
		secret = "trc-dev-secret-change-me-0123456789abcdef"
	}

	return SessionConfig{
		Secret:           []byte(secret),
		TTL:              getDuration("SESSION_TTL", 12*time.Hour),
		LoginMaxAttempts: getInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindow:      getDuration("LOGIN_WINDOW", 15*time.Minute),
		LoginLockout:     getDuration("LOGIN_LOCKOUT", 15*time.Minute),
	}, nil
}

// LoadCORSConfig loads CORS settings
func LoadCORSConfig() {
	AllowedOrigin = GetEnvBasedSetting("ALLOWED_ORIGIN")
	if AllowedOrigin == "" {
		AllowedOrigin = "*" // Allow all - be careful in prod
		logger.LogWarn("ALLOWED_ORIGIN not set, using '*' (allow all origins) - SECURITY RISK")
	} else {
		logger.LogInfo("Allowed Origin: %s", AllowedOrigin)
	}
}

//
// --- Getters (exported) ---
//

// TimeZoneName is the zone used for "today" and log timestamps.
func TimeZoneName() string {
	return getString("TIME_ZONE", "Local")
}

// Location resolves TimeZoneName, falling back to time.Local.
func Location() *time.Location {
	name := TimeZoneName()
	if name == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.LogWarn("Failed to load time zone %s: %v, using Local", name, err)
		return time.Local
	}
	return loc
}

// AdminCredential returns the bootstrap account, empty when not configured.
func AdminCredential() (username, password string) {
	return GetEnvBasedSetting("ADMIN_USERNAME"), GetEnvBasedSetting("ADMIN_PASSWORD")
}

func CleanupEnabled() bool {
	return getBool("CLEANUP_ORPHANS", true)
}

func CleanupInterval() time.Duration {
	return getDuration("CLEANUP_INTERVAL", 6*time.Hour)
}

func ServerAddress() string {
	return ServerHost + ":" + ServerPort
}
