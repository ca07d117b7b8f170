package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string
	IsProduction bool

	// Session settings
	SessionSecret      string
	SessionMaxAge      int // seconds, cookie lifetime
	SessionIdleTimeout time.Duration

	// Directory service (LDAP)
	LDAPURL                string // e.g. "ldaps://dc01.domain.local:636"
	LDAPSearchBase         string
	LDAPGroup              string // authorization group, e.g. "ShareManagement"
	LDAPSearchUser         string // service account for the lookup bind
	LDAPSearchPassword     string
	LDAPTimeout            time.Duration
	LDAPInsecureSkipVerify bool

	// Open-file enumerator/terminator
	PowerShellPath string
	CommandTimeout time.Duration

	// Audit log store
	DatabaseDriver     string
	DatabaseDSN        string
	EnableAuditLogging bool
	AuditLogBufferSize int
	AuditLogRetention  time.Duration

	// Rate limiting
	EnableRateLimit          bool
	LoginRateLimit           int // requests per minute
	RateLimitStore           string
	RateLimitCleanupInterval time.Duration
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int

	// Metrics
	MetricsEnabled bool
	MetricsToken   string
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":9001"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:9001"),
		IsProduction: getEnvBool("IS_PRODUCTION", false),

		SessionSecret:      getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		SessionMaxAge:      getEnvInt("SESSION_MAX_AGE", 8*60*60), // 8 hours
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 15*time.Minute),

		LDAPURL:                getEnv("LDAP_URL", ""),
		LDAPSearchBase:         getEnv("LDAP_SEARCH_BASE", ""),
		LDAPGroup:              getEnv("LDAP_GROUP", "ShareManagement"),
		LDAPSearchUser:         getEnv("LDAP_SEARCH_USER", ""),
		LDAPSearchPassword:     getEnv("LDAP_SEARCH_PASSWORD", ""),
		LDAPTimeout:            getEnvDuration("LDAP_TIMEOUT", 10*time.Second),
		LDAPInsecureSkipVerify: getEnvBool("LDAP_INSECURE_SKIP_VERIFY", false),

		PowerShellPath: getEnv("POWERSHELL_PATH", "powershell"),
		CommandTimeout: getEnvDuration("COMMAND_TIMEOUT", 30*time.Second),

		DatabaseDriver:     getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:        getEnv("DATABASE_DSN", "openshares.db"),
		EnableAuditLogging: getEnvBool("ENABLE_AUDIT_LOGGING", true),
		AuditLogBufferSize: getEnvInt("AUDIT_LOG_BUFFER_SIZE", 1000),
		AuditLogRetention:  getEnvDuration("AUDIT_LOG_RETENTION", 90*24*time.Hour),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		LoginRateLimit:           getEnvInt("LOGIN_RATE_LIMIT", 10),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", "memory"),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 10*time.Minute),
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:            getEnv("REDIS_PASSWORD", ""),
		RedisDB:                  getEnvInt("REDIS_DB", 0),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),
		MetricsToken:   getEnv("METRICS_TOKEN", ""),
	}
}

// Validate checks that required settings are present and sane. Secrets
// are required from the environment, never from source.
func (c *Config) Validate() error {
	if c.LDAPURL == "" {
		return errors.New("LDAP_URL is required")
	}
	if !strings.HasPrefix(c.LDAPURL, "ldaps://") && !strings.HasPrefix(c.LDAPURL, "ldap://") {
		return fmt.Errorf("LDAP_URL must start with ldap:// or ldaps://, got %q", c.LDAPURL)
	}
	if c.LDAPSearchBase == "" {
		return errors.New("LDAP_SEARCH_BASE is required")
	}
	if c.LDAPGroup == "" {
		return errors.New("LDAP_GROUP is required")
	}
	if c.IsProduction && c.SessionSecret == "session-secret-change-in-production" {
		return errors.New("SESSION_SECRET must be set in production")
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive, got %d", c.SessionMaxAge)
	}
	switch c.RateLimitStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid RATE_LIMIT_STORE: %s (must be: memory, redis)", c.RateLimitStore)
	}
	return nil
}

// DenyMessage is the uniform user-facing message for every deny reason,
// so responses do not distinguish bad passwords from missing group
// membership or a directory outage.
func (c *Config) DenyMessage() string {
	return fmt.Sprintf("Invalid credentials or not part of the %s group.", c.LDAPGroup)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
