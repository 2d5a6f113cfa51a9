package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"invoicepilot/internal/core"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets ledger
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	GoogleOAuthClientFile    string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenFile     string
	OAuthRedirectPort        string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	// Invoicing
	TaxRate        float64
	CurrencySymbol string
	DefaultAccent  string
	ProfilePath    string

	// Draft sessions
	SessionTTL  time.Duration
	MaxSessions int

	// Suggestion service
	SuggestURL           string
	SuggestAPIKey        string
	SuggestTimeout       time.Duration
	SuggestClientName    string
	SuggestClientEmail   string
	SuggestRatePerMinute int
}

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/invoicepilot.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "invoicepilot"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_sync"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Invoices"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		OAuthRedirectPort:        getEnv("OAUTH_REDIRECT_PORT", "8085"),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second),

		TaxRate:        getEnvFloat("TAX_RATE", core.DefaultTaxRate),
		CurrencySymbol: getEnv("CURRENCY_SYMBOL", "₹"),
		DefaultAccent:  getEnv("DEFAULT_ACCENT", core.DefaultAccent),
		ProfilePath:    getEnv("PROFILE_PATH", "./data/profile.yaml"),

		SessionTTL:  getEnvDuration("SESSION_TTL", 2*time.Hour),
		MaxSessions: getEnvInt("MAX_SESSIONS", 1000),

		SuggestURL:           getEnv("SUGGEST_URL", ""),
		SuggestAPIKey:        getEnv("SUGGEST_API_KEY", ""),
		SuggestTimeout:       getEnvDuration("SUGGEST_TIMEOUT", 20*time.Second),
		SuggestClientName:    getEnv("SUGGEST_DEFAULT_CLIENT_NAME", "Client Name"),
		SuggestClientEmail:   getEnv("SUGGEST_DEFAULT_CLIENT_EMAIL", "client@email.com"),
		SuggestRatePerMinute: getEnvInt("SUGGEST_RATE_PER_MINUTE", 10),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate invoicing defaults
	if c.TaxRate < 0 || c.TaxRate > 1 {
		errors = append(errors, fmt.Sprintf("invalid tax rate %v: must be between 0 and 1", c.TaxRate))
	}
	if core.NormalizeAccent(c.DefaultAccent) != strings.ToLower(strings.TrimSpace(c.DefaultAccent)) {
		errors = append(errors, fmt.Sprintf("invalid default accent '%s': must be a CSS color", c.DefaultAccent))
	}
	if c.ProfilePath == "" {
		errors = append(errors, "profile path cannot be empty")
	}

	// Validate sessions
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.MaxSessions < 1 {
		errors = append(errors, fmt.Sprintf("invalid max sessions %d: must be at least 1", c.MaxSessions))
	}

	// Validate suggestion service if configured
	if c.SuggestURL != "" {
		if parsedURL, err := url.Parse(c.SuggestURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid suggest URL '%s': %v", c.SuggestURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid suggest URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	}
	if c.SuggestTimeout < time.Second || c.SuggestTimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid suggest timeout %v: must be between 1 second and 2 minutes", c.SuggestTimeout))
	}
	if c.SuggestRatePerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid suggest rate %d: must be at least 1 per minute", c.SuggestRatePerMinute))
	}

	// Validate worker configuration
	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateLedger checks the extra settings the ledger worker needs.
func (c *Config) ValidateLedger() error {
	var errors []string

	if c.DataBackend != "sqlite" {
		errors = append(errors, "ledger sync requires DATA_BACKEND=sqlite")
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for ledger sync")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for ledger sync")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required for ledger sync")
	}

	hasFile := c.GoogleServiceAccountFile != ""
	hasServiceAccount := hasFile || c.GoogleServiceAccountJSON != ""
	hasOAuth := c.GoogleOAuthTokenFile != "" && (c.GoogleOAuthClientFile != "" || c.GoogleOAuthClientJSON != "")
	if !hasServiceAccount && !hasOAuth {
		errors = append(errors, "either a service account (GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON) or an OAuth client with GOOGLE_OAUTH_TOKEN_FILE must be provided for ledger sync")
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if !hasServiceAccount && hasOAuth {
		if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("OAuth token file does not exist: %s (run invoicepilot-oauth-init)", c.GoogleOAuthTokenFile))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("ledger configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
