// Package config loads deal-tracker settings from the environment and the feeds file.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultActionSecret is used when no signing secret is configured. Links
// signed with it are only suitable for local development.
const DefaultActionSecret = "dev-secret-change-me"

// Config holds every environment-driven setting. Integrations whose settings
// are missing are disabled rather than treated as fatal.
type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`
	Port        int    `envconfig:"PORT" default:"8080"`
	BaseURL     string `envconfig:"APP_BASE_URL" default:"http://localhost:8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON     bool   `envconfig:"LOG_JSON" default:"false"`

	// Signed action links
	ActionSecret   string        `envconfig:"EMAIL_ACTION_SECRET"`
	ActionTokenTTL time.Duration `envconfig:"ACTION_TOKEN_TTL" default:"24h"`

	// Enrichment
	ScrapeDelay     time.Duration `envconfig:"SCRAPE_DELAY" default:"1s"`
	ScrapeTimeout   time.Duration `envconfig:"SCRAPE_TIMEOUT" default:"15s"`
	BrowserFallback bool          `envconfig:"BROWSER_FALLBACK" default:"false"`
	ExtractDelay    time.Duration `envconfig:"EXTRACT_DELAY" default:"1s"`
	ExtractMaxChars int           `envconfig:"EXTRACT_MAX_CHARS" default:"8000"`
	ExtractLimit    int           `envconfig:"EXTRACT_LIMIT" default:"5"`
	GeminiAPIKey    string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel     string        `envconfig:"GEMINI_MODEL"`

	// Ingestion
	FeedsFile   string        `envconfig:"FEEDS_FILE" default:"feeds.yaml"`
	FeedTimeout time.Duration `envconfig:"FEED_TIMEOUT" default:"15s"`
	ChatMaxURLs int           `envconfig:"CHAT_MAX_URLS" default:"5"`

	// Telegram
	TelegramToken        string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramAllowedUsers string `envconfig:"TELEGRAM_ALLOWED_USERS"`

	// Email digest
	SMTPHost        string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort        int    `envconfig:"SMTP_PORT" default:"465"`
	SMTPUser        string `envconfig:"GMAIL_ADDRESS"`
	SMTPPassword    string `envconfig:"GMAIL_APP_PASSWORD"`
	DigestRecipient string `envconfig:"DIGEST_RECIPIENT"`
	DigestLimit     int    `envconfig:"DIGEST_LIMIT" default:"20"`

	// Publication
	PublishDir string `envconfig:"PUBLISH_DIR" default:"site"`
	S3Bucket   string `envconfig:"S3_BUCKET"`
	S3Prefix   string `envconfig:"S3_PREFIX"`
	S3Endpoint string `envconfig:"S3_ENDPOINT"`
	S3Region   string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Key      string `envconfig:"S3_ACCESS_KEY"`
	S3Secret   string `envconfig:"S3_SECRET_KEY"`

	// Scheduler
	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 */4 * * *"`

	// Operator auth for the triage API
	JWTSecret          string `envconfig:"JWT_SECRET"`
	JWTExpirationHours int    `envconfig:"JWT_EXPIRATION_HOURS" default:"24"`
	AdminUsername      string `envconfig:"ADMIN_USERNAME" default:"editor"`
	AdminPasswordHash  string `envconfig:"ADMIN_PASSWORD_HASH"`
	BcryptCost         int    `envconfig:"BCRYPT_COST" default:"12"`
	PasswordPepper     string `envconfig:"PASSWORD_PEPPER"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks numeric ranges. Missing integration credentials are not errors.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config error: PORT out of range: %d", c.Port)
	}
	if c.ActionTokenTTL <= 0 {
		return fmt.Errorf("config error: ACTION_TOKEN_TTL must be positive")
	}
	if c.ExtractDelay < 0 || c.ScrapeDelay < 0 {
		return fmt.Errorf("config error: delays must be non-negative")
	}
	if c.ExtractMaxChars <= 0 {
		return fmt.Errorf("config error: EXTRACT_MAX_CHARS must be positive")
	}
	if c.ChatMaxURLs <= 0 {
		return fmt.Errorf("config error: CHAT_MAX_URLS must be positive")
	}
	return nil
}

// SigningSecret returns the action secret and whether it was explicitly configured.
func (c *Config) SigningSecret() (string, bool) {
	if c.ActionSecret == "" {
		return DefaultActionSecret, false
	}
	return c.ActionSecret, true
}

// SMTPEnabled reports whether the digest mailer has credentials.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPUser != "" && c.SMTPPassword != "" && c.DigestRecipient != ""
}

// S3Enabled reports whether published artifacts should be uploaded.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// AuthEnabled reports whether the triage API requires operator login.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}
