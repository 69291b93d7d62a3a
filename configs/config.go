package configs

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/contribution"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	Email      EmailConfig
	Hosting    HostingConfig
	Captcha    CaptchaConfig
	Moderation ModerationConfig
	Security   SecurityConfig
	RateLimit  RateLimitConfig
	Store      StoreConfig
}

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TLSCertFile    string
	TLSKeyFile     string
	AllowedOrigins []string
	Environment    string
	AdminAPIToken  string
	// CIDRs of reverse proxies allowed to set X-Forwarded-For. Empty means
	// the client address is always the socket peer.
	TrustedProxyCIDRs []string
	// Per-IP token bucket applied to the public API
	RequestsPerSecond float64
	RequestBurst      int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	DSN      string
	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// Enabled reports whether an audit database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.DSN != ""
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	// Pool and timeout settings
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration
	KeyPrefix    string
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

type EmailConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	SiteName       string
}

type HostingConfig struct {
	Token         string
	Owner         string
	Repo          string
	DefaultBranch string
	ContentRoot   string
	APIBaseURL    string
	Timeout       time.Duration
}

type CaptchaConfig struct {
	Secret    string
	VerifyURL string
	MinScore  float64
	Timeout   time.Duration
}

type ModerationConfig struct {
	APIKey         string // optional; empty selects fallback-only moderation
	BaseURL        string
	Model          string
	Timeout        time.Duration
	MaxContentRune int
}

type SecurityConfig struct {
	EncryptionSecret   string
	KeyDerivation      string // pad or hkdf
	TokenSigningSecret string
	TokenTTL           time.Duration
	CodeTTL            time.Duration
}

type RateLimitConfig struct {
	SubmissionMax     int
	SubmissionWindow  time.Duration
	CodeRequestMax    int
	CodeRequestWindow time.Duration
	CodeIPMax         int
	ConfirmMax        int
	ConfirmWindow     time.Duration
}

type StoreConfig struct {
	Backend string // redis or memory
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			Port:              getEnv("SERVER_PORT", "8080"),
			ReadTimeout:       getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:       getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			TLSCertFile:       getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:        getEnv("TLS_KEY_FILE", ""),
			AllowedOrigins:    getListEnv("ALLOWED_ORIGINS", []string{"*"}),
			Environment:       getEnv("APP_ENV", "development"),
			AdminAPIToken:     getEnv("ADMIN_API_TOKEN", ""),
			TrustedProxyCIDRs: getListEnv("TRUSTED_PROXY_CIDRS", nil),
			RequestsPerSecond: getFloatEnv("HTTP_RATE_RPS", 5),
			RequestBurst:      getIntEnv("HTTP_RATE_BURST", 20),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", ""),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "wiki_contributions"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			MigrationsPath:  getEnv("DB_MIGRATIONS_PATH", "./migrations"),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getDurationEnv("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:  getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
			KeyPrefix:    getEnv("REDIS_KEY_PREFIX", "wiki"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Email: EmailConfig{
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			FromEmail:      getEnv("FROM_EMAIL", "noreply@example.com"),
			FromName:       getEnv("FROM_NAME", "Wiki Contributions"),
			SiteName:       getEnv("SITE_NAME", "Game Wiki"),
		},
		Hosting: HostingConfig{
			Token:         getEnv("GITHUB_TOKEN", ""),
			Owner:         getEnv("GITHUB_OWNER", ""),
			Repo:          getEnv("GITHUB_REPO", ""),
			DefaultBranch: getEnv("GITHUB_DEFAULT_BRANCH", "main"),
			ContentRoot:   getEnv("CONTENT_ROOT", "content"),
			APIBaseURL:    getEnv("GITHUB_API_URL", ""),
			Timeout:       getDurationEnv("GITHUB_TIMEOUT", 15*time.Second),
		},
		Captcha: CaptchaConfig{
			Secret:    getEnv("CAPTCHA_SECRET", ""),
			VerifyURL: getEnv("CAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
			MinScore:  getFloatEnv("CAPTCHA_MIN_SCORE", 0.5),
			Timeout:   getDurationEnv("CAPTCHA_TIMEOUT", 5*time.Second),
		},
		Moderation: ModerationConfig{
			APIKey:         getEnv("MODERATION_API_KEY", ""),
			BaseURL:        getEnv("MODERATION_API_URL", "https://api.openai.com"),
			Model:          getEnv("MODERATION_MODEL", "omni-moderation-latest"),
			Timeout:        getDurationEnv("MODERATION_TIMEOUT", 5*time.Second),
			MaxContentRune: getIntEnv("MODERATION_MAX_CONTENT", 2000),
		},
		Security: SecurityConfig{
			EncryptionSecret:   getEnv("ENCRYPTION_SECRET", ""),
			KeyDerivation:      getEnv("ENCRYPTION_KEY_DERIVATION", "pad"),
			TokenSigningSecret: getEnv("TOKEN_SIGNING_SECRET", ""),
			TokenTTL:           getDurationEnv("VERIFICATION_TOKEN_TTL", 24*time.Hour),
			CodeTTL:            getDurationEnv("VERIFICATION_CODE_TTL", 10*time.Minute),
		},
		RateLimit: RateLimitConfig{
			SubmissionMax:     getIntEnv("RATE_LIMIT_SUBMISSIONS", 5),
			SubmissionWindow:  getDurationEnv("RATE_LIMIT_SUBMISSION_WINDOW", time.Hour),
			CodeRequestMax:    getIntEnv("RATE_LIMIT_CODE_REQUESTS", 3),
			CodeRequestWindow: getDurationEnv("RATE_LIMIT_CODE_WINDOW", 10*time.Minute),
			CodeIPMax:         getIntEnv("RATE_LIMIT_CODE_REQUESTS_PER_IP", 10),
			ConfirmMax:        getIntEnv("RATE_LIMIT_CONFIRM_ATTEMPTS", 5),
			ConfirmWindow:     getDurationEnv("RATE_LIMIT_CONFIRM_WINDOW", 10*time.Minute),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", "redis")),
		},
	}

	// Build database DSN only when a host is configured; the audit table is optional
	if cfg.Database.Host != "" {
		cfg.Database.DSN = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.DBName,
			cfg.Database.SSLMode,
		)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every required secret is present. The returned error
// names the missing variable, never a value.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"GITHUB_TOKEN", c.Hosting.Token},
		{"GITHUB_OWNER", c.Hosting.Owner},
		{"GITHUB_REPO", c.Hosting.Repo},
		{"SENDGRID_API_KEY", c.Email.SendGridAPIKey},
		{"CAPTCHA_SECRET", c.Captcha.Secret},
		{"ENCRYPTION_SECRET", c.Security.EncryptionSecret},
		{"TOKEN_SIGNING_SECRET", c.Security.TokenSigningSecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &contribution.ConfigurationError{Key: r.key}
		}
	}
	for _, cidr := range c.Server.TrustedProxyCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return &contribution.ConfigurationError{Key: "TRUSTED_PROXY_CIDRS"}
		}
	}
	switch c.Store.Backend {
	case "redis", "memory":
	default:
		return &contribution.ConfigurationError{Key: "STORE_BACKEND"}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
