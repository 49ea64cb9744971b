package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jobeco/fairprice/internal/database"
	apperrors "github.com/jobeco/fairprice/pkg/errors"
)

// EnvPrefix namespaces environment overrides, e.g. FAIRPRICE_SERVER_PORT.
const EnvPrefix = "FAIRPRICE"

// Environments recognised by server.environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config represents the runtime configuration for the Fair Price backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	App         AppConfig         `mapstructure:"app"`
	Invitations InvitationConfig  `mapstructure:"invitations"`
	Uploads     UploadConfig      `mapstructure:"uploads"`
	Email       EmailConfig       `mapstructure:"email"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	Environment string `mapstructure:"environment"`
	MaxBodySize int64  `mapstructure:"max_body_size"`
}

// IsDevelopment reports whether relaxed defaults such as generated secrets apply.
func (c ServerConfig) IsDevelopment() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "" || env == EnvDevelopment
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string            `mapstructure:"driver"`
	Path     string            `mapstructure:"path"`
	DSN      string            `mapstructure:"dsn"`
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Name     string            `mapstructure:"name"`
	User     string            `mapstructure:"user"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT               JWTSettings     `mapstructure:"jwt"`
	PasswordMinLength int             `mapstructure:"password_min_length"`
	LoginRateLimit    RateLimitConfig `mapstructure:"login_rate_limit"`
}

// JWTSettings configures login tokens.
type JWTSettings struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// RateLimitConfig bounds attempts per client within a window.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	// Store selects the counter backend: memory or database.
	Store string `mapstructure:"store"`
}

// AppConfig holds public facing settings.
type AppConfig struct {
	URL         string   `mapstructure:"url"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// InvitationConfig controls group invitations.
type InvitationConfig struct {
	Expiry time.Duration `mapstructure:"expiry"`
}

// UploadConfig selects where job and quote attachments are stored.
type UploadConfig struct {
	Backend           string   `mapstructure:"backend"`
	Dir               string   `mapstructure:"dir"`
	MaxSize           int64    `mapstructure:"max_size"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	S3                S3Config `mapstructure:"s3"`
}

// S3Config holds bucket settings for the s3 upload backend.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	Provider string      `mapstructure:"provider"`
	From     string      `mapstructure:"from"`
	OAuth    OAuthConfig `mapstructure:"oauth"`
	SMTP     SMTPConfig  `mapstructure:"smtp"`
}

// OAuthConfig holds the Gmail API OAuth2 client and refresh token.
type OAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MaintenanceConfig holds cron schedules for background cleanup.
type MaintenanceConfig struct {
	InvitationCleanupSchedule string `mapstructure:"invitation_cleanup_schedule"`
	CacheCleanupSchedule      string `mapstructure:"cache_cleanup_schedule"`
}

// Email providers.
const (
	EmailProviderGmail    = "gmail"
	EmailProviderSMTP     = "smtp"
	EmailProviderDisabled = "disabled"
)

// Upload backends.
const (
	UploadBackendLocal = "local"
	UploadBackendS3    = "s3"
)

// LoadConfig initialises application configuration using Viper with sensible defaults.
// A .env file in the working directory is loaded first when present.
func LoadConfig(paths ...string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// loadDotEnv never overrides variables already present in the environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "")
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.max_body_size", 32<<20)

	v.SetDefault("database.driver", database.DriverSQLite)
	v.SetDefault("database.path", "./data/fairprice.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "fairprice")
	v.SetDefault("auth.jwt.token_ttl", "24h")
	v.SetDefault("auth.password_min_length", 6)
	v.SetDefault("auth.login_rate_limit.requests", 5)
	v.SetDefault("auth.login_rate_limit.window", "5m")
	v.SetDefault("auth.login_rate_limit.store", "memory")

	v.SetDefault("app.url", "http://localhost:8000")
	v.SetDefault("app.cors_origins", []string{})

	v.SetDefault("invitations.expiry", "168h")

	v.SetDefault("uploads.backend", UploadBackendLocal)
	v.SetDefault("uploads.dir", "./uploads")
	v.SetDefault("uploads.max_size", 16<<20)
	v.SetDefault("uploads.allowed_extensions", []string{"pdf", "png", "jpg", "jpeg", "gif", "doc", "docx", "txt"})
	v.SetDefault("uploads.s3.bucket", "")
	v.SetDefault("uploads.s3.region", "")
	v.SetDefault("uploads.s3.access_key_id", "")
	v.SetDefault("uploads.s3.secret_access_key", "")
	v.SetDefault("uploads.s3.prefix", "")
	v.SetDefault("uploads.s3.endpoint", "")
	v.SetDefault("uploads.s3.use_path_style", false)

	v.SetDefault("email.provider", EmailProviderGmail)
	v.SetDefault("email.from", "")
	v.SetDefault("email.oauth.client_id", "")
	v.SetDefault("email.oauth.client_secret", "")
	v.SetDefault("email.oauth.refresh_token", "")
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("maintenance.invitation_cleanup_schedule", "@hourly")
	v.SetDefault("maintenance.cache_cleanup_schedule", "@every 10m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c == nil {
		return apperrors.NewConfiguration("config is nil")
	}

	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "", database.DriverSQLite, "sqlite3", database.DriverPostgres, "postgresql", "pg", database.DriverMySQL, "mariadb":
	default:
		return apperrors.NewConfiguration(fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}

	if strings.TrimSpace(c.Auth.JWT.Secret) == "" && !c.Server.IsDevelopment() {
		return apperrors.NewConfiguration("auth.jwt.secret is required outside development")
	}

	switch strings.ToLower(strings.TrimSpace(c.Email.Provider)) {
	case "", EmailProviderGmail, EmailProviderSMTP, EmailProviderDisabled:
	default:
		return apperrors.NewConfiguration(fmt.Sprintf("unsupported email provider %q", c.Email.Provider))
	}

	switch strings.ToLower(strings.TrimSpace(c.Uploads.Backend)) {
	case "", UploadBackendLocal:
	case UploadBackendS3:
		if strings.TrimSpace(c.Uploads.S3.Bucket) == "" {
			return apperrors.NewConfiguration("uploads.s3.bucket is required for the s3 backend")
		}
	default:
		return apperrors.NewConfiguration(fmt.Sprintf("unsupported upload backend %q", c.Uploads.Backend))
	}

	return nil
}

// DatabaseSettings converts DatabaseConfig into the database package representation.
func (c DatabaseConfig) DatabaseSettings() database.Config {
	return database.Config{
		Driver:   c.Driver,
		Path:     c.Path,
		DSN:      c.DSN,
		Host:     c.Host,
		Port:     c.Port,
		Name:     c.Name,
		User:     c.User,
		Password: c.Password,
		Options:  c.Options,
	}
}
