package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	defaultSwaggerUser     = "admin"
	defaultSwaggerPassword = "admin"
	minJWTSecretBytes      = 32
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	JWTIssuer       string        `mapstructure:"JWT_ISSUER"`
	JWTExpiresIn    time.Duration `mapstructure:"JWT_EXPIRES_IN"`
	BcryptCost      int           `mapstructure:"BCRYPT_COST"`
	SwaggerUser     string        `mapstructure:"SWAGGER_USER"`
	SwaggerPassword string        `mapstructure:"SWAGGER_PASSWORD"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit       string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	SMTPHost        string        `mapstructure:"SMTP_HOST"`
	SMTPPort        int           `mapstructure:"SMTP_PORT"`
	SMTPUsername    string        `mapstructure:"SMTP_USERNAME"`
	SMTPPassword    string        `mapstructure:"SMTP_PASSWORD"`
	MailFrom        string        `mapstructure:"MAIL_FROM"`
	TLSEnabled      bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile     string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile      string        `mapstructure:"TLS_KEY_FILE"`
}

var keys = []string{
	"PORT", "ENV",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL",
	"JWT_SECRET", "JWT_ISSUER", "JWT_EXPIRES_IN", "BCRYPT_COST",
	"SWAGGER_USER", "SWAGGER_PASSWORD",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT", "REQUEST_TIMEOUT",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "MAIL_FROM",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

// Load reads configuration from the environment and an optional .env file in
// the working directory. Environment variables win over the file.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is ignored.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "3000")
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("JWT_ISSUER", "curakidney")
	v.SetDefault("JWT_EXPIRES_IN", "1h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SWAGGER_USER", defaultSwaggerUser)
	v.SetDefault("SWAGGER_PASSWORD", defaultSwaggerPassword)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("MAIL_FROM", "CuraKidney <no-reply@curakidney.com>")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == EnvDevelopment
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// UsesDefaultSwaggerCredentials reports whether the docs are protected by the
// built-in admin/admin pair.
func (c *Config) UsesDefaultSwaggerCredentials() bool {
	return c.SwaggerUser == defaultSwaggerUser && c.SwaggerPassword == defaultSwaggerPassword
}

// Validate checks that the configuration is safe to run. In production
// JWT_SECRET must hold at least 32 bytes and the docs credentials must be
// changed from their defaults.
func (c *Config) Validate() error {
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if len(c.JWTSecret) < minJWTSecretBytes {
			return fmt.Errorf("JWT_SECRET must be at least %d bytes, got %d", minJWTSecretBytes, len(c.JWTSecret))
		}
		if c.UsesDefaultSwaggerCredentials() {
			return fmt.Errorf("SWAGGER_USER and SWAGGER_PASSWORD must be changed from their defaults in production")
		}
	}
	if c.SwaggerUser == "" || c.SwaggerPassword == "" {
		return fmt.Errorf("SWAGGER_USER and SWAGGER_PASSWORD must not be empty")
	}

	if c.JWTExpiresIn <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive, got %s", c.JWTExpiresIn)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
