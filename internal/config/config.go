package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DB        DBConfig
	WebAuthn  WebAuthnConfig
	JWT       JWTConfig
	Apps      AppsConfig
	Challenge ChallengeConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	Server    ServerConfig
	Audit     AuditConfig
	RateLimit RateLimitConfig
}

type DBConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	// Path is the sqlite file used when Driver is "sqlite".
	Path string
}

type WebAuthnConfig struct {
	RPID          string
	RPDisplayName string
	RPOrigins     []string
}

type JWTConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type AppsConfig struct {
	Allowed  []string
	TokenTTL time.Duration
}

type ChallengeConfig struct {
	Backend       string
	TTL           time.Duration
	SweepInterval time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type ServerConfig struct {
	Port        string
	RoutePrefix string
}

type AuditConfig struct {
	ExportInterval time.Duration
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

const (
	ChallengeBackendDatabase = "database"
	ChallengeBackendRedis    = "redis"
)

// Load reads the process environment, after merging any .env file found in
// the working directory.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DB: DBConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "authapi"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "authapi"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "authapi.db"),
		},
		WebAuthn: WebAuthnConfig{
			RPID:          getEnv("RP_ID", ""),
			RPDisplayName: getEnv("RP_NAME", ""),
			RPOrigins:     getEnvAsList("RP_ORIGINS", nil),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			AccessTTL:  getEnvAsDuration("JWT_ACCESS_TTL", time.Hour),
			RefreshTTL: getEnvAsDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
		},
		Apps: AppsConfig{
			Allowed:  getEnvAsList("ALLOWED_APPS", []string{"notes", "calculator", "chat", "games"}),
			TokenTTL: getEnvAsDuration("APP_TOKEN_TTL", time.Hour),
		},
		Challenge: ChallengeConfig{
			Backend:       getEnv("CHALLENGE_BACKEND", ChallengeBackendDatabase),
			TTL:           getEnvAsDuration("CHALLENGE_TTL", 5*time.Minute),
			SweepInterval: getEnvAsDuration("CHALLENGE_SWEEP_INTERVAL", time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "authapi-audit"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			RoutePrefix: getEnv("ROUTE_PREFIX", "/auth-api"),
		},
		Audit: AuditConfig{
			ExportInterval: getEnvAsDuration("AUDIT_EXPORT_INTERVAL", time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 60),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.WebAuthn.RPID == "" {
		errs = append(errs, errors.New("RP_ID is required"))
	}
	if c.WebAuthn.RPDisplayName == "" {
		errs = append(errs, errors.New("RP_NAME is required"))
	}
	if len(c.WebAuthn.RPOrigins) == 0 {
		errs = append(errs, errors.New("RP_ORIGINS is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.DB.Driver {
	case "postgres":
		if c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "" {
			errs = append(errs, errors.New("DB_HOST, DB_USER and DB_NAME are required for postgres"))
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver))
	}
	switch c.Challenge.Backend {
	case ChallengeBackendDatabase, ChallengeBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unsupported CHALLENGE_BACKEND %q", c.Challenge.Backend))
	}
	if c.Challenge.TTL <= 0 {
		errs = append(errs, errors.New("CHALLENGE_TTL must be positive"))
	}
	if len(c.Apps.Allowed) == 0 {
		errs = append(errs, errors.New("ALLOWED_APPS must name at least one application"))
	}
	if c.Server.RoutePrefix != "" && !strings.HasPrefix(c.Server.RoutePrefix, "/") {
		errs = append(errs, errors.New("ROUTE_PREFIX must start with /"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
