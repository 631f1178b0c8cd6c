package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
	ModeDebug   Mode = "debug"
)

type Config struct {
	Mode      Mode   `yaml:"mode" validate:"oneof=offline online debug"`
	HTTPAddr  string `yaml:"http_addr" validate:"required"`
	PublicURL string `yaml:"public_url"`
	LogLevel  string `yaml:"log_level" validate:"oneof=trace debug info warn error"`
	SiteID    string `yaml:"site_id" validate:"required"`

	DBDriver string `yaml:"db_driver" validate:"oneof=sqlite postgres"`
	DBDSN    string `yaml:"db_dsn"`

	BlobBasePath string `yaml:"blob_base_path" validate:"required"`
	// MaxAudioBytes caps a single audio upload.
	MaxAudioBytes int64 `yaml:"max_audio_bytes" validate:"gt=0"`

	JWTSecret  string `yaml:"jwt_secret" validate:"required,min=16"`
	JWTTTLHour int    `yaml:"jwt_ttl_hours" validate:"gt=0"`

	AdminEmail    string `yaml:"admin_email" validate:"required,email"`
	AdminName     string `yaml:"admin_name"`
	AdminPassHash string `yaml:"admin_pass_hash" validate:"required_without=AdminPassword"` // bcrypt
	// AdminPassword is hashed at startup when no hash is configured.
	AdminPassword string `yaml:"admin_password"`

	CORSOrigins []string `yaml:"cors_origins" validate:"dive,required"`
}

func defaults() Config {
	return Config{
		Mode:          ModeOffline,
		HTTPAddr:      ":8080",
		LogLevel:      "info",
		SiteID:        "local",
		DBDriver:      "sqlite",
		BlobBasePath:  "./data",
		MaxAudioBytes: 20 << 20,
		JWTSecret:     "dev-secret-change-me-please",
		JWTTTLHour:    8,
		AdminEmail:    "admin@example.com",
		AdminName:     "Administrator",
		AdminPassword: "admin",
		CORSOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE (if
// set), then the environment. Later sources win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.overlayEnv()
	if cfg.Mode == ModeDebug && os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv is Load without a file overlay or validation; handy in tests.
func FromEnv() Config {
	cfg := defaults()
	cfg.overlayEnv()
	return cfg
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) overlayEnv() {
	c.Mode = Mode(envOr("MODE", string(c.Mode)))
	c.HTTPAddr = envOr("HTTP_ADDR", c.HTTPAddr)
	c.PublicURL = envOr("PUBLIC_URL", c.PublicURL)
	c.LogLevel = strings.ToLower(envOr("LOG_LEVEL", c.LogLevel))
	c.SiteID = envOr("SITE_ID", c.SiteID)
	c.DBDriver = envOr("DB_DRIVER", c.DBDriver)
	c.DBDSN = envOr("DB_DSN", c.DBDSN)
	c.BlobBasePath = envOr("BLOB_BASE_PATH", c.BlobBasePath)
	c.JWTSecret = envOr("JWT_SECRET", c.JWTSecret)
	c.AdminEmail = envOr("ADMIN_EMAIL", c.AdminEmail)
	c.AdminName = envOr("ADMIN_NAME", c.AdminName)
	c.AdminPassHash = envOr("ADMIN_PASS_HASH", c.AdminPassHash)
	c.AdminPassword = envOr("ADMIN_PASSWORD", c.AdminPassword)
	c.JWTTTLHour = envInt("JWT_TTL_HOURS", c.JWTTTLHour)
	c.MaxAudioBytes = int64(envInt("MAX_AUDIO_BYTES", int(c.MaxAudioBytes)))
	c.CORSOrigins = csvOr("CORS_ORIGINS", c.CORSOrigins)
}

var validate = validator.New()

func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return n
}

func csvOr(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
