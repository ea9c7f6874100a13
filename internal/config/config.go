// Package config carga la configuración del servicio desde YAML con overrides
// por variable de entorno para los secretos (PEMs, API keys, SMTP password).
package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		BaseURL            string   `yaml:"base_url"` // URL pública para links de verificación
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // postgres | memory
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		ConferenceTTL time.Duration `yaml:"conference_ttl"`
	} `yaml:"cache"`

	// Material de firma de tickets. Los PEMs pueden venir con `\n` literales
	// (artefacto de .env de una sola línea); keys.NormalizePEM los arregla.
	Keys struct {
		PrivatePEM string `yaml:"private_pem"` // env QR_PRIVATE_KEY_PEM
		PublicPEM  string `yaml:"public_pem"`  // env QR_PUBLIC_KEY_PEM (verificador standalone)
	} `yaml:"keys"`

	Conference struct {
		Slug string `yaml:"slug"`
	} `yaml:"conference"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Admin struct {
		APIKey string `yaml:"api_key"` // env ADMIN_SECRET_KEY
	} `yaml:"admin"`

	Gate struct {
		// Keys en claro solo para dev/tests; en prod van bcrypt-hashed en DB.
		DevKeys []string `yaml:"dev_keys"`
	} `yaml:"gate"`

	Rate struct {
		Enabled  bool `yaml:"enabled"`
		Register struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"register"`
	} `yaml:"rate"`
}

// Load lee el YAML (si path no está vacío), aplica overrides de entorno y
// defaults razonables.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyEnv()

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost" + c.Server.Addr
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.ConferenceTTL == 0 {
		c.Cache.ConferenceTTL = 2 * time.Minute
	}
	if c.Conference.Slug == "" {
		c.Conference.Slug = "annual-conference"
	}
	if c.Rate.Register.Limit == 0 {
		c.Rate.Register.Limit = 10
	}
	if c.Rate.Register.Window == "" {
		c.Rate.Register.Window = "1m"
	}

	return &c, nil
}

// applyEnv pisa config con variables de entorno (los secretos nunca van al YAML
// en deploys reales).
func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.App.Env, "APP_ENV")
	set(&c.Server.Addr, "KONFERA_ADDR")
	set(&c.Server.BaseURL, "SITE_BASE_URL")
	set(&c.Storage.DSN, "DATABASE_URL")
	set(&c.Keys.PrivatePEM, "QR_PRIVATE_KEY_PEM")
	set(&c.Keys.PublicPEM, "QR_PUBLIC_KEY_PEM")
	set(&c.Admin.APIKey, "ADMIN_SECRET_KEY")
	set(&c.Conference.Slug, "CONFERENCE_SLUG")
	set(&c.SMTP.Password, "SMTP_PASSWORD")
	set(&c.Cache.Redis.Addr, "REDIS_ADDR")
}

// RegisterWindow parsea la ventana del rate limit de registro.
func (c *Config) RegisterWindow() time.Duration {
	d, err := time.ParseDuration(c.Rate.Register.Window)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}
