package config

import (
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// MinSecretLength is the shortest token signing secret the server accepts
const MinSecretLength = 16

var (
	ErrMissingSecret = errors.New("web secret is not set, configure web.secret or SOUQ_WEB_SECRET")
	ErrWeakSecret    = errors.New("web secret is too short")
)

// DBConfig Database config
type DBConfig struct {
	Type     string `yaml:"type"` // postgres or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	Dsn      string `yaml:"dsn"` // full DSN, wins over the discrete fields
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

// SysConfig System config
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig WEB config
type WebConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Secret    string `yaml:"secret"`     // JWT signing secret
	TokenTTL  int    `yaml:"token_ttl"`  // hours
	BodyLimit string `yaml:"body_limit"` // e.g. 8M, product images may be data URIs
}

// StripeConfig payment provider credentials
type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// MailConfig SMTP settings for order notifications
type MailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	From     string `yaml:"from"`
	PoolSize int    `yaml:"pool_size"`
}

// RatesConfig remote exchange rate feed
type RatesConfig struct {
	Url      string `yaml:"url"`
	Interval string `yaml:"interval"` // cron spec, default @hourly
}

type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

type AppConfig struct {
	System   SysConfig    `yaml:"system"`
	Web      WebConfig    `yaml:"web"`
	Database DBConfig     `yaml:"database"`
	Logger   LogConfig    `yaml:"logger"`
	Stripe   StripeConfig `yaml:"stripe"`
	Mail     MailConfig   `yaml:"mail"`
	Rates    RatesConfig  `yaml:"rates"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

// Validate checks the settings the server cannot run safely without
func (c *AppConfig) Validate() error {
	secret := strings.TrimSpace(c.Web.Secret)
	if secret == "" {
		return ErrMissingSecret
	}
	if len(secret) < MinSecretLength {
		return errors.Wrapf(ErrWeakSecret, "need at least %d characters", MinSecretLength)
	}
	return nil
}

func (c *AppConfig) initDirs() {
	_ = os.MkdirAll(c.GetLogDir(), 0o755)
	_ = os.MkdirAll(c.GetDataDir(), 0o755)
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "souq",
		Location: "Africa/Cairo",
		Workdir:  "/var/souq",
		Debug:    false,
	},
	Web: WebConfig{
		Host:      "0.0.0.0",
		Port:      8080,
		TokenTTL:  72,
		BodyLimit: "8M",
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "souq",
		User:     "postgres",
		Passwd:   "postgres",
		MaxConn:  100,
		IdleConn: 10,
		Debug:    false,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/souq/logs/souq.log",
	},
	Mail: MailConfig{
		Port:     587,
		PoolSize: 4,
	},
	Rates: RatesConfig{
		Interval: "@hourly",
	},
}

// LoadConfig reads the yaml file when it exists, then applies environment
// overrides. A missing file falls back to DefaultAppConfig.
func LoadConfig(cfile string) *AppConfig {
	cfg := new(AppConfig)
	*cfg = *DefaultAppConfig

	if cfile == "" {
		cfile = "souq.yml"
	}
	if data, err := os.ReadFile(cfile); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			panic(err)
		}
	} else if _, err := os.Stat("/etc/souq.yml"); err == nil {
		data, err := os.ReadFile("/etc/souq.yml")
		if err != nil {
			panic(err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			panic(err)
		}
	}

	applyEnv(cfg)
	cfg.initDirs()
	return cfg
}

func applyEnv(cfg *AppConfig) {
	setEnvValue("SOUQ_SYSTEM_WORKER_DIR", &cfg.System.Workdir)
	setEnvValue("SOUQ_SYSTEM_LOCATION", &cfg.System.Location)
	setEnvBoolValue("SOUQ_SYSTEM_DEBUG", &cfg.System.Debug)

	setEnvValue("SOUQ_WEB_HOST", &cfg.Web.Host)
	setEnvIntValue("SOUQ_WEB_PORT", &cfg.Web.Port)
	setEnvValue("SOUQ_WEB_SECRET", &cfg.Web.Secret)
	setEnvIntValue("SOUQ_WEB_TOKEN_TTL", &cfg.Web.TokenTTL)

	setEnvValue("SOUQ_DB_TYPE", &cfg.Database.Type)
	setEnvValue("SOUQ_DB_HOST", &cfg.Database.Host)
	setEnvIntValue("SOUQ_DB_PORT", &cfg.Database.Port)
	setEnvValue("SOUQ_DB_NAME", &cfg.Database.Name)
	setEnvValue("SOUQ_DB_USER", &cfg.Database.User)
	setEnvValue("SOUQ_DB_PWD", &cfg.Database.Passwd)
	setEnvValue("DATABASE_URL", &cfg.Database.Dsn)
	setEnvValue("SOUQ_DB_DSN", &cfg.Database.Dsn)
	setEnvBoolValue("SOUQ_DB_DEBUG", &cfg.Database.Debug)

	setEnvValue("SOUQ_LOGGER_MODE", &cfg.Logger.Mode)
	setEnvBoolValue("SOUQ_LOGGER_FILE_ENABLE", &cfg.Logger.FileEnable)

	setEnvValue("STRIPE_SECRET_KEY", &cfg.Stripe.SecretKey)
	setEnvValue("STRIPE_WEBHOOK_SECRET", &cfg.Stripe.WebhookSecret)

	setEnvBoolValue("SOUQ_MAIL_ENABLED", &cfg.Mail.Enabled)
	setEnvValue("SOUQ_MAIL_HOST", &cfg.Mail.Host)
	setEnvIntValue("SOUQ_MAIL_PORT", &cfg.Mail.Port)
	setEnvValue("SOUQ_MAIL_USER", &cfg.Mail.User)
	setEnvValue("SOUQ_MAIL_PWD", &cfg.Mail.Passwd)
	setEnvValue("SOUQ_MAIL_FROM", &cfg.Mail.From)

	setEnvValue("SOUQ_RATES_URL", &cfg.Rates.Url)
}

func setEnvValue(name string, val *string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*val = v
	}
}

func setEnvBoolValue(name string, val *bool) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*val = cast.ToBool(v)
	}
}

func setEnvIntValue(name string, val *int) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if i, err := cast.ToIntE(v); err == nil {
			*val = i
		}
	}
}
