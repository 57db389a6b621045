package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	HttpPort      int      `yaml:"http_port" validate:"required"`
	LogLevel      string   `yaml:"log_level"`
	LogJSON       bool     `yaml:"log_json"`
	BaseURL       string   `yaml:"base_url" validate:"required"` // used to build links in outgoing mail
	Storage       string   `yaml:"storage" validate:"required,oneof=postgres memory"`
	SecureCookies bool     `yaml:"secure_cookies"`
	AllowedOrigin []string `yaml:"allowed_origins"`

	AccessTTL      time.Duration `yaml:"access_ttl" validate:"required"`
	RememberTTL    time.Duration `yaml:"remember_ttl" validate:"required"`
	ResetTokenTTL  time.Duration `yaml:"reset_token_ttl" validate:"required"`
	OTPTTL         time.Duration `yaml:"otp_ttl" validate:"required"`
	RecoveryWindow time.Duration `yaml:"recovery_window" validate:"required"`
	NotifyTimeout  time.Duration `yaml:"notify_timeout"`
	SweepInterval  time.Duration `yaml:"sweep_interval" validate:"required"`
}

type Pg struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"required"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname" validate:"required"`
}

type Email struct {
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	SenderName string `yaml:"sender_name"`
	Timeout    int    `yaml:"timeout"` // seconds
}

type Private struct {
	Pg          Pg     `yaml:"pg" validate:"-"`
	Email       Email  `yaml:"email"`
	AccessKey   string `yaml:"access_key" validate:"required"`
	ResetKey    string `yaml:"reset_key" validate:"required"`
	RecoveryKey string `yaml:"recovery_key" validate:"required"`
}

func (s *Config) AccessTTL() time.Duration {
	return s.Public.AccessTTL
}

func (s *Config) UsesPostgres() bool {
	return s.Public.Storage == "postgres"
}

// DSN is the lib/pq connection string for the configured database.
func (p Pg) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.Dbname)
}

func mustLoadPath(configPath string, output interface{}) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file")
	}

	if err = yaml.Unmarshal(configFile, output); err != nil {
		panic("can't unmarshal config file")
	}
}

func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	cfg := &Config{public, private}
	if err := cfg.Validate(); err != nil {
		panic("invalid config: " + err.Error())
	}
	return cfg
}

// Validate checks required fields. Postgres settings are only required when postgres is the storage.
func (s *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&s.Public); err != nil {
		return err
	}
	if err := validate.Struct(&s.Private); err != nil {
		return err
	}
	if s.UsesPostgres() {
		if err := validate.Struct(&s.Private.Pg); err != nil {
			return err
		}
	}
	return nil
}
