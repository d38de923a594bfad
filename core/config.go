package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	DatabaseConfig struct {
		Host            string
		Port            int
		Name            string
		User            string
		Password        string
		AdminUser       string
		AdminPassword   string
		MaxOpenConns    int
		MaxIdleConns    int
		ConnMaxLifetime time.Duration
	}

	ServerConfig struct {
		Host            string
		Port            int
		DebugHost       string
		RequestTimeout  time.Duration
		ShutdownTimeout time.Duration
		SessionTTL      time.Duration
		CookieName      string
		CookieSecure    bool
	}

	Config struct {
		Env      string
		Build    string
		Debug    bool
		TestMode bool

		AppName                   string
		SchoolName                string
		SecretKey                 string
		FrontendBaseURL           string
		PasswordResetTimeoutDelta time.Duration
		LibraryFinePerDay         float64

		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DefaultFromEmail parses the configured sender, falling back to a bare address.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	return *addr
}

// NewConfig reads config/.env.<env> (if present) then the environment.
// Every key is looked up as <ENV>_<KEY>, e.g. DEV_DATABASE_HOST.
func NewConfig() *Config {
	conf := viper.New()

	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "develop")
	conf.SetDefault("app_name", "Umoja Academy")
	conf.SetDefault("school_name", "Umoja Junior Academy")
	conf.SetDefault("secret_key", "c3-k!r#p9s6@a^8xq0uv)zn2m$4jl7wd1f5t(b-h0y&ge+oi")
	conf.SetDefault("frontend_base_url", "http://localhost:8080")
	conf.SetDefault("default_from_email", "Umoja Academy <noreply@localhost>")
	conf.SetDefault("password_reset_timeout_delta", 3*24*time.Hour)
	conf.SetDefault("library_fine_per_day", 10.0)
	conf.SetDefault("rollbar_token", "")
	conf.SetDefault("sendgrid_api_key", "")

	conf.SetDefault("server.host", "")
	conf.SetDefault("server.port", 8000)
	conf.SetDefault("server.debug_host", "localhost:4000")
	conf.SetDefault("server.request_timeout", 15*time.Second)
	conf.SetDefault("server.shutdown_timeout", 5*time.Second)
	conf.SetDefault("server.session_ttl", 8*time.Hour)
	conf.SetDefault("server.cookie_name", "academy_session")
	conf.SetDefault("server.cookie_secure", false)

	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 3306)
	conf.SetDefault("database.name", "school_management")
	conf.SetDefault("database.user", "root")
	conf.SetDefault("database.password", "")
	conf.SetDefault("database.admin_user", "")
	conf.SetDefault("database.admin_password", "")
	conf.SetDefault("database.max_open_conns", 25)
	conf.SetDefault("database.max_idle_conns", 25)
	conf.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	testMode := false
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		testMode = true
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := fmt.Sprintf("config/.env.%s", strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Env:      env,
		Build:    conf.GetString("build"),
		Debug:    conf.GetBool("debug"),
		TestMode: testMode,

		AppName:                   conf.GetString("app_name"),
		SchoolName:                conf.GetString("school_name"),
		SecretKey:                 conf.GetString("secret_key"),
		FrontendBaseURL:           conf.GetString("frontend_base_url"),
		PasswordResetTimeoutDelta: conf.GetDuration("password_reset_timeout_delta"),
		LibraryFinePerDay:         conf.GetFloat64("library_fine_per_day"),

		RollbarToken:     conf.GetString("rollbar_token"),
		SendgridApiKey:   conf.GetString("sendgrid_api_key"),
		defaultFromEmail: conf.GetString("default_from_email"),

		Server: ServerConfig{
			Host:            conf.GetString("server.host"),
			Port:            conf.GetInt("server.port"),
			DebugHost:       conf.GetString("server.debug_host"),
			RequestTimeout:  conf.GetDuration("server.request_timeout"),
			ShutdownTimeout: conf.GetDuration("server.shutdown_timeout"),
			SessionTTL:      conf.GetDuration("server.session_ttl"),
			CookieName:      conf.GetString("server.cookie_name"),
			CookieSecure:    conf.GetBool("server.cookie_secure"),
		},
		Database: DatabaseConfig{
			Host:            conf.GetString("database.host"),
			Port:            conf.GetInt("database.port"),
			Name:            conf.GetString("database.name"),
			User:            conf.GetString("database.user"),
			Password:        conf.GetString("database.password"),
			AdminUser:       conf.GetString("database.admin_user"),
			AdminPassword:   conf.GetString("database.admin_password"),
			MaxOpenConns:    conf.GetInt("database.max_open_conns"),
			MaxIdleConns:    conf.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: conf.GetDuration("database.conn_max_lifetime"),
		},
	}
}

// NewTestConfig returns a Config suitable for unit tests, without reading the environment.
func NewTestConfig() *Config {
	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		TestMode:                  true,
		AppName:                   "Umoja Academy",
		SchoolName:                "Umoja Junior Academy",
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:8080",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		LibraryFinePerDay:         10,
		defaultFromEmail:          "Umoja Academy <noreply@localhost>",
		Server: ServerConfig{
			RequestTimeout: 5 * time.Second,
			SessionTTL:     time.Hour,
			CookieName:     "academy_session",
		},
	}
}
