package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Store drivers
const (
	StoreDriverPostgREST = "postgrest"
	StoreDriverPostgres  = "postgres"
	StoreDriverInMem     = "inmem"
)

// ErrStoreNotConfigured is returned whenever the remote store URL or API key are missing.
var ErrStoreNotConfigured = errors.New("store is not configured: STORE_URL and STORE_API_KEY are required")

type (
	ServerConfig struct {
		Address         string
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	AuthConfig struct {
		JWTSecret string
		Issuer    string
		Audience  string
		SignupURL string // auth provider signup endpoint; defaults to <STORE_URL>/auth/v1/signup
	}

	StoreConfig struct {
		Driver         string
		RequestTimeout time.Duration
		RateLimit      float64 // requests per second; 0 disables throttling
		RateBurst      int
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	CacheConfig struct {
		ShortTTL  time.Duration
		MediumTTL time.Duration
		LongTTL   time.Duration
	}

	PairingConfig struct {
		Timeout time.Duration
	}

	Config struct {
		v *viper.Viper

		Env              string // DEV (default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		FrontendBaseURL  string
		AdminEmail       string
		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		Server   ServerConfig
		Auth     AuthConfig
		Store    StoreConfig
		Database DatabaseConfig
		Cache    CacheConfig
		Pairing  PairingConfig
	}

	// StoreCredentials are what the REST store client needs on every call.
	StoreCredentials struct {
		URL    string
		APIKey string
	}
)

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, dbc.Port)
}

func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Cohortly")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Cohortly <noreply@localhost>")
	v.SetDefault("adminEmail", "admin@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 10*time.Second)
	v.SetDefault("server.writeTimeout", 40*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)

	v.SetDefault("auth.jwtSecret", "super-secret-jwt-token-with-at-least-32-characters")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "authenticated")
	v.SetDefault("auth.signupURL", "")

	v.SetDefault("store.driver", StoreDriverPostgREST)
	v.SetDefault("store.url", "")
	v.SetDefault("store.apiKey", "")
	v.SetDefault("store.requestTimeout", 15*time.Second)
	v.SetDefault("store.rateLimit", 0.0)
	v.SetDefault("store.rateBurst", 10)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "cohortly")
	v.SetDefault("database.user", "cohortly")
	v.SetDefault("database.password", "cohortly")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")

	v.SetDefault("cache.shortTTL", 30*time.Second)
	v.SetDefault("cache.mediumTTL", 2*time.Minute)
	v.SetDefault("cache.longTTL", 5*time.Minute)

	v.SetDefault("pairing.timeout", 30*time.Second)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// the store credentials are shared with the frontend tooling, so accept the un-prefixed names too
	_ = v.BindEnv("store.url", env+"_STORE_URL", "STORE_URL")
	_ = v.BindEnv("store.apiKey", env+"_STORE_APIKEY", "STORE_API_KEY")
	_ = v.BindEnv("auth.jwtSecret", env+"_AUTH_JWTSECRET", "AUTH_JWT_SECRET")

	conf := &Config{
		v:                v,
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		AdminEmail:       v.GetString("adminEmail"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwtSecret"),
			Issuer:    v.GetString("auth.issuer"),
			Audience:  v.GetString("auth.audience"),
			SignupURL: v.GetString("auth.signupURL"),
		},
		Store: StoreConfig{
			Driver:         strings.ToLower(v.GetString("store.driver")),
			RequestTimeout: v.GetDuration("store.requestTimeout"),
			RateLimit:      v.GetFloat64("store.rateLimit"),
			RateBurst:      v.GetInt("store.rateBurst"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Cache: CacheConfig{
			ShortTTL:  v.GetDuration("cache.shortTTL"),
			MediumTTL: v.GetDuration("cache.mediumTTL"),
			LongTTL:   v.GetDuration("cache.longTTL"),
		},
		Pairing: PairingConfig{
			Timeout: v.GetDuration("pairing.timeout"),
		},
	}
	return conf
}

// StoreCredentials resolves the REST store URL and API key at call time,
// so rotated keys are picked up without a restart.
func (conf *Config) StoreCredentials() (StoreCredentials, error) {
	if conf.v == nil {
		return StoreCredentials{}, ErrStoreNotConfigured
	}
	creds := StoreCredentials{
		URL:    strings.TrimRight(strings.TrimSpace(conf.v.GetString("store.url")), "/"),
		APIKey: strings.TrimSpace(conf.v.GetString("store.apiKey")),
	}
	if creds.URL == "" || creds.APIKey == "" {
		return StoreCredentials{}, ErrStoreNotConfigured
	}
	return creds, nil
}

// SetStoreCredentials overrides the store credentials, e.g. after prompting for them.
func (conf *Config) SetStoreCredentials(url, apiKey string) {
	if conf.v == nil {
		conf.v = viper.New()
	}
	if url != "" {
		conf.v.Set("store.url", url)
	}
	if apiKey != "" {
		conf.v.Set("store.apiKey", apiKey)
	}
}

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: "noreply@" + conf.Server.Host}
	}
	return *addr
}

func (conf *Config) String() string {
	return fmt.Sprintf("%s (%s) env=%s store=%s", conf.AppName, conf.Build, conf.Env, conf.Store.Driver)
}
