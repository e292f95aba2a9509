package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                  = "ACCOUNT"
	defaultHTTPAddress         = "0.0.0.0:8080"
	defaultDatabasePath        = "accounts.db"
	defaultLogLevel            = "info"
	defaultTokenTTLSeconds     = 3600
	defaultCodeTTLSeconds      = 300
	defaultProviderTimeoutSecs = 10
)

// ProviderConfig carries the OAuth client settings for one identity provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// AppConfig captures runtime configuration for the account service.
type AppConfig struct {
	HTTPAddress     string
	DatabasePath    string
	LogLevel        string
	JWTSecret       string
	TokenTTL        time.Duration
	CodeTTL         time.Duration
	ProviderTimeout time.Duration
	Google          ProviderConfig
	Kakao           ProviderConfig
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("jwt.ttl_seconds", defaultTokenTTLSeconds)
	configViper.SetDefault("verification.ttl_seconds", defaultCodeTTLSeconds)
	configViper.SetDefault("provider.timeout_seconds", defaultProviderTimeoutSecs)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabasePath:    configViper.GetString("database.path"),
		LogLevel:        configViper.GetString("log.level"),
		JWTSecret:       configViper.GetString("jwt.secret"),
		TokenTTL:        time.Duration(configViper.GetInt("jwt.ttl_seconds")) * time.Second,
		CodeTTL:         time.Duration(configViper.GetInt("verification.ttl_seconds")) * time.Second,
		ProviderTimeout: time.Duration(configViper.GetInt("provider.timeout_seconds")) * time.Second,
		Google: ProviderConfig{
			ClientID:     configViper.GetString("google.client_id"),
			ClientSecret: configViper.GetString("google.client_secret"),
			RedirectURI:  configViper.GetString("google.redirect_uri"),
		},
		Kakao: ProviderConfig{
			ClientID:    configViper.GetString("kakao.client_id"),
			RedirectURI: configViper.GetString("kakao.redirect_uri"),
		},
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("jwt.ttl_seconds must be positive")
	}
	if c.CodeTTL <= 0 {
		return fmt.Errorf("verification.ttl_seconds must be positive")
	}
	return nil
}
