// Package config loads server configuration from environment variables
// with an optional .env file fallback.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/veribadge/veribadge-core/pkg/signer"
)

// Config is the server configuration. All values come from VERIBADGE_*
// environment variables or a .env file in the working directory.
type Config struct {
	ListenAddr   string `mapstructure:"LISTEN_ADDR"`
	BaseURL      string `mapstructure:"BASE_URL"`
	DatabasePath string `mapstructure:"DB_PATH"`

	// AppKey is the root secret; per-version signing secrets are derived
	// from it. Required, minimum 32 bytes.
	AppKey           string `mapstructure:"APP_KEY"`
	ActiveKeyVersion string `mapstructure:"ACTIVE_KEY_VERSION"`
	// KeyVersions lists all accepted key versions, comma separated.
	// Tokens signed under any listed version still verify, which is what
	// makes rotation non-breaking.
	KeyVersions string `mapstructure:"KEY_VERSIONS"`

	// RedisAddr selects the Redis replay guard; empty means the
	// in-process memory guard.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	DefaultLifetimeHours int `mapstructure:"DEFAULT_LIFETIME_HOURS"`

	RateWindowMinutes int `mapstructure:"RATE_WINDOW_MINUTES"`
	GenerateLimit     int `mapstructure:"GENERATE_LIMIT"`
	VerifyLimit       int `mapstructure:"VERIFY_LIMIT"`
	RevokeLimit       int `mapstructure:"REVOKE_LIMIT"`

	// ExposeFailureDetail includes the precise failure code in public
	// verification responses. Off by default so outsiders cannot probe
	// which check rejected a forged token.
	ExposeFailureDetail bool `mapstructure:"EXPOSE_FAILURE_DETAIL"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	viper.SetDefault("LISTEN_ADDR", ":8080")
	viper.SetDefault("BASE_URL", "http://localhost:8080")
	viper.SetDefault("DB_PATH", "veribadge.db")
	// Secrets default empty so viper still binds their env variables.
	viper.SetDefault("APP_KEY", "")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("ACTIVE_KEY_VERSION", "v1")
	viper.SetDefault("KEY_VERSIONS", "v1")
	viper.SetDefault("DEFAULT_LIFETIME_HOURS", 24)
	viper.SetDefault("RATE_WINDOW_MINUTES", 5)
	viper.SetDefault("GENERATE_LIMIT", 10)
	viper.SetDefault("VERIFY_LIMIT", 50)
	viper.SetDefault("REVOKE_LIMIT", 5)
	viper.SetDefault("EXPOSE_FAILURE_DETAIL", false)

	viper.SetEnvPrefix("VERIBADGE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetConfigFile(".env")
	// Ignore err if .env doesn't exist
	_ = viper.ReadInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks required values.
func (c *Config) Validate() error {
	if c.AppKey == "" {
		return fmt.Errorf("VERIBADGE_APP_KEY is required")
	}
	if len(c.AppKey) < signer.MinSecretLen {
		return fmt.Errorf("VERIBADGE_APP_KEY must be at least %d bytes", signer.MinSecretLen)
	}
	if c.ActiveKeyVersion == "" {
		return fmt.Errorf("VERIBADGE_ACTIVE_KEY_VERSION is required")
	}
	found := false
	for _, v := range c.keyVersionList() {
		if v == c.ActiveKeyVersion {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("active key version %q is not in VERIBADGE_KEY_VERSIONS", c.ActiveKeyVersion)
	}
	return nil
}

// Keyring derives the signing keyring from the app key and the
// configured key versions.
func (c *Config) Keyring() (*signer.Keyring, error) {
	secrets := make(map[string][]byte)
	for _, v := range c.keyVersionList() {
		secrets[v] = signer.DeriveSecret(c.AppKey, v)
	}
	return signer.NewKeyring(c.ActiveKeyVersion, secrets)
}

func (c *Config) keyVersionList() []string {
	var versions []string
	for _, v := range strings.Split(c.KeyVersions, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			versions = append(versions, v)
		}
	}
	return versions
}
