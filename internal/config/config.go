package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config carries everything the service needs. It is built once at startup
// and passed explicitly into constructors; nothing reads the environment
// after this point.
type Config struct {
	HTTPAddr string

	// AdminAddress is the mailbox owner; messages from it are outbound and
	// only tokens bearing it may call the admin endpoints.
	AdminAddress string

	// ContactRecipient receives contact-form notifications. Defaults to
	// AdminAddress.
	ContactRecipient string

	DatabaseURL string
	NATSURL     string
	DataDir     string
	JWKSURL     string

	Provider string // GOOGLE or MICROSOFT

	SyncQuery       string
	SyncMaxMessages int64

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string

	GraphAccessToken string
}

// Load reads configuration from an optional yaml file, flags bound by the
// caller, and the environment (MAIL_ prefixed, dots as underscores).
func Load() (*Config, error) {
	viper.SetEnvPrefix("MAIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("http.addr", ":8080")
	viper.SetDefault("data.dir", "data")
	viper.SetDefault("nats.url", "nats://localhost:4222")
	viper.SetDefault("provider", "GOOGLE")
	viper.SetDefault("sync.query", "in:anywhere -in:trash")
	viper.SetDefault("sync.max_messages", 20)

	cfg := &Config{
		HTTPAddr:           viper.GetString("http.addr"),
		AdminAddress:       viper.GetString("admin.address"),
		ContactRecipient:   viper.GetString("contact.recipient"),
		DatabaseURL:        viper.GetString("database.url"),
		NATSURL:            viper.GetString("nats.url"),
		DataDir:            viper.GetString("data.dir"),
		JWKSURL:            viper.GetString("auth.jwks_url"),
		Provider:           viper.GetString("provider"),
		SyncQuery:          viper.GetString("sync.query"),
		SyncMaxMessages:    viper.GetInt64("sync.max_messages"),
		GoogleClientID:     viper.GetString("google.client_id"),
		GoogleClientSecret: viper.GetString("google.client_secret"),
		GoogleRefreshToken: viper.GetString("google.refresh_token"),
		GraphAccessToken:   viper.GetString("graph.access_token"),
	}

	if cfg.AdminAddress == "" {
		return nil, fmt.Errorf("admin.address not configured")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database.url not configured")
	}
	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("auth.jwks_url not configured")
	}
	if cfg.ContactRecipient == "" {
		cfg.ContactRecipient = cfg.AdminAddress
	}

	return cfg, nil
}
