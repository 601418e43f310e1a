package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	SourceURL        string
	IPFSGatewayURL   string
	IPFSGatewayToken string
	PGDSN            string
	ExplorerURL      string

	PageSize     int
	HTTPTimeout  time.Duration
	SourceRPS    float64
	MaxRetries   int
	RetryBackoff time.Duration

	EventsInterval       time.Duration
	DistributeHour       int
	DistributeMinute     int
	HousekeepingInterval time.Duration
	RegisterMaxAge       time.Duration
	ProfileCacheTTL      time.Duration

	AdminEmail    string
	MailgunDomain string
	MailgunAPIKey string
	MailSender    string

	MetricsAddr string
	LogLevel    string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEDGERD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("page-size", 10)
	v.SetDefault("http-timeout", 15*time.Second)
	v.SetDefault("source-rps", float64(10))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("events-interval", 2*time.Minute)
	v.SetDefault("distribute-hour", 3)
	v.SetDefault("distribute-minute", 15)
	v.SetDefault("housekeeping-interval", 2*time.Hour)
	v.SetDefault("register-max-age", 7*24*time.Hour)
	v.SetDefault("profile-cache-ttl", time.Minute)
	v.SetDefault("metrics-addr", ":9090")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		SourceURL:            v.GetString("source-url"),
		IPFSGatewayURL:       v.GetString("ipfs-gateway-url"),
		IPFSGatewayToken:     v.GetString("ipfs-gateway-token"),
		PGDSN:                v.GetString("pg-dsn"),
		ExplorerURL:          v.GetString("explorer-url"),
		PageSize:             v.GetInt("page-size"),
		HTTPTimeout:          v.GetDuration("http-timeout"),
		SourceRPS:            v.GetFloat64("source-rps"),
		MaxRetries:           v.GetInt("max-retries"),
		RetryBackoff:         v.GetDuration("retry-backoff"),
		EventsInterval:       v.GetDuration("events-interval"),
		DistributeHour:       v.GetInt("distribute-hour"),
		DistributeMinute:     v.GetInt("distribute-minute"),
		HousekeepingInterval: v.GetDuration("housekeeping-interval"),
		RegisterMaxAge:       v.GetDuration("register-max-age"),
		ProfileCacheTTL:      v.GetDuration("profile-cache-ttl"),
		AdminEmail:           v.GetString("admin-email"),
		MailgunDomain:        v.GetString("mailgun-domain"),
		MailgunAPIKey:        v.GetString("mailgun-api-key"),
		MailSender:           v.GetString("mail-sender"),
		MetricsAddr:          v.GetString("metrics-addr"),
		LogLevel:             v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the values every command needs.
func (c Config) Validate() error {
	if c.SourceURL == "" {
		return fmt.Errorf("source url is required")
	}
	if c.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be greater than zero")
	}
	return nil
}
