package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DB_URL   string `mapstructure:"DB_URL"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	AdminChatID      int64  `mapstructure:"ADMIN_CHAT_ID"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	LockBackend   string        `mapstructure:"LOCK_BACKEND"`
	LockTTL       time.Duration `mapstructure:"LOCK_TTL"`

	EventsBackend string `mapstructure:"EVENTS_BACKEND"`
	KafkaBrokers  string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic    string `mapstructure:"KAFKA_TOPIC"`
	RedisChannel  string `mapstructure:"REDIS_EVENTS_CHANNEL"`

	PaymentGatewayURL    string `mapstructure:"PAYMENT_GATEWAY_URL"`
	PaymentGatewayKey    string `mapstructure:"PAYMENT_GATEWAY_KEY"`
	PaymentWebhookSecret string `mapstructure:"PAYMENT_WEBHOOK_SECRET"`
	PaymentCurrency      string `mapstructure:"PAYMENT_CURRENCY"`

	WithdrawalMin           int64         `mapstructure:"WITHDRAWAL_MIN"`
	WithdrawalMax           int64         `mapstructure:"WITHDRAWAL_MAX"`
	WithdrawalFeeRate       string        `mapstructure:"WITHDRAWAL_FEE_RATE"`
	WithdrawalFeeMin        int64         `mapstructure:"WITHDRAWAL_FEE_MIN"`
	WithdrawalFeeMax        int64         `mapstructure:"WITHDRAWAL_FEE_MAX"`
	WithdrawalMaxPending    int           `mapstructure:"WITHDRAWAL_MAX_PENDING"`
	WithdrawalTTL           time.Duration `mapstructure:"WITHDRAWAL_TTL"`
	WithdrawalSweepSchedule string        `mapstructure:"WITHDRAWAL_SWEEP_SCHEDULE"`

	CoinPrice       int64 `mapstructure:"COIN_PRICE"`
	CoinMinPurchase int64 `mapstructure:"COIN_MIN_PURCHASE"`
	CoinMaxPurchase int64 `mapstructure:"COIN_MAX_PURCHASE"`

	PinHashCost int    `mapstructure:"PIN_HASH_COST"`
	TOTPIssuer  string `mapstructure:"TOTP_ISSUER"`
}

// Every key gets a default so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	for _, key := range []string{
		"DB_URL", "TELEGRAM_BOT_TOKEN", "REDIS_ADDR", "REDIS_PASSWORD", "KAFKA_BROKERS",
		"PAYMENT_GATEWAY_URL", "PAYMENT_GATEWAY_KEY", "PAYMENT_WEBHOOK_SECRET",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("ADMIN_CHAT_ID", 0)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOCK_BACKEND", "memory")
	v.SetDefault("LOCK_TTL", 30*time.Second)
	v.SetDefault("EVENTS_BACKEND", "none")
	v.SetDefault("KAFKA_TOPIC", "wallet.events")
	v.SetDefault("REDIS_EVENTS_CHANNEL", "wallet.events")
	v.SetDefault("PAYMENT_CURRENCY", "VND")

	v.SetDefault("WITHDRAWAL_MIN", 100_000)
	v.SetDefault("WITHDRAWAL_MAX", 100_000_000)
	v.SetDefault("WITHDRAWAL_FEE_RATE", "0.01")
	v.SetDefault("WITHDRAWAL_FEE_MIN", 5_000)
	v.SetDefault("WITHDRAWAL_FEE_MAX", 50_000)
	v.SetDefault("WITHDRAWAL_MAX_PENDING", 3)
	v.SetDefault("WITHDRAWAL_TTL", 72*time.Hour)
	v.SetDefault("WITHDRAWAL_SWEEP_SCHEDULE", "@every 5m")

	v.SetDefault("COIN_PRICE", 100)
	v.SetDefault("COIN_MIN_PURCHASE", 1)
	v.SetDefault("COIN_MAX_PURCHASE", 100_000)

	v.SetDefault("PIN_HASH_COST", 10)
	v.SetDefault("TOTP_ISSUER", "Wallet")
}

// LoadConfig reads an env file and lets process environment variables
// override it. A missing file is not an error; defaults apply.
func LoadConfig(path string) (config Config, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return config, fmt.Errorf("failed to resolve config path: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AddConfigPath(filepath.Dir(absPath))
	v.SetConfigName(filepath.Base(absPath))
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if c.DB_URL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.WithdrawalMin <= 0 || c.WithdrawalMax < c.WithdrawalMin {
		return fmt.Errorf("invalid withdrawal bounds [%d, %d]", c.WithdrawalMin, c.WithdrawalMax)
	}
	if c.WithdrawalFeeMin < 0 || c.WithdrawalFeeMax < c.WithdrawalFeeMin {
		return fmt.Errorf("invalid withdrawal fee bounds [%d, %d]", c.WithdrawalFeeMin, c.WithdrawalFeeMax)
	}
	if c.WithdrawalTTL <= 0 {
		return fmt.Errorf("WITHDRAWAL_TTL must be positive")
	}
	if c.CoinMinPurchase <= 0 || c.CoinMaxPurchase < c.CoinMinPurchase {
		return fmt.Errorf("invalid coin purchase bounds [%d, %d]", c.CoinMinPurchase, c.CoinMaxPurchase)
	}
	return nil
}

func (c Config) KafkaBrokerList() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
