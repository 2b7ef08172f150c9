package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig is the hot-reloadable billing policy read from billing.yml.
type BillingConfig struct {
	Retry   RetryPolicy   `mapstructure:"retry"`
	Tax     TaxPolicy     `mapstructure:"tax"`
	Invoice InvoicePolicy `mapstructure:"invoice"`
	Payment PaymentPolicy `mapstructure:"payment"`
	Audit   AuditPolicy   `mapstructure:"audit"`
}

type RetryPolicy struct {
	MaxAttempts int             `mapstructure:"maxAttempts"`
	Delays      []time.Duration `mapstructure:"delays"`
}

// Delay returns the wait before the attempt following attempt n (1-based).
// Attempts past the configured list reuse the last delay.
func (p RetryPolicy) Delay(n int) time.Duration {
	if len(p.Delays) == 0 || n <= 0 {
		return 0
	}
	if n > len(p.Delays) {
		return p.Delays[len(p.Delays)-1]
	}
	return p.Delays[n-1]
}

type TaxPolicy struct {
	AllowedRates []float64 `mapstructure:"allowedRates"`
}

type InvoicePolicy struct {
	Prefix string `mapstructure:"prefix"`
}

type PaymentPolicy struct {
	Prefix    string `mapstructure:"prefix"`
	TermsDays int    `mapstructure:"termsDays"`
}

type AuditPolicy struct {
	MessageLimit  int `mapstructure:"messageLimit"`
	DefaultWindow int `mapstructure:"defaultWindow"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Retry: RetryPolicy{
			MaxAttempts: 3,
			Delays:      []time.Duration{400 * time.Millisecond, 800 * time.Millisecond, 1600 * time.Millisecond},
		},
		Tax:     TaxPolicy{AllowedRates: []float64{0, 5, 12, 18, 28}},
		Invoice: InvoicePolicy{Prefix: "INV"},
		Payment: PaymentPolicy{Prefix: "PAY", TermsDays: 30},
		Audit:   AuditPolicy{MessageLimit: 200, DefaultWindow: 5},
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder pins cfg without watching any file.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBillingConfigHolder(log *zap.Logger) (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/rentbill")
	v.AddConfigPath(".")

	return newBillingConfigHolder(v, log)
}

func newBillingConfigHolder(v *viper.Viper, log *zap.Logger) (*BillingConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.billing")

	v.SetEnvPrefix("RENTBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.retry.maxAttempts", defaults.Retry.MaxAttempts)
	v.SetDefault("billing.retry.delays", defaults.Retry.Delays)
	v.SetDefault("billing.tax.allowedRates", defaults.Tax.AllowedRates)
	v.SetDefault("billing.invoice.prefix", defaults.Invoice.Prefix)
	v.SetDefault("billing.payment.prefix", defaults.Payment.Prefix)
	v.SetDefault("billing.payment.termsDays", defaults.Payment.TermsDays)
	v.SetDefault("billing.audit.messageLimit", defaults.Audit.MessageLimit)
	v.SetDefault("billing.audit.defaultWindow", defaults.Audit.DefaultWindow)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodeBilling(v)
	if err != nil {
		return nil, err
	}
	if err := ValidateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)
	if !fileLoaded {
		log.Info("billing config file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeBilling(v)
		if err != nil {
			log.Warn("billing config reload failed", zap.Error(err))
			return
		}
		if err := ValidateBillingConfig(updated); err != nil {
			log.Warn("invalid billing config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("billing config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// decodeBilling goes through Unmarshal rather than UnmarshalKey so leaf
// defaults are merged under a partially populated file.
func decodeBilling(v *viper.Viper) (BillingConfig, error) {
	var file struct {
		Billing BillingConfig `mapstructure:"billing"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return BillingConfig{}, err
	}
	return file.Billing, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func ValidateBillingConfig(cfg BillingConfig) error {
	if cfg.Retry.MaxAttempts < 1 {
		return errors.New("billing.retry.maxAttempts must be at least 1")
	}
	for _, d := range cfg.Retry.Delays {
		if d < 0 {
			return errors.New("billing.retry.delays cannot be negative")
		}
	}
	if len(cfg.Tax.AllowedRates) == 0 {
		return errors.New("billing.tax.allowedRates cannot be empty")
	}
	for _, rate := range cfg.Tax.AllowedRates {
		if rate < 0 || rate > 100 {
			return fmt.Errorf("billing.tax.allowedRates has out of range rate %v", rate)
		}
	}
	if strings.TrimSpace(cfg.Invoice.Prefix) == "" {
		return errors.New("billing.invoice.prefix cannot be empty")
	}
	if strings.TrimSpace(cfg.Payment.Prefix) == "" {
		return errors.New("billing.payment.prefix cannot be empty")
	}
	if cfg.Payment.TermsDays < 0 {
		return errors.New("billing.payment.termsDays cannot be negative")
	}
	if cfg.Audit.MessageLimit < 1 || cfg.Audit.MessageLimit > 200 {
		return errors.New("billing.audit.messageLimit must be between 1 and 200")
	}
	return nil
}
