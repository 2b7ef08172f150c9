package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBillingConfigDefaultsWithoutFile(t *testing.T) {
	v := viper.New()
	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath(t.TempDir())

	holder, err := newBillingConfigHolder(v, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, []time.Duration{400 * time.Millisecond, 800 * time.Millisecond, 1600 * time.Millisecond}, cfg.Retry.Delays)
	assert.Equal(t, []float64{0, 5, 12, 18, 28}, cfg.Tax.AllowedRates)
	assert.Equal(t, "INV", cfg.Invoice.Prefix)
	assert.Equal(t, 30, cfg.Payment.TermsDays)
	assert.Equal(t, 200, cfg.Audit.MessageLimit)
}

func TestBillingConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "billing.yml")
	content := `billing:
  retry:
    maxAttempts: 4
    delays: ["100ms", "200ms"]
  invoice:
    prefix: RNT
  payment:
    termsDays: 15
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := viper.New()
	v.SetConfigFile(path)

	holder, err := newBillingConfigHolder(v, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, cfg.Retry.Delays)
	assert.Equal(t, "RNT", cfg.Invoice.Prefix)
	assert.Equal(t, "PAY", cfg.Payment.Prefix)
	assert.Equal(t, 15, cfg.Payment.TermsDays)
}

func TestBillingConfigRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billing.yml")
	require.NoError(t, os.WriteFile(path, []byte("billing:\n  retry:\n    maxAttempts: 0\n"), 0o600))

	v := viper.New()
	v.SetConfigFile(path)

	_, err := newBillingConfigHolder(v, zap.NewNop())
	assert.Error(t, err)
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := DefaultBillingConfig().Retry
	assert.Equal(t, 400*time.Millisecond, policy.Delay(1))
	assert.Equal(t, 800*time.Millisecond, policy.Delay(2))
	assert.Equal(t, 1600*time.Millisecond, policy.Delay(3))
	assert.Equal(t, 1600*time.Millisecond, policy.Delay(9))
	assert.Equal(t, time.Duration(0), policy.Delay(0))
}
