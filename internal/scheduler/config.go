package scheduler

import (
	"time"

	"github.com/smallbiznis/rentbill/internal/config"
)

// Config controls sweep interval, batch size and lock lifetime.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	// MaxBatches bounds one run; leftovers are picked up on the next tick.
	MaxBatches  int
	JobTimeout  time.Duration
	LockTTL     time.Duration
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Hour,
		BatchSize:   500,
		MaxBatches:  20,
		JobTimeout:  5 * time.Minute,
		LockTTL:     10 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: time.Duration(cfg.OverdueSweepIntervalSeconds) * time.Second,
		BatchSize:   cfg.OverdueSweepBatchSize,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.MaxBatches <= 0 {
		c.MaxBatches = defaults.MaxBatches
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	// a lock shorter than the job would let a second instance in mid-run
	if c.LockTTL < c.JobTimeout {
		c.LockTTL = c.JobTimeout
	}
	return c
}
