package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/rentbill/internal/clock"
	"github.com/smallbiznis/rentbill/internal/config"
	"github.com/smallbiznis/rentbill/internal/observability/metrics"
	"github.com/smallbiznis/rentbill/internal/sequence/domain"
	"github.com/smallbiznis/rentbill/internal/sequence/repository"
	"github.com/smallbiznis/rentbill/internal/sequence/service"
	"github.com/smallbiznis/rentbill/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "sequence.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&domain.SequenceCounter{}))
	return db
}

func newAllocator(db *gorm.DB, repo domain.Repository, m *metrics.BillingMetrics) domain.Allocator {
	return service.NewService(service.Params{
		DB:      db,
		Log:     zap.NewNop(),
		Repo:    repo,
		Clock:   clock.NewFakeClock(testNow),
		Billing: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
		Metrics: m,
	})
}

type failingRepo struct{}

func (failingRepo) Increment(context.Context, *gorm.DB, domain.EntityType, snowflake.ID) (int64, error) {
	return 0, errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
}

func (failingRepo) Current(context.Context, *gorm.DB, domain.EntityType, snowflake.ID) (int64, error) {
	return 0, nil
}

func TestAllocateIsMonotonicPerKey(t *testing.T) {
	ctx := context.Background()
	alloc := newAllocator(setupTestDB(t), repository.Provide(), nil)

	for want := int64(1); want <= 3; want++ {
		got, err := alloc.Allocate(ctx, domain.EntityInvoice, 11)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := alloc.Allocate(ctx, domain.EntityInvoice, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)

	payment, err := alloc.Allocate(ctx, domain.EntityPayment, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(1), payment)
}

func TestConcurrentAllocateIsDistinct(t *testing.T) {
	ctx := context.Background()
	alloc := newAllocator(setupTestDB(t), repository.Provide(), nil)

	const workers = 40
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]bool{}
	)
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := alloc.Allocate(ctx, domain.EntityInvoice, 7)
			if err != nil {
				errCh <- err
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[value] {
				errCh <- errors.New("duplicate sequence value")
				return
			}
			seen[value] = true
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("allocate: %v", err)
	}
	assert.Len(t, seen, workers)
	for v := int64(1); v <= workers; v++ {
		assert.True(t, seen[v], "missing value %d", v)
	}
}

func TestAllocateRejectsUnknownKeys(t *testing.T) {
	alloc := newAllocator(setupTestDB(t), repository.Provide(), nil)

	_, err := alloc.Allocate(context.Background(), domain.EntityType("order"), 1)
	assert.ErrorIs(t, err, domain.ErrInvalidEntityType)
	assert.True(t, errs.IsValidation(err))

	_, err = alloc.Allocate(context.Background(), domain.EntityInvoice, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidOutlet)
}

func TestFormat(t *testing.T) {
	alloc := newAllocator(nil, repository.Provide(), nil)

	cases := []struct {
		entityType domain.EntityType
		outlet     string
		seq        int64
		want       string
	}{
		{domain.EntityInvoice, "blr-01", 42, "INV-BLR01-202610-00042"},
		{domain.EntityPayment, "MG Road", 7, "PAY-MGROAD-202610-00007"},
		{domain.EntityInvoice, "BLR01", 123456, "INV-BLR01-202610-123456"},
	}
	for _, tc := range cases {
		got, err := alloc.Format(tc.entityType, tc.outlet, tc.seq, testNow)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestAllocateCodeUsesSequence(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewBillingMetrics(registry, metrics.Config{})
	alloc := newAllocator(setupTestDB(t), repository.Provide(), m)

	code, err := alloc.AllocateCode(context.Background(), domain.AllocateCodeRequest{
		EntityType: domain.EntityInvoice,
		OutletID:   3,
		OutletCode: "BLR01",
		At:         testNow,
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-BLR01-202610-00001", code.Value)
	assert.Equal(t, domain.SourceSequence, code.Source)
	assert.False(t, code.IsFallback())
}

func TestAllocateCodeFallsBackWhenStoreUnavailable(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewBillingMetrics(registry, metrics.Config{})
	alloc := newAllocator(nil, failingRepo{}, m)

	code, err := alloc.AllocateCode(context.Background(), domain.AllocateCodeRequest{
		EntityType: domain.EntityInvoice,
		OutletID:   3,
		OutletCode: "BLR01",
	})
	require.NoError(t, err)
	assert.True(t, code.IsFallback())
	assert.Zero(t, code.Sequence)
	assert.Regexp(t, regexp.MustCompile(`^INV-BLR01-202610-F[0-9A-Z]{26}$`), code.Value)

	expected := `
		# HELP rentbill_sequence_allocations_total Issued document codes by entity type and source.
		# TYPE rentbill_sequence_allocations_total counter
		rentbill_sequence_allocations_total{entity_type="invoice",env="unknown",service="rentbill",source="fallback"} 1
	`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "rentbill_sequence_allocations_total"))
}

func TestAllocateRaisesAllocationError(t *testing.T) {
	alloc := newAllocator(nil, failingRepo{}, nil)

	_, err := alloc.Allocate(context.Background(), domain.EntityInvoice, 3)
	require.Error(t, err)
	assert.Equal(t, errs.KindAllocation, errs.KindOf(err))
}
