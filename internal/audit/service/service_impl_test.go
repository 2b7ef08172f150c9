package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/rentbill/internal/audit/domain"
	"github.com/smallbiznis/rentbill/internal/audit/repository"
	"github.com/smallbiznis/rentbill/internal/audit/service"
	"github.com/smallbiznis/rentbill/internal/clock"
	"github.com/smallbiznis/rentbill/internal/config"
	"github.com/smallbiznis/rentbill/internal/outletcontext"
	"github.com/smallbiznis/rentbill/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&domain.CreationAuditEntry{}))
	require.NoError(t, db.Exec(`CREATE TABLE invoices (id INTEGER PRIMARY KEY, order_id INTEGER NOT NULL UNIQUE)`).Error)
	return db
}

func newTrail(t *testing.T, db *gorm.DB) domain.Trail {
	t.Helper()
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	return service.NewService(service.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    repository.Provide(),
		Clock:   clock.NewFakeClock(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)),
		Billing: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
	})
}

func TestAppendNumbersAttemptsPerOrder(t *testing.T) {
	ctx := outletcontext.WithActorID(context.Background(), "cashier-7")
	db := setupTestDB(t)
	trail := newTrail(t, db)

	for i := 0; i < 3; i++ {
		entry, err := trail.Append(ctx, nil, domain.AppendRequest{OrderID: 100, OutletID: 1, Err: errors.New("i/o timeout")})
		require.NoError(t, err)
		assert.Equal(t, i+1, entry.AttemptNumber)
		assert.Equal(t, "cashier-7", entry.RequesterID)
	}

	other, err := trail.Append(ctx, nil, domain.AppendRequest{OrderID: 200, OutletID: 1, Err: errors.New("i/o timeout")})
	require.NoError(t, err)
	assert.Equal(t, 1, other.AttemptNumber)
}

func TestAppendTruncatesErrorMessage(t *testing.T) {
	trail := newTrail(t, setupTestDB(t))

	entry, err := trail.Append(context.Background(), nil, domain.AppendRequest{
		OrderID:  100,
		OutletID: 1,
		Err:      errors.New(strings.Repeat("x", 500) + "\npanic: stack"),
	})
	require.NoError(t, err)
	require.NotNil(t, entry.ErrorMessage)
	assert.Len(t, *entry.ErrorMessage, 200)
	assert.Equal(t, outletcontext.SystemActor, entry.RequesterID)
}

func TestAppendSuccessRequiresInvoice(t *testing.T) {
	trail := newTrail(t, setupTestDB(t))

	_, err := trail.Append(context.Background(), nil, domain.AppendRequest{OrderID: 100, Success: true})
	assert.True(t, errs.IsValidation(err))
}

func TestGetAuditTrailWindow(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	trail := newTrail(t, db)

	for i := 0; i < 6; i++ {
		_, err := trail.Append(ctx, nil, domain.AppendRequest{OrderID: 100, OutletID: 1, Err: errors.New("connection reset")})
		require.NoError(t, err)
	}

	all, err := trail.GetAuditTrail(ctx, 100, 0)
	require.NoError(t, err)
	require.Len(t, all, 6)
	for i, entry := range all {
		assert.Equal(t, i+1, entry.AttemptNumber)
	}

	recent, err := trail.GetAuditTrail(ctx, 100, 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, 2, recent[0].AttemptNumber)
	assert.Equal(t, 6, recent[4].AttemptNumber)
}

func TestHasFailedAttempts(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	trail := newTrail(t, db)

	failed, err := trail.HasFailedAttempts(ctx, 100)
	require.NoError(t, err)
	assert.False(t, failed)

	_, err = trail.Append(ctx, nil, domain.AppendRequest{OrderID: 100, OutletID: 1, Err: errors.New("connection reset")})
	require.NoError(t, err)

	failed, err = trail.HasFailedAttempts(ctx, 100)
	require.NoError(t, err)
	assert.True(t, failed)

	invoiceID := snowflake.ID(900)
	require.NoError(t, db.Exec(`INSERT INTO invoices (id, order_id) VALUES (?, ?)`, invoiceID, 100).Error)
	entry, err := trail.Append(ctx, nil, domain.AppendRequest{OrderID: 100, OutletID: 1, Success: true, InvoiceID: &invoiceID})
	require.NoError(t, err)
	assert.Equal(t, 2, entry.AttemptNumber)

	failed, err = trail.HasFailedAttempts(ctx, 100)
	require.NoError(t, err)
	assert.False(t, failed)
}

func TestAppendSkipsFailureAfterInvoice(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	trail := newTrail(t, db)

	require.NoError(t, db.Exec(`INSERT INTO invoices (id, order_id) VALUES (?, ?)`, 900, 100).Error)
	entry, err := trail.Append(ctx, nil, domain.AppendRequest{OrderID: 100, OutletID: 1, Err: errors.New("late failure")})
	require.NoError(t, err)
	assert.Nil(t, entry)

	all, err := trail.GetAuditTrail(ctx, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// racingRepo lets another caller commit its invoice and success entry right
// after a failure append has checked for an invoice and found none.
type racingRepo struct {
	domain.Repository
	onMissingInvoice func()
}

func (r *racingRepo) InvoiceExists(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (bool, error) {
	exists, err := r.Repository.InvoiceExists(ctx, db, orderID)
	if err == nil && !exists && r.onMissingInvoice != nil {
		hook := r.onMissingInvoice
		r.onMissingInvoice = nil
		hook()
	}
	return exists, err
}

func TestAppendFailureNeverLandsAfterConcurrentSuccess(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	repo := &racingRepo{Repository: repository.Provide()}
	trail := service.NewService(service.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    repo,
		Clock:   clock.NewFakeClock(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)),
		Billing: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
	})

	invoiceID := snowflake.ID(900)
	repo.onMissingInvoice = func() {
		require.NoError(t, db.Exec(`INSERT INTO invoices (id, order_id) VALUES (?, ?)`, invoiceID, 100).Error)
		winner, err := trail.Append(ctx, nil, domain.AppendRequest{OrderID: 100, OutletID: 1, Success: true, InvoiceID: &invoiceID})
		require.NoError(t, err)
		require.Equal(t, 1, winner.AttemptNumber)
	}

	entry, err := trail.Append(ctx, nil, domain.AppendRequest{OrderID: 100, OutletID: 1, Err: errors.New("connection reset")})
	require.NoError(t, err)
	assert.Nil(t, entry)

	all, err := trail.GetAuditTrail(ctx, 100, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Success)

	failed, err := trail.HasFailedAttempts(ctx, 100)
	require.NoError(t, err)
	assert.False(t, failed)
}
