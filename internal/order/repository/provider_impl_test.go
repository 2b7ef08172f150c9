package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbill/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "orders.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.OutletRecord{},
		&domain.CustomerRecord{},
		&domain.OrderRecord{},
		&domain.OrderItemRecord{},
	))
	return db
}

func TestGetOrderJoinsJurisdictions(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&domain.OutletRecord{ID: 1, Code: "BLR01", Name: "Indiranagar", StateCode: "KA"}).Error)
	require.NoError(t, db.Create(&domain.CustomerRecord{ID: 2, OutletID: 1, Name: "Asha", StateCode: "MH"}).Error)
	require.NoError(t, db.Create(&domain.OrderRecord{ID: 3, OutletID: 1, CustomerID: 2, CreatedAt: time.Now()}).Error)
	require.NoError(t, db.Create(&[]domain.OrderItemRecord{
		{ID: 11, OrderID: 3, LineNo: 2, Description: "Tripod", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(500), TaxRatePercent: decimal.NewFromInt(5)},
		{ID: 10, OrderID: 3, LineNo: 1, Description: "Camera", Quantity: decimal.NewFromInt(2), Rate: decimal.NewFromInt(1000), TaxRatePercent: decimal.NewFromInt(18)},
	}).Error)

	order, err := NewProvider(Params{DB: db}).GetOrder(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, "BLR01", order.OutletCode)
	assert.Equal(t, "KA", order.OutletStateCode)
	assert.Equal(t, "MH", order.CustomerStateCode)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, "Camera", order.Lines[0].Description)
	assert.True(t, order.Lines[0].UnitRate.Equal(decimal.NewFromInt(1000)))
	assert.Len(t, order.TaxLines(), 2)
}

func TestGetOrderNotFound(t *testing.T) {
	_, err := NewProvider(Params{DB: setupTestDB(t)}).GetOrder(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestGetOutlet(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&domain.OutletRecord{ID: 1, Code: "BLR01", Name: "Indiranagar", StateCode: "KA"}).Error)
	p := NewProvider(Params{DB: db})

	outlet, err := p.GetOutlet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "BLR01", outlet.Code)

	_, err = p.GetOutlet(context.Background(), 2)
	assert.ErrorIs(t, err, domain.ErrOutletNotFound)
}
