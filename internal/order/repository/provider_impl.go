package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbill/internal/order/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB *gorm.DB
}

type provider struct {
	db *gorm.DB
}

func NewProvider(p Params) domain.Provider {
	return &provider{db: p.DB}
}

type orderHeaderRow struct {
	ID                snowflake.ID
	OutletID          snowflake.ID
	OutletCode        string
	OutletStateCode   *string
	CustomerID        snowflake.ID
	CustomerStateCode *string
}

// GetOrder returns ErrOrderNotFound when no order row exists. Storage errors
// are returned unclassified.
func (p *provider) GetOrder(ctx context.Context, orderID snowflake.ID) (*domain.Order, error) {
	if orderID == 0 {
		return nil, domain.ErrInvalidOrder
	}

	var header orderHeaderRow
	err := p.db.WithContext(ctx).Raw(
		`SELECT o.id, o.outlet_id, ot.code AS outlet_code, ot.state_code AS outlet_state_code,
			o.customer_id, c.state_code AS customer_state_code
		 FROM orders o
		 JOIN outlets ot ON ot.id = o.outlet_id
		 LEFT JOIN customers c ON c.id = o.customer_id
		 WHERE o.id = ?
		 LIMIT 1`,
		orderID,
	).Scan(&header).Error
	if err != nil {
		return nil, err
	}
	if header.ID == 0 {
		return nil, domain.ErrOrderNotFound
	}

	var items []domain.OrderItemRecord
	if err := p.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("line_no ASC").
		Find(&items).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	order := &domain.Order{
		ID:                header.ID,
		OutletID:          header.OutletID,
		OutletCode:        header.OutletCode,
		OutletStateCode:   deref(header.OutletStateCode),
		CustomerID:        header.CustomerID,
		CustomerStateCode: deref(header.CustomerStateCode),
		Lines:             make([]domain.OrderLine, 0, len(items)),
	}
	for _, item := range items {
		order.Lines = append(order.Lines, domain.OrderLine{
			LineNo:         item.LineNo,
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitRate:       item.Rate,
			TaxRatePercent: item.TaxRatePercent,
		})
	}
	return order, nil
}

func (p *provider) GetOutlet(ctx context.Context, outletID snowflake.ID) (*domain.OutletRecord, error) {
	var outlet domain.OutletRecord
	err := p.db.WithContext(ctx).Where("id = ?", outletID).First(&outlet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOutletNotFound
		}
		return nil, err
	}
	return &outlet, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
