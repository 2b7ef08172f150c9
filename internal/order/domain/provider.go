package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Provider reads orders from the order-management system.
type Provider interface {
	GetOrder(ctx context.Context, orderID snowflake.ID) (*Order, error)
	// GetOutlet returns ErrOutletNotFound for unknown outlets.
	GetOutlet(ctx context.Context, outletID snowflake.ID) (*OutletRecord, error)
}
