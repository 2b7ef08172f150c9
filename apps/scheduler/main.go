package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbill/internal/audit"
	"github.com/smallbiznis/rentbill/internal/clock"
	"github.com/smallbiznis/rentbill/internal/config"
	"github.com/smallbiznis/rentbill/internal/invoice"
	"github.com/smallbiznis/rentbill/internal/lock"
	"github.com/smallbiznis/rentbill/internal/observability"
	"github.com/smallbiznis/rentbill/internal/order"
	"github.com/smallbiznis/rentbill/internal/payment"
	"github.com/smallbiznis/rentbill/internal/scheduler"
	"github.com/smallbiznis/rentbill/internal/sequence"
	"github.com/smallbiznis/rentbill/internal/tax"
	"github.com/smallbiznis/rentbill/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services required by the overdue sweep
		order.Module,
		tax.Module,
		sequence.Module,
		audit.Module,
		invoice.Module,
		payment.Module,

		// Redis lease so only one replica sweeps at a time
		lock.Module,
		scheduler.Module,
		// No server module!
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	// Offset from the API node so ids never collide when both run.
	return snowflake.NewNode(cfg.SnowflakeNode + 1)
}
