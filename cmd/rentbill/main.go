package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbill/internal/audit"
	"github.com/smallbiznis/rentbill/internal/clock"
	"github.com/smallbiznis/rentbill/internal/config"
	"github.com/smallbiznis/rentbill/internal/invoice"
	"github.com/smallbiznis/rentbill/internal/migration"
	"github.com/smallbiznis/rentbill/internal/observability"
	"github.com/smallbiznis/rentbill/internal/order"
	"github.com/smallbiznis/rentbill/internal/payment"
	"github.com/smallbiznis/rentbill/internal/sequence"
	"github.com/smallbiznis/rentbill/internal/server"
	"github.com/smallbiznis/rentbill/internal/tax"
	"github.com/smallbiznis/rentbill/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		// Billing domains
		order.Module,
		tax.Module,
		sequence.Module,
		audit.Module,
		invoice.Module,
		payment.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
