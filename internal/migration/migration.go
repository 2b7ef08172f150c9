package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/rentbill/internal/audit/domain"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	orderdomain "github.com/smallbiznis/rentbill/internal/order/domain"
	paymentdomain "github.com/smallbiznis/rentbill/internal/payment/domain"
	seqdomain "github.com/smallbiznis/rentbill/internal/sequence/domain"
	pkgdb "github.com/smallbiznis/rentbill/pkg/db"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table the billing engine reads or writes, in
// dependency order.
func Models() []any {
	return []any{
		&orderdomain.OutletRecord{},
		&orderdomain.CustomerRecord{},
		&orderdomain.OrderRecord{},
		&orderdomain.OrderItemRecord{},
		&seqdomain.SequenceCounter{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLineItem{},
		&paymentdomain.Payment{},
		&auditdomain.CreationAuditEntry{},
	}
}

// Apply runs the embedded SQL migrations on postgres. Other dialects are
// development targets and get the schema from the gorm models.
func Apply(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if pkgdb.DialectName(conn) != pkgdb.DialectPostgres {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB

	return nil
}
