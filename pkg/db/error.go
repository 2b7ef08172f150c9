package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/rentbill/pkg/errs"
	"gorm.io/gorm"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	// gorm translates only when TranslateError is enabled; check the raw drivers too
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}

	// PostgreSQL (error code 23505)
	if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
		return true
	}

	// MySQL (error code 1062)
	if strings.Contains(err.Error(), "Error 1062") {
		return true
	}

	// SQLite (error code 2067)
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	return false
}

// transientPgCodes are SQLSTATEs worth retrying: connection exceptions,
// serialization failures, deadlocks, admin shutdown and resource exhaustion.
var transientPgCodes = map[string]bool{
	"40001": true,
	"40P01": true,
	"57P01": true,
	"57P02": true,
	"57P03": true,
	"53300": true,
	"55P03": true,
}

// IsTransientErr reports whether err is a timeout or connectivity failure.
func IsTransientErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") {
			return true
		}
		return transientPgCodes[pgErr.Code]
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"database is locked",
		"connection refused",
		"connection reset",
		"broken pipe",
		"bad connection",
		"i/o timeout",
		"server closed the connection",
		"invalid connection",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// ClassifyError maps a storage error onto the billing error taxonomy.
// Errors that are already classified pass through untouched.
func ClassifyError(err error, message string) error {
	if err == nil {
		return nil
	}
	var typed *errs.Error
	if errors.As(err, &typed) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errs.NotFound(err, message)
	case IsDuplicateKeyErr(err):
		return errs.Conflict(err, message)
	case IsTransientErr(err):
		return errs.Transient(err, message)
	default:
		return errs.Wrap(errs.KindInternal, err, message)
	}
}
