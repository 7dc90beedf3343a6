package dbpool

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	apperr "termdeck/internal/errors"
)

// classify maps a raw driver error onto the connection-error taxonomy with
// a human-readable hint. The raw error is kept as the cause but never
// echoed verbatim in the hint.
func classify(dbType string, err error) error {
	if hint := hintFor(dbType, err); hint != "" {
		return apperr.Connection("database operation failed", err).WithDetails(hint)
	}
	return apperr.Connection("database operation failed", err)
}

func hintFor(dbType string, err error) string {
	// Network-level failures are engine-independent.
	if errors.Is(err, context.DeadlineExceeded) {
		return "connection timed out: check that the host is reachable and the port is correct"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "host not found: check the hostname"
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return "connection refused: check that the server is running and accepting connections on this port"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "connection timed out: check that the host is reachable and the port is correct"
	}

	switch dbType {
	case "postgresql":
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "28P01", "28000":
				return "authentication failed: check the username and password"
			case "3D000":
				return "database does not exist: check the database name"
			case "42501":
				return "permission denied: the user lacks the required privileges"
			}
		}
	case "mysql":
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) {
			switch myErr.Number {
			case 1045:
				return "authentication failed: check the username and password"
			case 1049:
				return "database does not exist: check the database name"
			case 1044, 1142:
				return "permission denied: the user lacks the required privileges"
			}
		}
	}

	return ""
}
