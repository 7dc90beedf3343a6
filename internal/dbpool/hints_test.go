package dbpool

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	apperr "termdeck/internal/errors"
)

func TestHintFor_PostgresAuthFailure(t *testing.T) {
	err := &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}
	hint := hintFor("postgresql", err)
	if !strings.Contains(hint, "authentication") {
		t.Errorf("expected auth hint, got %q", hint)
	}
}

func TestHintFor_PostgresMissingDatabase(t *testing.T) {
	err := &pgconn.PgError{Code: "3D000"}
	hint := hintFor("postgresql", err)
	if !strings.Contains(hint, "database does not exist") {
		t.Errorf("expected missing-db hint, got %q", hint)
	}
}

func TestHintFor_PostgresPermission(t *testing.T) {
	err := &pgconn.PgError{Code: "42501"}
	hint := hintFor("postgresql", err)
	if !strings.Contains(hint, "permission") {
		t.Errorf("expected permission hint, got %q", hint)
	}
}

func TestHintFor_MySQLAuthFailure(t *testing.T) {
	err := &mysql.MySQLError{Number: 1045, Message: "Access denied"}
	hint := hintFor("mysql", err)
	if !strings.Contains(hint, "authentication") {
		t.Errorf("expected auth hint, got %q", hint)
	}
}

func TestHintFor_MySQLMissingDatabase(t *testing.T) {
	err := &mysql.MySQLError{Number: 1049}
	hint := hintFor("mysql", err)
	if !strings.Contains(hint, "database does not exist") {
		t.Errorf("expected missing-db hint, got %q", hint)
	}
}

func TestHintFor_DNSFailure(t *testing.T) {
	err := &net.DNSError{Err: "no such host", Name: "db.invalid"}
	hint := hintFor("postgresql", err)
	if !strings.Contains(hint, "host not found") {
		t.Errorf("expected DNS hint, got %q", hint)
	}
}

func TestHintFor_ConnectionRefused(t *testing.T) {
	err := &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
	hint := hintFor("mysql", err)
	if !strings.Contains(hint, "refused") {
		t.Errorf("expected refused hint, got %q", hint)
	}
}

func TestHintFor_Timeout(t *testing.T) {
	hint := hintFor("postgresql", context.DeadlineExceeded)
	if !strings.Contains(hint, "timed out") {
		t.Errorf("expected timeout hint, got %q", hint)
	}
}

func TestHintFor_UnknownError(t *testing.T) {
	if hint := hintFor("postgresql", errors.New("weird")); hint != "" {
		t.Errorf("expected no hint for unknown error, got %q", hint)
	}
}

func TestClassify_ProducesConnectionCode(t *testing.T) {
	err := classify("postgresql", &pgconn.PgError{Code: "28P01"})

	if apperr.CodeOf(err) != apperr.CodeConnection {
		t.Errorf("expected code %s, got %s", apperr.CodeConnection, apperr.CodeOf(err))
	}
	if details := apperr.DetailsOf(err); !strings.Contains(details, "authentication") {
		t.Errorf("expected hint carried as details, got %q", details)
	}
}
