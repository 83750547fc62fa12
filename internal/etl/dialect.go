package etl

import (
	"fmt"
	"strings"
	"time"

	"github.com/BartekS5/cinesync/pkg/utils"
	"github.com/lib/pq"
)

// Dialect hides the SQL differences between the supported sources. The
// queries themselves, and therefore the watermark rule, are shared.
type Dialect interface {
	Name() string
	Placeholder(n int) string
	// Greatest is the scalar maximum of its arguments.
	Greatest(exprs ...string) string
	// Epoch is the timestamp literal NULL timestamps collapse to.
	Epoch() string
	// Limit is appended after ORDER BY.
	Limit(n int) string
	// IDText renders an id column as text.
	IDText(col string) string
	BindTime(t time.Time) any
	// MatchAny returns a predicate "col is one of ids" whose first
	// placeholder is number first, together with its arguments.
	MatchAny(col string, first int, ids []string) (string, []any)
}

func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres":
		return postgresDialect{}, nil
	case "sqlserver":
		return sqlServerDialect{}, nil
	case "sqlite":
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("no SQL dialect for driver %q", driver)
	}
}

func inList(d Dialect, col string, first int, ids []string) (string, []any) {
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = d.Placeholder(first + i)
		args[i] = id
	}
	return fmt.Sprintf("%s IN (%s)", col, strings.Join(ph, ", ")), args
}

type postgresDialect struct{}

func (postgresDialect) Name() string             { return "postgres" }
func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (postgresDialect) Greatest(exprs ...string) string {
	return "GREATEST(" + strings.Join(exprs, ", ") + ")"
}
func (postgresDialect) Epoch() string            { return "TIMESTAMPTZ 'epoch'" }
func (postgresDialect) Limit(n int) string       { return fmt.Sprintf("LIMIT %d", n) }
func (postgresDialect) IDText(col string) string { return col + "::text" }
func (postgresDialect) BindTime(t time.Time) any { return t.UTC() }
func (d postgresDialect) MatchAny(col string, first int, ids []string) (string, []any) {
	return fmt.Sprintf("%s = ANY(%s::uuid[])", col, d.Placeholder(first)), []any{pq.Array(ids)}
}

// sqlServerDialect needs SQL Server 2022 or later for GREATEST.
type sqlServerDialect struct{}

func (sqlServerDialect) Name() string             { return "sqlserver" }
func (sqlServerDialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }
func (sqlServerDialect) Greatest(exprs ...string) string {
	return "GREATEST(" + strings.Join(exprs, ", ") + ")"
}
func (sqlServerDialect) Epoch() string { return "CAST('1970-01-01T00:00:00' AS DATETIME2)" }
func (sqlServerDialect) Limit(n int) string {
	return fmt.Sprintf("OFFSET 0 ROWS FETCH NEXT %d ROWS ONLY", n)
}
func (sqlServerDialect) IDText(col string) string { return "CONVERT(NVARCHAR(36), " + col + ")" }
func (sqlServerDialect) BindTime(t time.Time) any { return t.UTC() }
func (d sqlServerDialect) MatchAny(col string, first int, ids []string) (string, []any) {
	return inList(d, col, first, ids)
}

// sqliteDialect expects timestamps stored as text in utils.SQLiteTimeLayout
// so that text comparison orders them correctly.
type sqliteDialect struct{}

func (sqliteDialect) Name() string           { return "sqlite" }
func (sqliteDialect) Placeholder(int) string { return "?" }
func (sqliteDialect) Greatest(exprs ...string) string {
	return "MAX(" + strings.Join(exprs, ", ") + ")"
}
func (sqliteDialect) Epoch() string            { return "'1970-01-01 00:00:00.000000'" }
func (sqliteDialect) Limit(n int) string       { return fmt.Sprintf("LIMIT %d", n) }
func (sqliteDialect) IDText(col string) string { return col }
func (sqliteDialect) BindTime(t time.Time) any { return t.UTC().Format(utils.SQLiteTimeLayout) }
func (d sqliteDialect) MatchAny(col string, first int, ids []string) (string, []any) {
	return inList(d, col, first, ids)
}
