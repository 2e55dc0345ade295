package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"sheetsql/internal/introspect"
	"sheetsql/internal/logger"
	"sheetsql/internal/schema"
)

// IndexKind selects the statement form of a secondary structure.
type IndexKind int

const (
	IndexUnique IndexKind = iota
	IndexSecondary
	IndexFullText
)

func (k IndexKind) String() string {
	switch k {
	case IndexUnique:
		return "unique"
	case IndexFullText:
		return "fulltext"
	default:
		return "secondary"
	}
}

// Querier is the read surface shared by *sqlx.DB and *sqlx.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect renders engine-specific SQL. Types arrive in the canonical MySQL
// vocabulary of schema.StorageType and are translated by ColumnType.
type Dialect interface {
	// Name is the canonical dialect name; DriverName the database/sql driver.
	Name() string
	DriverName() string

	Quote(ident string) string
	// Placeholder returns the bind marker for the n-th argument, 1-based.
	Placeholder(n int) string

	ColumnType(t schema.StorageType) string
	// AutoIncrement returns the identity clause for f. inlinePK reports that
	// the clause already declares the primary key.
	AutoIncrement(f schema.Field) (clause string, inlinePK bool)
	// DefaultClause renders "DEFAULT ..." for f, or "" when it has none.
	DefaultClause(f schema.Field) string
	ColumnComment(comment string) string

	CreateTable(name string, defs []string, meta schema.TableMeta) string
	// CreateIndex returns false when the engine has no such index form.
	CreateIndex(kind IndexKind, name, table string, cols []schema.Field) (string, bool)

	// TableExists returns a query yielding a single count.
	TableExists(table string) (string, []any)
	// Limit applies a row limit to a SELECT statement.
	Limit(query string, n int) string
	Describe(ctx context.Context, q Querier, table string, log *logger.Logger) (introspect.Table, error)
}

var dialects = map[string]Dialect{}

// Register makes a Dialect available under name.
func Register(name string, d Dialect) {
	dialects[strings.ToLower(name)] = d
}

// Lookup finds a registered dialect by name or alias.
func Lookup(name string) (Dialect, bool) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

func listRegistered() []string {
	keys := make([]string, 0, len(dialects))
	for k := range dialects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RegisteredDialects lists the registered names and aliases.
func RegisteredDialects() []string {
	return listRegistered()
}

// QuoteString renders s as a single-quoted SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Literal renders a default value. Booleans use the given spellings.
func Literal(v any, trueLit, falseLit string) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if t {
			return trueLit
		}
		return falseLit
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return QuoteString(t)
	case time.Time:
		return QuoteString(t.Format("2006-01-02 15:04:05"))
	default:
		return QuoteString(fmt.Sprint(t))
	}
}

// JoinColumns renders each field with col and joins them for an index list.
func JoinColumns(cols []schema.Field, col func(schema.Field) string) string {
	parts := make([]string, len(cols))
	for i, f := range cols {
		parts[i] = col(f)
	}
	return strings.Join(parts, ", ")
}

// QuoteWith wraps ident in open/close, doubling any embedded close rune.
func QuoteWith(ident, open, close string) string {
	return open + strings.ReplaceAll(ident, close, close+close) + close
}
