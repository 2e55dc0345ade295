package dialects

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sheetsql/internal/db"
	"sheetsql/internal/introspect"
	"sheetsql/internal/logger"
	"sheetsql/internal/schema"
)

// maxNVarChar is the widest NVARCHAR before MAX is required.
const maxNVarChar = 4000

// sqlserverDialect targets Microsoft SQL Server. Fulltext indexes need a
// catalog and are not created.
type sqlserverDialect struct{}

func (sqlserverDialect) Name() string       { return "sqlserver" }
func (sqlserverDialect) DriverName() string { return "sqlserver" }

func (sqlserverDialect) Quote(ident string) string { return db.QuoteWith(ident, "[", "]") }

func (sqlserverDialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

func (sqlserverDialect) ColumnType(t schema.StorageType) string {
	switch t.Base() {
	case "TINYINT", "SMALLINT":
		// TINYINT is unsigned here.
		return "SMALLINT"
	case "MEDIUMINT", "INT", "INTEGER":
		return "INT"
	case "BIGINT":
		return "BIGINT"
	case "FLOAT", "REAL":
		return "REAL"
	case "DOUBLE":
		return "FLOAT"
	case "BOOLEAN", "BOOL":
		return "BIT"
	case "DATETIME", "TIMESTAMP":
		return "DATETIME2"
	case "TEXT", "MEDIUMTEXT", "LONGTEXT":
		return "NVARCHAR(MAX)"
	case "VARCHAR", "CHAR":
		if n := t.Size(); n > 0 && n <= maxNVarChar {
			return fmt.Sprintf("NVARCHAR(%d)", n)
		}
		return "NVARCHAR(MAX)"
	}
	return string(t)
}

func (sqlserverDialect) AutoIncrement(schema.Field) (string, bool) { return "IDENTITY(1,1)", false }

func (sqlserverDialect) DefaultClause(f schema.Field) string {
	switch {
	case f.Default.IsTime():
		return "DEFAULT CURRENT_TIMESTAMP"
	case f.Default.Kind == schema.LiteralDefault:
		return "DEFAULT " + db.Literal(f.Default.Value, "1", "0")
	}
	return ""
}

func (sqlserverDialect) ColumnComment(string) string { return "" }

func (d sqlserverDialect) CreateTable(name string, defs []string, _ schema.TableMeta) string {
	return fmt.Sprintf("IF OBJECT_ID(N%s, N'U') IS NULL\nCREATE TABLE %s (\n  %s\n)",
		db.QuoteString(name), d.Quote(name), strings.Join(defs, ",\n  "))
}

func (d sqlserverDialect) CreateIndex(kind db.IndexKind, name, table string, cols []schema.Field) (string, bool) {
	quote := func(f schema.Field) string { return d.Quote(f.Name) }
	switch kind {
	case db.IndexUnique:
		return fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)", d.Quote(name), d.Quote(table), db.JoinColumns(cols, quote)), true
	case db.IndexSecondary:
		return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", d.Quote(name), d.Quote(table), db.JoinColumns(cols, quote)), true
	default:
		return "", false
	}
}

func (sqlserverDialect) TableExists(table string) (string, []any) {
	return `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES
        WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_NAME = @table`, []any{sql.Named("table", table)}
}

func (sqlserverDialect) Limit(query string, n int) string {
	trimmed := strings.TrimSpace(query)
	if len(trimmed) >= 7 && strings.EqualFold(trimmed[:7], "SELECT ") {
		return fmt.Sprintf("SELECT TOP (%d) %s", n, trimmed[7:])
	}
	return query
}

func (sqlserverDialect) Describe(ctx context.Context, q db.Querier, table string, log *logger.Logger) (introspect.Table, error) {
	t := introspect.Table{Name: table}
	cr, err := q.QueryContext(ctx, `
        SELECT COLUMN_NAME, DATA_TYPE, CASE WHEN IS_NULLABLE='YES' THEN 1 ELSE 0 END, COLUMN_DEFAULT
        FROM INFORMATION_SCHEMA.COLUMNS
        WHERE TABLE_NAME = @table
        ORDER BY ORDINAL_POSITION`, sql.Named("table", table))
	if err != nil {
		return t, fmt.Errorf("query columns for %s: %w", table, err)
	}
	for cr.Next() {
		var col introspect.Column
		var nullableInt int
		var def sql.NullString
		if err := cr.Scan(&col.Name, &col.Type, &nullableInt, &def); err != nil {
			cr.Close()
			return t, fmt.Errorf("scan column for %s: %w", table, err)
		}
		col.Nullable = nullableInt == 1
		if def.Valid {
			col.Default = &def.String
		}
		t.Columns = append(t.Columns, col)
	}
	cr.Close()
	if len(t.Columns) == 0 {
		return t, fmt.Errorf("table %s not found", table)
	}

	pkr, err := q.QueryContext(ctx, `
        SELECT k.COLUMN_NAME
        FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS t
        JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k ON t.CONSTRAINT_NAME = k.CONSTRAINT_NAME AND t.TABLE_SCHEMA = k.TABLE_SCHEMA
        WHERE t.CONSTRAINT_TYPE = 'PRIMARY KEY' AND k.TABLE_NAME = @table`, sql.Named("table", table))
	if err != nil {
		log.Error("query primary key: %v", err)
		return t, nil
	}
	defer pkr.Close()
	for pkr.Next() {
		var pkcol string
		if err := pkr.Scan(&pkcol); err != nil {
			log.Error("scan primary key: %v", err)
			continue
		}
		markPK(&t, pkcol)
	}
	return t, nil
}

func init() {
	db.Register("sqlserver", sqlserverDialect{})
	db.Register("mssql", sqlserverDialect{})
}
