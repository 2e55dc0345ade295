package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetsql/internal/apperrors"
	"sheetsql/internal/dataset"
	"sheetsql/internal/db"
	_ "sheetsql/internal/db/dialects"
	"sheetsql/internal/logger"
	"sheetsql/internal/schema"
	"sheetsql/internal/semantic"
	"sheetsql/internal/synth"
)

func openMemory(t *testing.T) *db.Conn {
	t.Helper()
	conn, err := db.Open(context.Background(), "sqlite", ":memory:", time.Second, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func count(t *testing.T, conn *db.Conn, query string) int64 {
	t.Helper()
	rows, err := conn.QueryRows(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	for _, v := range rows[0] {
		return v.(int64)
	}
	return 0
}

func codesSpec(t *testing.T) *schema.Table {
	t.Helper()
	spec := schema.NewTable(synth.DefaultMeta("codes"))
	for _, f := range []schema.Field{
		{Name: "id", Type: schema.BigInt, AutoIncrement: true, Tag: semantic.PrimaryKey},
		{Name: "code", Type: schema.VarChar(20)},
		{Name: "email", Type: schema.VarChar(255), Nullable: true, Tag: semantic.Email},
		{Name: "label", Type: schema.VarChar(50), Default: schema.Literal("")},
		{Name: "created_at", Type: schema.Timestamp, Default: schema.Default{Kind: schema.CurrentTime}, Tag: semantic.Timestamp},
	} {
		require.NoError(t, spec.AddField(f))
	}
	spec.Indexes = schema.IndexPlan{PrimaryKey: []string{"id"}, Secondary: []string{"code"}}
	return spec
}

func TestProvisionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t)
	p := New(conn, logger.Nop())

	created, err := p.Provision(ctx, codesSpec(t))
	require.NoError(t, err)
	assert.True(t, created)

	_, err = conn.ExecContext(ctx, `INSERT INTO codes (code) VALUES ('keep')`)
	require.NoError(t, err)

	created, err = p.Provision(ctx, codesSpec(t))
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, int64(1), count(t, conn, `SELECT COUNT(*) AS n FROM sqlite_master WHERE type = 'table' AND name = 'codes'`))
	assert.Equal(t, int64(1), count(t, conn, `SELECT COUNT(*) AS n FROM codes`))
}

func TestProvisionTableFailureIsFatal(t *testing.T) {
	spec := codesSpec(t)
	// names starting with sqlite_ are reserved
	spec.Meta.Name = "sqlite_codes"

	_, err := New(openMemory(t), logger.Nop()).Provision(context.Background(), spec)
	require.Error(t, err)

	var derr *apperrors.DDLExecutionError
	require.ErrorAs(t, err, &derr)
	assert.True(t, derr.Fatal())
}

func TestProvisionToleratesIndexFailure(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t)
	// an index cannot share its name with a table
	_, err := conn.ExecContext(ctx, `CREATE TABLE idx_codes_code (x INTEGER)`)
	require.NoError(t, err)

	spec := codesSpec(t)
	spec.Indexes.UniqueKeys = [][]string{{"email"}}

	created, err := New(conn, logger.Nop()).Provision(ctx, spec)
	require.NoError(t, err)
	assert.True(t, created)

	exists, err := conn.TableExists(ctx, "codes")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int64(1), count(t, conn, `SELECT COUNT(*) AS n FROM sqlite_master WHERE type = 'index' AND name = 'uk_codes_1'`))
}

func TestLoadCoercesValues(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t)
	p := New(conn, logger.Nop())
	spec := codesSpec(t)
	_, err := p.Provision(ctx, spec)
	require.NoError(t, err)

	rows := []dataset.Row{
		{"code": "a", "email": "a@example.com", "label": "first", "ignored": 1},
		{"code": "b", "email": "not-an-email", "label": nil},
		{"code": "c", "email": "N/A"},
	}
	res, err := p.Load(ctx, rows, spec, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 1, res.Batches)
	assert.Equal(t, map[string]int{"email": 1}, res.Nulled)
	assert.NotEmpty(t, res.RunID)
	assert.Contains(t, res.Summary(), "email: 1 nulled")

	got, err := conn.QueryRows(ctx, `SELECT code, email, label FROM codes ORDER BY id`)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, dataset.Row{"code": "a", "email": "a@example.com", "label": "first"}, got[0])
	assert.Equal(t, dataset.Row{"code": "b", "email": nil, "label": ""}, got[1])
	assert.Equal(t, dataset.Row{"code": "c", "email": nil, "label": ""}, got[2])
}

func TestLoadRollsBackOnFailedBatch(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t)
	p := New(conn, logger.Nop())
	spec := codesSpec(t)
	_, err := p.Provision(ctx, spec)
	require.NoError(t, err)

	var rows []dataset.Row
	for i := 0; i < 10; i++ {
		rows = append(rows, dataset.Row{"code": fmt.Sprintf("c%d", i)})
	}
	// code is NOT NULL without a default; row 5 lands in batch 3 of 5
	rows[4]["code"] = nil

	_, err = p.Load(ctx, rows, spec, 2)
	require.Error(t, err)

	var berr *apperrors.BatchWriteError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, 3, berr.Batch)
	assert.Equal(t, 5, berr.Batches)
	assert.Equal(t, int64(0), count(t, conn, `SELECT COUNT(*) AS n FROM codes`))
}

func TestLoadNothingToWrite(t *testing.T) {
	p := New(openMemory(t), logger.Nop())
	spec := codesSpec(t)

	res, err := p.Load(context.Background(), nil, spec, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rows)

	res, err = p.Load(context.Background(), []dataset.Row{{"other": 1}}, spec, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rows)
}

func TestImportEndToEnd(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t)
	p := New(conn, logger.Nop())

	ds := dataset.New([]dataset.Row{
		{"age": 25, "bio": strings.Repeat("long text ", 30), "site": "https://a.com"},
		{"age": 200, "bio": nil, "site": "not-a-url"},
		{"age": 31, "bio": "short", "site": "https://b.com"},
		{"age": 42, "bio": "short", "site": "https://c.com"},
		{"age": 53, "bio": "other", "site": "https://d.com"},
	})

	res, err := p.Import(ctx, ds, ImportOptions{Table: "people"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 5, res.Load.Rows)
	require.Len(t, res.Profiles, 3)
	assert.Equal(t, 1.0, res.Profiles[0].UniqueRatio)

	site, _ := res.Spec.Field("site")
	assert.Equal(t, semantic.URL, site.Tag)
	assert.Equal(t, schema.Text, site.Type)

	live, err := conn.Describe(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "age", "bio", "site", "created_at", "updated_at"}, live.ColumnNames())
	assert.Equal(t, int64(5), live.Rows)

	got, err := conn.QueryRows(ctx, `SELECT age, site FROM people ORDER BY id`)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, dataset.Row{"age": int64(200), "site": nil}, got[1])
	assert.Equal(t, "https://a.com", got[0]["site"])

	// a second import into the existing table only appends
	more := dataset.New([]dataset.Row{
		{"age": 60, "bio": "more", "site": "https://e.com"},
		{"age": 61, "bio": "more", "site": "https://f.com"},
	})
	res, err = p.Import(ctx, more, ImportOptions{Table: "people", Spec: res.Spec})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, int64(7), count(t, conn, `SELECT COUNT(*) AS n FROM people`))

	res, err = p.Import(ctx, ds, ImportOptions{Table: "people", Spec: res.Spec, Replace: true})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, int64(5), count(t, conn, `SELECT COUNT(*) AS n FROM people`))
}

func TestImportIgnoresGeneratedColumnsInSource(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t)
	p := New(conn, logger.Nop())

	ds := dataset.New([]dataset.Row{
		{"id": "A-1", "name": "x", "created_at": "yesterday"},
		{"id": "A-2", "name": "y", "created_at": "today"},
	})
	res, err := p.Import(ctx, ds, ImportOptions{Table: "people"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Load.Rows)

	got, err := conn.QueryRows(ctx, `SELECT id, name FROM people ORDER BY id`)
	require.NoError(t, err)
	assert.Equal(t, []dataset.Row{{"id": int64(1), "name": "x"}, {"id": int64(2), "name": "y"}}, got)
	assert.Equal(t, int64(0), count(t, conn, `SELECT COUNT(*) AS n FROM people WHERE created_at IN ('yesterday', 'today')`))
}

func TestImportSingleValueColumnStaysPlain(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t)
	p := New(conn, logger.Nop())

	// one URL among two non-null values is below the pattern threshold
	ds := dataset.New([]dataset.Row{
		{"age": 25, "site": "https://a.com"},
		{"age": 200, "site": "not-a-url"},
	})
	res, err := p.Import(ctx, ds, ImportOptions{Table: "people"})
	require.NoError(t, err)

	site, ok := res.Spec.Field("site")
	require.True(t, ok)
	assert.Equal(t, semantic.Plain, site.Tag)
	assert.Equal(t, schema.CategoryText, site.Type.Category())
	assert.Empty(t, res.Load.Nulled)

	got, err := conn.QueryRows(ctx, `SELECT site FROM people ORDER BY id`)
	require.NoError(t, err)
	assert.Equal(t, []dataset.Row{{"site": "https://a.com"}, {"site": "not-a-url"}}, got)
}

func TestLoadIntoExistingTable(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t)
	_, err := conn.ExecContext(ctx, `CREATE TABLE legacy (id INTEGER PRIMARY KEY, qty INTEGER, price REAL)`)
	require.NoError(t, err)

	res, err := New(conn, logger.Nop()).LoadInto(ctx, "legacy", []dataset.Row{
		{"qty": "3", "price": "1.25"},
		{"qty": 4.0, "price": 2},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)

	got, err := conn.QueryRows(ctx, `SELECT qty, price FROM legacy ORDER BY id`)
	require.NoError(t, err)
	assert.Equal(t, dataset.Row{"qty": int64(3), "price": 1.25}, got[0])
	assert.Equal(t, dataset.Row{"qty": int64(4), "price": 2.0}, got[1])
}

func TestInsertStatementPlaceholders(t *testing.T) {
	fields := []schema.Field{{Name: "a"}, {Name: "b"}}
	rows := [][]any{{1, 2}, {3, 4}}

	pg, _ := db.Lookup("postgres")
	q, args := insertStatement(pg, "t", fields, rows)
	assert.Equal(t, `INSERT INTO "t" ("a", "b") VALUES ($1, $2), ($3, $4)`, q)
	assert.Equal(t, []any{1, 2, 3, 4}, args)

	my, _ := db.Lookup("mysql")
	q, _ = insertStatement(my, "t", fields, rows)
	assert.Equal(t, "INSERT INTO `t` (`a`, `b`) VALUES (?, ?), (?, ?)", q)
}

func TestCoerceValue(t *testing.T) {
	c := newCoercer()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	var tests = []struct {
		name  string
		field schema.Field
		in    any
		want  any
	}{
		{"phone number stringified", schema.Field{Name: "p", Type: schema.VarChar(20), Nullable: true, Tag: semantic.Phone}, int64(13800138000), "13800138000"},
		{"invalid url nulled", schema.Field{Name: "u", Type: schema.Text, Nullable: true, Tag: semantic.URL}, "ftp://x", nil},
		{"integer from string", schema.Field{Name: "i", Type: schema.Int, Nullable: true}, " 42 ", int64(42)},
		{"integral float to integer", schema.Field{Name: "i", Type: schema.Int, Nullable: true}, 7.0, int64(7)},
		{"out of range integer string kept", schema.Field{Name: "i", Type: schema.BigInt, Nullable: true}, "1e30", "1e30"},
		{"out of range float kept", schema.Field{Name: "i", Type: schema.BigInt, Nullable: true}, 1e30, 1e30},
		{"out of range float32 kept", schema.Field{Name: "i", Type: schema.BigInt, Nullable: true}, float32(-1e20), float32(-1e20)},
		{"no range validation", schema.Field{Name: "i", Type: schema.TinyInt, Nullable: true}, 200, 200},
		{"loose boolean", schema.Field{Name: "b", Type: schema.Boolean, Nullable: true}, "yes", true},
		{"datetime from string", schema.Field{Name: "d", Type: schema.DateTime, Nullable: true}, "2024-01-02 03:04:05", fixed},
		{"missing marker to default", schema.Field{Name: "n", Type: schema.Int, Default: schema.Literal(0)}, "NA", int64(0)},
		{"time default filled", schema.Field{Name: "t", Type: schema.Timestamp, Default: schema.Default{Kind: schema.CurrentTime}}, nil, fixed},
		{"nullable keeps nil", schema.Field{Name: "n", Type: schema.Int, Nullable: true, Default: schema.Literal(0)}, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.value(tt.field, tt.in))
		})
	}
}
