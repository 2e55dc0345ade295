package ddl_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetsql/internal/apperrors"
	"sheetsql/internal/ddl"
	"sheetsql/internal/db"
	_ "sheetsql/internal/db/dialects"
	"sheetsql/internal/logger"
	"sheetsql/internal/schema"
	"sheetsql/internal/semantic"
	"sheetsql/internal/synth"
)

func peopleSpec(t *testing.T) *schema.Table {
	t.Helper()
	spec := schema.NewTable(synth.DefaultMeta("people"))
	for _, f := range []schema.Field{
		{Name: "id", Type: schema.BigInt, AutoIncrement: true, Tag: semantic.PrimaryKey, Comment: "auto-increment primary key"},
		{Name: "age", Type: schema.SmallInt, Default: schema.Literal(0)},
		{Name: "bio", Type: schema.Text, Nullable: true},
		{Name: "site", Type: schema.Text, Nullable: true, Tag: semantic.URL},
		{Name: "created_at", Type: schema.Timestamp, Default: schema.Default{Kind: schema.CurrentTime}, Tag: semantic.Timestamp, Comment: "creation time"},
		{Name: "updated_at", Type: schema.Timestamp, Default: schema.Default{Kind: schema.CurrentTimeOnUpdate}, Tag: semantic.Timestamp, Comment: "last update time"},
	} {
		require.NoError(t, spec.AddField(f))
	}
	spec.Indexes = schema.IndexPlan{
		PrimaryKey: []string{"id"},
		UniqueKeys: [][]string{{"age"}},
		Secondary:  []string{"created_at", "updated_at", "bio"},
		FullText:   []string{"bio"},
	}
	return spec
}

func dialect(t *testing.T, name string) db.Dialect {
	t.Helper()
	d, ok := db.Lookup(name)
	require.True(t, ok, "dialect %s not registered", name)
	return d
}

func TestGenerateMySQL(t *testing.T) {
	script, err := ddl.Generate(peopleSpec(t), dialect(t, "mysql"))
	require.NoError(t, err)

	want := "CREATE TABLE IF NOT EXISTS `people` (\n" +
		"  `id` BIGINT NOT NULL AUTO_INCREMENT COMMENT 'auto-increment primary key',\n" +
		"  `age` SMALLINT NOT NULL DEFAULT 0 COMMENT 'age',\n" +
		"  `bio` TEXT COMMENT 'bio',\n" +
		"  `site` TEXT COMMENT 'site',\n" +
		"  `created_at` TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP COMMENT 'creation time',\n" +
		"  `updated_at` TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP COMMENT 'last update time',\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB AUTO_INCREMENT=1 DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci COMMENT='auto-generated table'"
	assert.Equal(t, want, script.Table.SQL)
	assert.Equal(t, apperrors.LevelTable, script.Table.Level)

	var got []string
	for _, st := range script.Indexes {
		got = append(got, st.SQL)
	}
	assert.Equal(t, []string{
		"CREATE UNIQUE INDEX `uk_people_1` ON `people` (`age`)",
		"CREATE INDEX `idx_people_created_at` ON `people` (`created_at`)",
		"CREATE INDEX `idx_people_updated_at` ON `people` (`updated_at`)",
		"CREATE INDEX `idx_people_bio` ON `people` (`bio`(255))",
		"CREATE FULLTEXT INDEX `ft_people_bio` ON `people` (`bio`)",
	}, got)
	assert.Empty(t, script.Skipped)
}

func TestMySQLDefaults(t *testing.T) {
	var tests = []struct {
		name  string
		field schema.Field
		want  string
	}{
		{"string default quoted", schema.Field{Name: "n", Type: schema.VarChar(50), Default: schema.Literal("it's")}, "`n` VARCHAR(50) NOT NULL DEFAULT 'it''s' COMMENT 'n'"},
		{"text default is an expression", schema.Field{Name: "n", Type: schema.LongText, Default: schema.Literal("")}, "`n` LONGTEXT NOT NULL DEFAULT ('') COMMENT 'n'"},
		{"float default unquoted", schema.Field{Name: "n", Type: schema.Double, Default: schema.Literal(1.5)}, "`n` DOUBLE NOT NULL DEFAULT 1.5 COMMENT 'n'"},
		{"boolean default unquoted", schema.Field{Name: "n", Type: schema.Boolean, Default: schema.Literal(false)}, "`n` BOOLEAN NOT NULL DEFAULT FALSE COMMENT 'n'"},
		{"nullable without default", schema.Field{Name: "n", Type: schema.DateTime, Nullable: true, Tag: semantic.DateTime}, "`n` DATETIME COMMENT 'n'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := schema.NewTable(schema.TableMeta{Name: "t"})
			require.NoError(t, spec.AddField(tt.field))

			script, err := ddl.Generate(spec, dialect(t, "mysql"))
			require.NoError(t, err)
			assert.Contains(t, script.Table.SQL, "\n  "+tt.want+"\n")
		})
	}
}

func TestGenerateOtherDialects(t *testing.T) {
	var tests = []struct {
		dialect  string
		contains []string
		skipped  []string
	}{
		{
			"sqlite",
			[]string{
				`"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT`,
				`"age" INTEGER NOT NULL DEFAULT 0`,
				`"updated_at" TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP`,
			},
			[]string{"ft_people_bio"},
		},
		{
			"postgres",
			[]string{
				`"id" BIGINT NOT NULL GENERATED BY DEFAULT AS IDENTITY`,
				`PRIMARY KEY ("id")`,
				`USING GIN (to_tsvector('simple', "bio"))`,
			},
			nil,
		},
		{
			"sqlserver",
			[]string{
				"IF OBJECT_ID(N'people', N'U') IS NULL",
				"[id] BIGINT NOT NULL IDENTITY(1,1)",
				"[bio] NVARCHAR(MAX)",
				"[created_at] DATETIME2 NOT NULL DEFAULT CURRENT_TIMESTAMP",
			},
			[]string{"ft_people_bio"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			script, err := ddl.Generate(peopleSpec(t), dialect(t, tt.dialect))
			require.NoError(t, err)
			all := script.String()
			for _, c := range tt.contains {
				assert.Contains(t, all, c)
			}
			assert.Equal(t, tt.skipped, script.Skipped)
			assert.NotContains(t, all, "COMMENT")
		})
	}
}

func TestGenerateDeterministic(t *testing.T) {
	d := dialect(t, "mysql")
	a, err := ddl.Generate(peopleSpec(t), d)
	require.NoError(t, err)
	b, err := ddl.Generate(peopleSpec(t), d)
	require.NoError(t, err)
	assert.Equal(t, a.String(), b.String())
}

func TestGenerateRejectsInvalidSpec(t *testing.T) {
	spec := peopleSpec(t)
	spec.Indexes.Secondary = append(spec.Indexes.Secondary, "nope")
	_, err := ddl.Generate(spec, dialect(t, "mysql"))
	assert.Error(t, err)
}

// failingExecer rejects statements containing any of the given fragments.
type failingExecer struct {
	fail []string
	ran  []string
}

func (f *failingExecer) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	for _, frag := range f.fail {
		if strings.Contains(query, frag) {
			return nil, errors.New("rejected")
		}
	}
	f.ran = append(f.ran, query)
	return nil, nil
}

func TestExecuteToleratesIndexFailures(t *testing.T) {
	script, err := ddl.Generate(peopleSpec(t), dialect(t, "mysql"))
	require.NoError(t, err)

	x := &failingExecer{fail: []string{"uk_people_1", "ft_people_bio"}}
	report, err := ddl.NewExecutor(logger.Nop()).Execute(context.Background(), x, script)
	require.NoError(t, err)

	assert.Equal(t, []string{"people", "idx_people_created_at", "idx_people_updated_at", "idx_people_bio"}, report.Created)
	require.Len(t, report.Failed, 2)
	assert.Equal(t, apperrors.LevelIndex, report.Failed[0].Level)
	assert.False(t, report.Failed[0].Fatal())
	assert.Len(t, x.ran, 4)
}

func TestExecuteTableFailureIsFatal(t *testing.T) {
	script, err := ddl.Generate(peopleSpec(t), dialect(t, "mysql"))
	require.NoError(t, err)

	x := &failingExecer{fail: []string{"CREATE TABLE"}}
	_, err = ddl.NewExecutor(logger.Nop()).Execute(context.Background(), x, script)
	require.Error(t, err)
	assert.True(t, ddl.IsFatal(err))
	assert.Empty(t, x.ran)

	var derr *apperrors.DDLExecutionError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "people", derr.Object)
}

func TestExecuteOnSQLite(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, "sqlite", ":memory:", time.Second, logger.Nop())
	require.NoError(t, err)
	defer conn.Close()

	script, err := ddl.Generate(peopleSpec(t), conn.Dialect())
	require.NoError(t, err)
	report, err := ddl.NewExecutor(logger.Nop()).Execute(ctx, conn, script)
	require.NoError(t, err)
	assert.Empty(t, report.Failed)

	live, err := conn.Describe(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "age", "bio", "site", "created_at", "updated_at"}, live.ColumnNames())
	id, _ := live.Column("id")
	assert.True(t, id.PK)
}
