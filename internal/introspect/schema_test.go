package introspect

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableWrite(t *testing.T) {
	def := "0"
	tab := Table{
		Name: "people",
		Rows: 2,
		Columns: []Column{
			{Name: "id", Type: "INTEGER", PK: true},
			{Name: "age", Type: "SMALLINT", Default: &def},
			{Name: "bio", Type: "TEXT", Nullable: true},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, tab.Write(&buf))
	out := buf.String()

	assert.Contains(t, out, "people (2 rows)")
	assert.Regexp(t, `id\s+INTEGER\s+NO\s+PRI`, out)
	assert.Regexp(t, `age\s+SMALLINT\s+NO\s+0`, out)
	assert.Regexp(t, `bio\s+TEXT\s+YES`, out)
	assert.Equal(t, []string{"id", "age", "bio"}, tab.ColumnNames())

	c, ok := tab.Column("age")
	assert.True(t, ok)
	assert.Equal(t, "SMALLINT", c.Type)
	_, ok = tab.Column("missing")
	assert.False(t, ok)
}
