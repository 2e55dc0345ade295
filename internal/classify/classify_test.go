package classify

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetsql/internal/profile"
	"sheetsql/internal/schema"
	"sheetsql/internal/semantic"
)

func classifyValues(t *testing.T, values ...any) Result {
	t.Helper()
	p, err := profile.Column("c", values)
	require.NoError(t, err)
	return Classify(p)
}

func TestBaseTypes(t *testing.T) {
	var tests = []struct {
		name   string
		values []any
		typ    schema.StorageType
		tag    semantic.Tag
	}{
		{"tiny ints", []any{1, 2, 127, -128}, schema.TinyInt, semantic.Plain},
		{"small ints", []any{25, 200}, schema.SmallInt, semantic.Plain},
		{"ints", []any{100000}, schema.Int, semantic.Plain},
		{"big ints", []any{int64(math.MaxInt32) + 1}, schema.BigInt, semantic.Plain},
		{"floats", []any{float32(0.5)}, schema.Float, semantic.Plain},
		{"doubles", []any{0.5, 1}, schema.Double, semantic.Plain},
		{"booleans", []any{true, false}, schema.Boolean, semantic.Plain},
		{"datetimes", []any{"2024-01-01 10:00:00"}, schema.DateTime, semantic.DateTime},
		{"structured", []any{[]int{1}}, schema.Text, semantic.Plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := classifyValues(t, tt.values...)
			assert.Equal(t, tt.typ, r.Type)
			assert.Equal(t, tt.tag, r.Tag)
		})
	}
}

func TestTextLengthRule(t *testing.T) {
	var tests = []struct {
		name    string
		lengths profile.LengthStats
		want    schema.StorageType
	}{
		{"no length", profile.LengthStats{}, "VARCHAR(255)"},
		{"short floor", profile.LengthStats{Max: 5, Mean: 3}, "VARCHAR(50)"},
		{"short padded", profile.LengthStats{Max: 50, Mean: 30}, "VARCHAR(60)"},
		{"medium", profile.LengthStats{Max: 51, Mean: 40}, "VARCHAR(101)"},
		{"medium edge", profile.LengthStats{Max: 255, Mean: 40}, "VARCHAR(305)"},
		{"long sparse", profile.LengthStats{Max: 256, Mean: 500}, schema.Text},
		{"long dense", profile.LengthStats{Max: 2000, Mean: 501}, schema.LongText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := profile.Profile{Name: "c", Kind: profile.KindText, Rows: 1, NonNull: 1, Lengths: tt.lengths}
			assert.Equal(t, tt.want, Classify(p).Type)
		})
	}
}

func TestPatternOverride(t *testing.T) {
	long := "https://example.com/" + strings.Repeat("a", 400)
	var tests = []struct {
		name   string
		values []any
		typ    schema.StorageType
		tag    semantic.Tag
	}{
		{"urls", []any{"https://a.com", "http://b.org/x"}, schema.Text, semantic.URL},
		{"long urls", []any{long}, schema.Text, semantic.URL},
		{"emails", []any{"a@b.com", "c@d.io"}, "VARCHAR(255)", semantic.Email},
		{"phones", []any{"13800138000", "15912345678"}, "VARCHAR(20)", semantic.Phone},
		{"numeric phones", []any{int64(13800138000)}, "VARCHAR(20)", semantic.Phone},
		{"exactly 80 percent", []any{"a@b.com", "c@d.com", "e@f.com", "g@h.com", "nope"}, "VARCHAR(255)", semantic.Email},
		{"below threshold", []any{"a@b.com", "c@d.com", "e@f.com", "nope", "nope2"}, "VARCHAR(50)", semantic.Plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := classifyValues(t, tt.values...)
			assert.Equal(t, tt.typ, r.Type)
			assert.Equal(t, tt.tag, r.Tag)
		})
	}
}

func TestEmailColumnsAlwaysVarChar255(t *testing.T) {
	for _, n := range []int{1, 3, 40} {
		values := make([]any, n)
		for i := range values {
			values[i] = fmt.Sprintf("%s%d@example.com", strings.Repeat("x", 300), i)
		}
		r := classifyValues(t, values...)
		assert.Equal(t, semantic.Email, r.Tag)
		assert.Equal(t, schema.VarChar(255), r.Type)
	}
}

func TestNullDefaultPolicy(t *testing.T) {
	var tests = []struct {
		name     string
		values   []any
		nullable bool
		def      schema.Default
	}{
		{"int not null", []any{1, 2}, false, schema.Literal(int64(0))},
		{"double not null", []any{1.5}, false, schema.Literal(float64(0))},
		{"bool not null", []any{true}, false, schema.Literal(false)},
		{"text not null", []any{"x"}, false, schema.Literal("")},
		{"text nullable", []any{"x", nil}, true, schema.Default{}},
		{"tagged not null", []any{"a@b.com"}, false, schema.Default{}},
		{"datetime not null", []any{"2024-01-01"}, false, schema.Default{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := classifyValues(t, tt.values...)
			assert.Equal(t, tt.nullable, r.Nullable)
			assert.Equal(t, tt.def, r.Default)
		})
	}
}

func TestField(t *testing.T) {
	p, err := profile.Column("site", []any{"https://a.com"})
	require.NoError(t, err)

	f := Field(p)
	assert.Equal(t, "site", f.Name)
	assert.Equal(t, "site", f.Comment)
	assert.Equal(t, semantic.URL, f.Tag)

	typ, ok := Override(semantic.Phone)
	assert.True(t, ok)
	assert.Equal(t, schema.VarChar(20), typ)
	_, ok = Override(semantic.Plain)
	assert.False(t, ok)
}
