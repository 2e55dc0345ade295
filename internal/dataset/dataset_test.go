package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsMissing(t *testing.T) {
	var nilPtr *string
	s := "x"
	var tests = []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, true},
		{"empty string", "", true},
		{"blank string", "   ", true},
		{"NA marker", "N/A", true},
		{"null marker", "NULL", true},
		{"NaN float", math.NaN(), true},
		{"nil pointer", nilPtr, true},
		{"zero time", time.Time{}, true},
		{"text", "hello", false},
		{"zero int", 0, false},
		{"false", false, false},
		{"pointer to text", &s, false},
		{"lowercase none is data", "none", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMissing(tt.v))
		})
	}
}

func TestStringify(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	var tests = []struct {
		v    any
		want string
	}{
		{"abc", "abc"},
		{[]byte("raw"), "raw"},
		{int8(-5), "-5"},
		{int64(1 << 40), "1099511627776"},
		{uint16(7), "7"},
		{float32(1.5), "1.5"},
		{2.25, "2.25"},
		{true, "true"},
		{ts, "2024-03-01 09:30:00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Stringify(tt.v))
		})
	}
}

func TestNewCollectsColumns(t *testing.T) {
	ds := New([]Row{
		{"b": 1, "a": 2},
		{"c": 3, "a": 4},
	})

	assert.Equal(t, []string{"a", "b", "c"}, ds.Columns)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, []any{nil, 3}, ds.Column("c"))
}

func TestParseTime(t *testing.T) {
	var tests = []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"2024-03-01 09:30:00", time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), true},
		{"01.03.2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"March 1st", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got))
		})
	}
}

func TestParseBool(t *testing.T) {
	v, ok := ParseBool("TRUE")
	assert.True(t, ok)
	assert.True(t, v)

	_, ok = ParseBool("yes")
	assert.False(t, ok)

	v, ok = ParseBoolLoose("yes")
	assert.True(t, ok)
	assert.True(t, v)

	v, ok = ParseBoolLoose("0")
	assert.True(t, ok)
	assert.False(t, v)
}
