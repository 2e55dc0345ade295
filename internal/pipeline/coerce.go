package pipeline

import (
	"math"
	"strconv"
	"strings"
	"time"

	"sheetsql/internal/dataset"
	"sheetsql/internal/schema"
)

// coercer converts raw row values to what a field stores. Invalid values of
// semantically tagged fields become nil and are counted.
type coercer struct {
	now     func() time.Time
	invalid map[string]int
}

func newCoercer() *coercer {
	return &coercer{now: time.Now, invalid: make(map[string]int)}
}

func (c *coercer) value(f schema.Field, v any) any {
	if dataset.IsMissing(v) {
		v = nil
	}
	if v != nil && f.Tag.IsData() {
		if !f.Tag.Match(dataset.Stringify(v)) {
			c.invalid[f.Name]++
			v = nil
		}
	}
	if v != nil {
		v = convert(f.Type.Category(), v)
	}
	if v == nil && !f.Nullable {
		switch {
		case f.Default.Kind == schema.LiteralDefault:
			v = f.Default.Value
		case f.Default.IsTime():
			v = c.now().UTC().Truncate(time.Second)
		}
	}
	return v
}

// convert parses strings into the category's Go type. Values that do not
// parse are passed through for the database to judge.
func convert(cat schema.Category, v any) any {
	switch cat {
	case schema.CategoryInteger:
		switch t := v.(type) {
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
				return n
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil && integral(f) {
				return int64(f)
			}
		case float64:
			if integral(t) {
				return int64(t)
			}
		case float32:
			if integral(float64(t)) {
				return int64(t)
			}
		case bool:
			if t {
				return int64(1)
			}
			return int64(0)
		}
	case schema.CategoryFloat:
		switch t := v.(type) {
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return f
			}
		case int:
			return float64(t)
		case int64:
			return float64(t)
		case float32:
			return float64(t)
		}
	case schema.CategoryBoolean:
		switch t := v.(type) {
		case string:
			if b, ok := dataset.ParseBoolLoose(t); ok {
				return b
			}
		case int:
			return t != 0
		case int64:
			return t != 0
		case float64:
			return t != 0
		}
	case schema.CategoryTemporal:
		if s, ok := v.(string); ok {
			if tm, ok := dataset.ParseTime(s); ok {
				return tm
			}
		}
	case schema.CategoryText:
		if _, ok := v.(string); !ok {
			return dataset.Stringify(v)
		}
	}
	return v
}

// integral reports whether f is a whole number that fits in an int64.
func integral(f float64) bool {
	return f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64
}
