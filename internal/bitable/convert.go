package bitable

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"sheetsql/internal/dataset"
	"sheetsql/internal/schema"
	"sheetsql/internal/semantic"
)

// FieldType is the declared type of a remote field.
type FieldType string

const (
	Text         FieldType = "Text"
	Number       FieldType = "Number"
	URL          FieldType = "Url"
	Date         FieldType = "Date"
	Checkbox     FieldType = "Checkbox"
	SingleSelect FieldType = "SingleSelect"
	MultiSelect  FieldType = "MultiSelect"
	User         FieldType = "User"
)

// remoteTypes maps the API's numeric field type codes.
var remoteTypes = map[int]FieldType{
	1:  Text,
	2:  Number,
	3:  SingleSelect,
	4:  MultiSelect,
	5:  Date,
	7:  Checkbox,
	11: User,
	15: URL,
}

// TypeFromCode returns the declared type for a remote type code. Unknown
// codes are treated as text.
func TypeFromCode(code int) FieldType {
	if t, ok := remoteTypes[code]; ok {
		return t
	}
	return Text
}

// Link is the JSON shape of a URL cell.
type Link struct {
	Link string `json:"link"`
	Text string `json:"text"`
}

// ConvertValue maps a raw value onto the JSON shape expected for t. Missing
// values become "", numbers that do not parse become 0.
func ConvertValue(v any, t FieldType) any {
	if dataset.IsMissing(v) {
		return ""
	}
	switch t {
	case Number:
		return toNumber(v)
	case URL:
		s := dataset.Stringify(v)
		return Link{Link: s, Text: s}
	case Date:
		switch tv := v.(type) {
		case time.Time:
			return tv.UnixMilli()
		case string:
			if tm, ok := dataset.ParseTime(tv); ok {
				return tm.UnixMilli()
			}
		}
		return dataset.Stringify(v)
	case Checkbox:
		if b, ok := v.(bool); ok {
			return b
		}
		b, _ := dataset.ParseBoolLoose(dataset.Stringify(v))
		return b
	case MultiSelect:
		switch tv := v.(type) {
		case []string:
			return tv
		case []any:
			out := make([]string, 0, len(tv))
			for _, e := range tv {
				out = append(out, dataset.Stringify(e))
			}
			return out
		case string:
			var out []string
			for _, part := range strings.Split(tv, ",") {
				if p := strings.TrimSpace(part); p != "" {
					out = append(out, p)
				}
			}
			return out
		}
		return []string{dataset.Stringify(v)}
	case User:
		switch tv := v.(type) {
		case []string:
			return tv
		case []any:
			return tv
		}
		return []string{dataset.Stringify(v)}
	default:
		return dataset.Stringify(v)
	}
}

func toNumber(v any) float64 {
	switch tv := v.(type) {
	case int:
		return float64(tv)
	case int64:
		return float64(tv)
	case int32:
		return float64(tv)
	case float32:
		return float64(tv)
	case float64:
		if math.IsNaN(tv) || math.IsInf(tv, 0) {
			return 0
		}
		return tv
	case bool:
		if tv {
			return 1
		}
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(fmt.Sprint(v)), 64)
	if err != nil || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// FieldTypesFromSpec derives declared types from a table definition.
// Generated key and audit columns are left out.
func FieldTypesFromSpec(spec *schema.Table) map[string]FieldType {
	out := make(map[string]FieldType)
	for _, f := range spec.Fields() {
		if f.AutoIncrement || f.Tag == semantic.PrimaryKey || f.Tag == semantic.Timestamp {
			continue
		}
		switch {
		case f.Tag == semantic.URL:
			out[f.Name] = URL
		case f.Tag == semantic.DateTime:
			out[f.Name] = Date
		default:
			switch f.Type.Category() {
			case schema.CategoryInteger, schema.CategoryFloat:
				out[f.Name] = Number
			case schema.CategoryBoolean:
				out[f.Name] = Checkbox
			case schema.CategoryTemporal:
				out[f.Name] = Date
			default:
				out[f.Name] = Text
			}
		}
	}
	return out
}

// ParseFieldType accepts the declared type names case-insensitively.
func ParseFieldType(s string) (FieldType, error) {
	for _, t := range []FieldType{Text, Number, URL, Date, Checkbox, SingleSelect, MultiSelect, User} {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown field type %q", s)
}
