// Package semantic defines the closed set of business meanings a column can
// carry beyond its storage type, and the patterns used both to detect them in
// sample data and to validate values at load time.
package semantic

import (
	"fmt"
	"regexp"
	"strings"
)

// Tag is a closed classification of a column's meaning.
type Tag int

const (
	Plain Tag = iota
	PrimaryKey
	URL
	Email
	Phone
	DateTime
	Timestamp
)

var names = [...]string{
	Plain:      "plain",
	PrimaryKey: "primary_key",
	URL:        "url",
	Email:      "email",
	Phone:      "phone",
	DateTime:   "datetime",
	Timestamp:  "timestamp",
}

var descriptions = [...]string{
	Plain:      "ordinary field without special handling",
	PrimaryKey: "primary key uniquely identifying a record",
	URL:        "web address",
	Email:      "e-mail address",
	Phone:      "mobile phone number",
	DateTime:   "date and time value",
	Timestamp:  "record creation or update time",
}

var (
	urlPattern   = regexp.MustCompile(`^https?://\S+$`)
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)
)

// Detectable lists the pattern-backed tags in detection priority order.
var Detectable = []Tag{URL, Email, Phone}

// All returns every tag in declaration order.
func All() []Tag {
	return []Tag{Plain, PrimaryKey, URL, Email, Phone, DateTime, Timestamp}
}

func (t Tag) String() string {
	if t < 0 || int(t) >= len(names) {
		return fmt.Sprintf("tag(%d)", int(t))
	}
	return names[t]
}

// Description is a human-readable explanation of the tag.
func (t Tag) Description() string {
	if t < 0 || int(t) >= len(descriptions) {
		return "unknown"
	}
	return descriptions[t]
}

// Valid reports whether t is one of the declared variants.
func (t Tag) Valid() bool {
	return t >= Plain && t <= Timestamp
}

// Pattern returns the detection pattern of t, if it has one.
func (t Tag) Pattern() (*regexp.Regexp, bool) {
	switch t {
	case URL:
		return urlPattern, true
	case Email:
		return emailPattern, true
	case Phone:
		return phonePattern, true
	default:
		return nil, false
	}
}

// Match reports whether s, trimmed, fully matches the tag pattern.
// Tags without a pattern match everything.
func (t Tag) Match(s string) bool {
	re, ok := t.Pattern()
	if !ok {
		return true
	}
	return re.MatchString(strings.TrimSpace(s))
}

// IsData reports whether the tag is pattern validated (url, email, phone).
func (t Tag) IsData() bool {
	_, ok := t.Pattern()
	return ok
}

// IsTime reports whether the tag carries a point in time.
func (t Tag) IsTime() bool {
	return t == DateTime || t == Timestamp
}

// Parse converts the document spelling of a tag. Unknown values are rejected.
func Parse(s string) (Tag, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", "normal":
		return Plain, nil
	case "date-time", "date_time":
		return DateTime, nil
	case "primary-key":
		return PrimaryKey, nil
	}
	for i, n := range names {
		if n == v {
			return Tag(i), nil
		}
	}
	return Plain, fmt.Errorf("invalid semantic tag %q (valid: %s)", s, strings.Join(names[:], ", "))
}

func (t Tag) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid semantic tag %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tag) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
