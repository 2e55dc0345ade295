// Package profile computes engine-independent statistics over one column of
// raw values. Nothing here knows about storage types; the classifier maps the
// observed kind onto an engine vocabulary.
package profile

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"sheetsql/internal/apperrors"
	"sheetsql/internal/dataset"
	"sheetsql/internal/semantic"
)

// SampleSize is the number of first-seen non-null values kept per column.
const SampleSize = 5

// Kind is the primitive kind observed across the non-null values of a column.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindDateTime
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	case KindDateTime:
		return "datetime"
	case KindOther:
		return "other"
	default:
		return "text"
	}
}

// LengthStats describes the character length of stringified values.
type LengthStats struct {
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Profile is the statistical summary of one source column.
type Profile struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	// Bits is the precision of integer (8/16/32/64) and float (32/64) kinds.
	Bits          int                  `json:"bits,omitempty"`
	Rows          int                  `json:"rows"`
	NonNull       int                  `json:"non_null"`
	NullCount     int                  `json:"null_count"`
	NullRatio     float64              `json:"null_ratio"`
	DistinctCount int                  `json:"distinct_count"`
	UniqueRatio   float64              `json:"unique_ratio"`
	Samples       []any                `json:"samples"`
	Lengths       LengthStats          `json:"lengths"`
	Matches       map[semantic.Tag]int `json:"-"`
}

// MatchRatio is the share of non-null values matching the pattern of tag.
func (p Profile) MatchRatio(tag semantic.Tag) float64 {
	if p.NonNull == 0 {
		return 0
	}
	return float64(p.Matches[tag]) / float64(p.NonNull)
}

// observation accumulates kind evidence while scanning values.
type observation struct {
	ints, floats, bools, times, texts, others int
	float32Only                               bool
	minInt, maxInt                            int64
	wide                                      bool
}

// Column profiles the values of one column. Missing values (see
// dataset.IsMissing) count as null for every statistic. It fails only when
// values is empty.
func Column(name string, values []any) (Profile, error) {
	p := Profile{Name: name, Rows: len(values), Matches: make(map[semantic.Tag]int)}
	if len(values) == 0 {
		return p, fmt.Errorf("profile column %q: %w", name, apperrors.ErrEmptyColumn)
	}

	obs := observation{float32Only: true, minInt: math.MaxInt64, maxInt: math.MinInt64}
	distinct := make(map[string]struct{})
	strs := make([]string, 0, len(values))

	for _, v := range values {
		if dataset.IsMissing(v) {
			p.NullCount++
			continue
		}
		s := dataset.Stringify(v)
		strs = append(strs, s)
		distinct[s] = struct{}{}
		if len(p.Samples) < SampleSize {
			p.Samples = append(p.Samples, v)
		}
		for _, tag := range semantic.Detectable {
			if tag.Match(s) {
				p.Matches[tag]++
			}
		}
		obs.add(v)
	}

	p.NonNull = len(strs)
	p.DistinctCount = len(distinct)
	p.NullRatio = float64(p.NullCount) / float64(p.Rows)
	p.UniqueRatio = float64(p.DistinctCount) / float64(p.Rows)
	p.Kind, p.Bits = obs.resolve()
	if p.Kind == KindText {
		p.Lengths = lengthStats(strs)
	}
	return p, nil
}

// Table profiles every column of ds in column order.
func Table(ds *dataset.Dataset) ([]Profile, error) {
	out := make([]Profile, 0, len(ds.Columns))
	for _, c := range ds.Columns {
		p, err := Column(c, ds.Column(c))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (o *observation) add(v any) {
	switch t := v.(type) {
	case int:
		o.addInt(int64(t))
	case int8:
		o.addInt(int64(t))
	case int16:
		o.addInt(int64(t))
	case int32:
		o.addInt(int64(t))
	case int64:
		o.addInt(t)
	case uint:
		o.addUint(uint64(t))
	case uint8:
		o.addInt(int64(t))
	case uint16:
		o.addInt(int64(t))
	case uint32:
		o.addInt(int64(t))
	case uint64:
		o.addUint(t)
	case float32:
		o.floats++
	case float64:
		o.floats++
		o.float32Only = false
	case bool:
		o.bools++
	case time.Time:
		o.times++
	case string:
		o.addString(t)
	case []byte:
		o.addString(string(t))
	default:
		o.others++
	}
}

func (o *observation) addInt(n int64) {
	o.ints++
	if n < o.minInt {
		o.minInt = n
	}
	if n > o.maxInt {
		o.maxInt = n
	}
}

func (o *observation) addUint(n uint64) {
	if n > math.MaxInt64 {
		o.ints++
		o.wide = true
		return
	}
	o.addInt(int64(n))
}

func (o *observation) addString(raw string) {
	s := strings.TrimSpace(raw)
	if hasLeadingZero(s) {
		o.texts++
		return
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		o.addInt(n)
		return
	}
	if looksNumeric(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
			o.floats++
			o.float32Only = false
			return
		}
	}
	if _, ok := dataset.ParseBool(s); ok {
		o.bools++
		return
	}
	if _, ok := dataset.ParseTime(s); ok {
		o.times++
		return
	}
	o.texts++
}

func (o *observation) resolve() (Kind, int) {
	total := o.ints + o.floats + o.bools + o.times + o.texts + o.others
	switch {
	case total == 0:
		return KindText, 0
	case o.others > 0:
		return KindOther, 0
	case o.ints == total:
		return KindInteger, o.intBits()
	case o.ints+o.floats == total:
		if o.ints == 0 && o.float32Only {
			return KindFloat, 32
		}
		return KindFloat, 64
	case o.bools == total:
		return KindBoolean, 0
	case o.times == total:
		return KindDateTime, 0
	default:
		return KindText, 0
	}
}

// intBits picks the smallest signed width holding the observed range.
func (o *observation) intBits() int {
	switch {
	case o.wide:
		return 64
	case o.minInt >= math.MinInt8 && o.maxInt <= math.MaxInt8:
		return 8
	case o.minInt >= math.MinInt16 && o.maxInt <= math.MaxInt16:
		return 16
	case o.minInt >= math.MinInt32 && o.maxInt <= math.MaxInt32:
		return 32
	default:
		return 64
	}
}

func lengthStats(strs []string) LengthStats {
	if len(strs) == 0 {
		return LengthStats{}
	}
	lens := make([]int, len(strs))
	sum := 0
	for i, s := range strs {
		lens[i] = utf8.RuneCountInString(s)
		sum += lens[i]
	}
	sort.Ints(lens)

	st := LengthStats{
		Min:  lens[0],
		Max:  lens[len(lens)-1],
		Mean: float64(sum) / float64(len(lens)),
	}
	mid := len(lens) / 2
	if len(lens)%2 == 1 {
		st.Median = float64(lens[mid])
	} else {
		st.Median = float64(lens[mid-1]+lens[mid]) / 2
	}
	return st
}

// hasLeadingZero flags identifiers such as zip codes ("007") that must stay text.
func hasLeadingZero(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9'
}

func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '+' || r == 'e' || r == 'E':
		default:
			return false
		}
	}
	return true
}
