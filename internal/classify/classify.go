// Package classify maps column profiles onto MySQL storage types and semantic
// tags. It is the only place that knows the engine's type vocabulary; other
// dialects translate from it.
package classify

import (
	"sheetsql/internal/profile"
	"sheetsql/internal/schema"
	"sheetsql/internal/semantic"
)

// PatternThreshold is the share of non-null values that must match a pattern
// for the column to take the pattern's tag.
const PatternThreshold = 0.8

// DefaultTextWidth is the width used when a text column has no observed length.
const DefaultTextWidth = 255

type kindBits struct {
	kind profile.Kind
	bits int
}

// baseTypes is the engine vocabulary for each observed primitive kind.
var baseTypes = map[kindBits]schema.StorageType{
	{profile.KindInteger, 8}:  schema.TinyInt,
	{profile.KindInteger, 16}: schema.SmallInt,
	{profile.KindInteger, 32}: schema.Int,
	{profile.KindInteger, 64}: schema.BigInt,
	{profile.KindFloat, 32}:   schema.Float,
	{profile.KindFloat, 64}:   schema.Double,
	{profile.KindBoolean, 0}:  schema.Boolean,
	{profile.KindDateTime, 0}: schema.DateTime,
}

// overrides is the storage type forced by each pattern-backed tag.
var overrides = map[semantic.Tag]schema.StorageType{
	semantic.URL:   schema.Text,
	semantic.Email: schema.VarChar(255),
	semantic.Phone: schema.VarChar(20),
}

// Override returns the storage type a tag imposes, if any.
func Override(tag semantic.Tag) (schema.StorageType, bool) {
	t, ok := overrides[tag]
	return t, ok
}

// Result is the classification of one column.
type Result struct {
	Type     schema.StorageType
	Tag      semantic.Tag
	Nullable bool
	Default  schema.Default
}

// Classify decides storage type, tag and null/default policy for a profile.
func Classify(p profile.Profile) Result {
	typ, tag := baseType(p)

	if t, ok := detect(p); ok {
		tag = t
		typ = overrides[t]
	}

	r := Result{Type: typ, Tag: tag, Nullable: p.NullCount > 0}
	if !r.Nullable && tag == semantic.Plain {
		r.Default = schema.ZeroDefault(typ)
	}
	return r
}

// Field builds the field table definition of a profiled column.
func Field(p profile.Profile) schema.Field {
	r := Classify(p)
	return schema.Field{
		Name:     p.Name,
		Type:     r.Type,
		Nullable: r.Nullable,
		Default:  r.Default,
		Tag:      r.Tag,
		Comment:  p.Name,
	}
}

func baseType(p profile.Profile) (schema.StorageType, semantic.Tag) {
	switch p.Kind {
	case profile.KindText:
		return textType(p.Lengths), semantic.Plain
	case profile.KindDateTime:
		return schema.DateTime, semantic.DateTime
	}
	if t, ok := baseTypes[kindBits{p.Kind, p.Bits}]; ok {
		return t, semantic.Plain
	}
	return schema.Text, semantic.Plain
}

func textType(l profile.LengthStats) schema.StorageType {
	switch {
	case l.Max == 0:
		return schema.VarChar(DefaultTextWidth)
	case l.Max <= 50:
		return schema.VarChar(max(l.Max+10, 50))
	case l.Max <= 255:
		return schema.VarChar(l.Max + 50)
	case l.Mean > 500:
		return schema.LongText
	default:
		return schema.Text
	}
}

// detect returns the first tag, in priority order, whose pattern matches
// at least PatternThreshold of the non-null values.
func detect(p profile.Profile) (semantic.Tag, bool) {
	if p.NonNull == 0 {
		return semantic.Plain, false
	}
	for _, tag := range semantic.Detectable {
		if p.MatchRatio(tag) >= PatternThreshold {
			return tag, true
		}
	}
	return semantic.Plain, false
}
