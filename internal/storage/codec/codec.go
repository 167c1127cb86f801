// Package codec implements the two-element tagged encoding used by
// string-only preference stores.
//
// A value is stored as the ordered pair [type-name, text] where type-name is
// a CLR type name ("Boolean", "Int32", "DateTimeOffset", ...) and text
// is the value's default string form. Older writers emitted the short name
// and older readers expected the namespace-qualified one ("System.Int32"),
// so decoding accepts both. Unknown type names decode as strings.
package codec

import (
	"fmt"
	"strings"

	"github.com/dshills/appshim/internal/storage"
)

// Type names of the encoding vocabulary.
const (
	TagNull           = "null"
	TagBoolean        = "Boolean"
	TagInt16          = "Int16"
	TagInt32          = "Int32"
	TagInt64          = "Int64"
	TagUInt16         = "UInt16"
	TagUInt32         = "UInt32"
	TagUInt64         = "UInt64"
	TagSingle         = "Single"
	TagDouble         = "Double"
	TagString         = "String"
	TagDateTimeOffset = "DateTimeOffset"
	TagGuid           = "Guid"
	TagBytes          = "Byte[]"

	qualifier = "System."
)

var tagByKind = map[storage.Kind]string{
	storage.KindNull:     TagNull,
	storage.KindBool:     TagBoolean,
	storage.KindInt16:    TagInt16,
	storage.KindInt32:    TagInt32,
	storage.KindInt64:    TagInt64,
	storage.KindUint16:   TagUInt16,
	storage.KindUint32:   TagUInt32,
	storage.KindUint64:   TagUInt64,
	storage.KindFloat32:  TagSingle,
	storage.KindFloat64:  TagDouble,
	storage.KindString:   TagString,
	storage.KindDateTime: TagDateTimeOffset,
	storage.KindGUID:     TagGuid,
	storage.KindBytes:    TagBytes,
}

var kindByTag = func() map[string]storage.Kind {
	m := make(map[string]storage.Kind, len(tagByKind))
	for k, tag := range tagByKind {
		m[tag] = k
	}
	return m
}()

// TypeName returns the encoding's type name for k.
func TypeName(k storage.Kind) string {
	if tag, ok := tagByKind[k]; ok {
		return tag
	}
	return TagString
}

// KindOf maps a type name, short or qualified, to its kind.
func KindOf(tag string) (storage.Kind, bool) {
	k, ok := kindByTag[strings.TrimPrefix(tag, qualifier)]
	return k, ok
}

// Pair is an encoded value.
type Pair [2]string

// Slice returns the pair as a two-element slice.
func (p Pair) Slice() []string {
	return []string{p[0], p[1]}
}

// Encode encodes v as [type-name, text].
func Encode(v storage.Value) Pair {
	return Pair{TypeName(v.Kind()), v.String()}
}

// Decode decodes an encoded sequence. It returns ok=false when the sequence
// is empty or tagged null, which callers treat as an absent key.
//
// Only the first two elements are significant. If the first element is not
// a known type name but the second is, the pair is read reversed, since
// some stores keep the elements in an unordered set. A single element is
// both the tag and the text (a set collapses a string equal to its tag).
func Decode(seq []string) (storage.Value, bool, error) {
	var tag, text string
	switch len(seq) {
	case 0:
		return storage.Null(), false, nil
	case 1:
		tag, text = seq[0], seq[0]
	default:
		tag, text = seq[0], seq[1]
		if _, known := KindOf(tag); !known {
			if _, swapped := KindOf(text); swapped {
				tag, text = text, tag
			}
		}
	}

	if tag == TagNull || tag == "" {
		return storage.Null(), false, nil
	}

	kind, known := KindOf(tag)
	if !known {
		return storage.String(text), true, nil
	}

	v, err := storage.ParseValue(kind, text)
	if err != nil {
		return storage.Null(), false, fmt.Errorf("decoding %s value: %w", tag, err)
	}
	return v, true, nil
}
