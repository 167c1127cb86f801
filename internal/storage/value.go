package storage

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	// KindNull is the absent value.
	KindNull Kind = iota
	KindBool
	KindInt16
	KindInt32
	KindInt64
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	// KindDateTime is a point in time together with its UTC offset.
	KindDateTime
	KindGUID
	KindBytes
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindInt16:    "int16",
	KindInt32:    "int32",
	KindInt64:    "int64",
	KindUint16:   "uint16",
	KindUint32:   "uint32",
	KindUint64:   "uint64",
	KindFloat32:  "float32",
	KindFloat64:  "float64",
	KindString:   "string",
	KindDateTime: "datetime",
	KindGUID:     "guid",
	KindBytes:    "bytes",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind parses a kind name as returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return KindNull, fmt.Errorf("%w: unknown kind %q", ErrInvalidArgument, s)
}

// IsSigned reports whether k is a signed integer kind.
func (k Kind) IsSigned() bool {
	return k == KindInt16 || k == KindInt32 || k == KindInt64
}

// IsUnsigned reports whether k is an unsigned integer kind.
func (k Kind) IsUnsigned() bool {
	return k == KindUint16 || k == KindUint32 || k == KindUint64
}

// IsFloat reports whether k is a floating point kind.
func (k Kind) IsFloat() bool {
	return k == KindFloat32 || k == KindFloat64
}

// Value is a settings value: one of a closed set of kinds.
// The zero Value is Null.
type Value struct {
	kind Kind
	data any
}

// Null returns the absent value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, data: b} }

// Int16 returns a 16-bit signed integer value.
func Int16(i int16) Value { return Value{kind: KindInt16, data: i} }

// Int32 returns a 32-bit signed integer value.
func Int32(i int32) Value { return Value{kind: KindInt32, data: i} }

// Int64 returns a 64-bit signed integer value.
func Int64(i int64) Value { return Value{kind: KindInt64, data: i} }

// Uint16 returns a 16-bit unsigned integer value.
func Uint16(u uint16) Value { return Value{kind: KindUint16, data: u} }

// Uint32 returns a 32-bit unsigned integer value.
func Uint32(u uint32) Value { return Value{kind: KindUint32, data: u} }

// Uint64 returns a 64-bit unsigned integer value.
func Uint64(u uint64) Value { return Value{kind: KindUint64, data: u} }

// Float32 returns a single precision value.
func Float32(f float32) Value { return Value{kind: KindFloat32, data: f} }

// Float64 returns a double precision value.
func Float64(f float64) Value { return Value{kind: KindFloat64, data: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, data: s} }

// DateTime returns a date-with-offset value.
func DateTime(t time.Time) Value { return Value{kind: KindDateTime, data: t} }

// GUID returns a GUID value.
func GUID(g uuid.UUID) Value { return Value{kind: KindGUID, data: g} }

// Bytes returns a raw bytes value. The slice is copied.
func Bytes(b []byte) Value {
	if b == nil {
		return Value{kind: KindBytes, data: []byte{}}
	}
	return Value{kind: KindBytes, data: bytes.Clone(b)}
}

// ValueOf converts a Go value to a Value. Types without a matching kind
// fall back to their fmt string form.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case bool:
		return Bool(x)
	case int8:
		return Int16(int16(x))
	case int16:
		return Int16(x)
	case int32:
		return Int32(x)
	case int:
		return Int64(int64(x))
	case int64:
		return Int64(x)
	case uint8:
		return Uint16(uint16(x))
	case uint16:
		return Uint16(x)
	case uint32:
		return Uint32(x)
	case uint:
		return Uint64(uint64(x))
	case uint64:
		return Uint64(x)
	case float32:
		return Float32(x)
	case float64:
		return Float64(x)
	case string:
		return String(x)
	case time.Time:
		return DateTime(x)
	case uuid.UUID:
		return GUID(x)
	case []byte:
		return Bytes(x)
	case fmt.Stringer:
		return String(x.String())
	default:
		return String(fmt.Sprint(v))
	}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the absent value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Interface returns the payload as its Go type, or nil for Null.
func (v Value) Interface() any {
	if b, ok := v.data.([]byte); ok {
		return bytes.Clone(b)
	}
	return v.data
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.data.(bool)
	return b, ok
}

// AsInt64 returns any signed integer payload widened to int64.
func (v Value) AsInt64() (int64, bool) {
	switch x := v.data.(type) {
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

// AsUint64 returns any unsigned integer payload widened to uint64.
func (v Value) AsUint64() (uint64, bool) {
	switch x := v.data.(type) {
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	}
	return 0, false
}

// AsFloat64 returns any floating point payload widened to float64.
func (v Value) AsFloat64() (float64, bool) {
	switch x := v.data.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	s, ok := v.data.(string)
	return s, ok
}

// AsTime returns the date-with-offset payload.
func (v Value) AsTime() (time.Time, bool) {
	t, ok := v.data.(time.Time)
	return t, ok
}

// AsGUID returns the GUID payload.
func (v Value) AsGUID() (uuid.UUID, bool) {
	g, ok := v.data.(uuid.UUID)
	return g, ok
}

// AsBytes returns a copy of the bytes payload.
func (v Value) AsBytes() ([]byte, bool) {
	b, ok := v.data.([]byte)
	if !ok {
		return nil, false
	}
	return bytes.Clone(b), true
}

// Expect returns a *TypeError unless v holds kind k.
func (v Value) Expect(k Kind) error {
	if v.kind != k {
		return &TypeError{Expected: k, Actual: v.kind}
	}
	return nil
}

// Equal reports whether v and o hold the same kind and payload.
// Times compare by instant and offset.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindDateTime:
		a, b := v.data.(time.Time), o.data.(time.Time)
		if !a.Equal(b) {
			return false
		}
		_, ao := a.Zone()
		_, bo := b.Zone()
		return ao == bo
	case KindBytes:
		return bytes.Equal(v.data.([]byte), o.data.([]byte))
	case KindFloat32:
		a, b := v.data.(float32), o.data.(float32)
		return a == b || (a != a && b != b)
	case KindFloat64:
		a, b := v.data.(float64), o.data.(float64)
		return a == b || (math.IsNaN(a) && math.IsNaN(b))
	default:
		return v.data == o.data
	}
}

// String returns the default string form of the payload. Null renders as
// the empty string. This is the form used by string-only backends.
func (v Value) String() string {
	switch x := v.data.(type) {
	case nil:
		return ""
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case uuid.UUID:
		return x.String()
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	default:
		return fmt.Sprint(x)
	}
}

// GoString implements fmt.GoStringer for debugging output.
func (v Value) GoString() string {
	if v.kind == KindNull {
		return "storage.Null()"
	}
	return fmt.Sprintf("storage.Value{%s: %q}", v.kind, v.String())
}
