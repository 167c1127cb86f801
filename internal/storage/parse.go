package storage

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// dateLayouts are tried in order when parsing a DateTime from text. The
// later layouts cover the US month/day forms written by older clients of
// string-only stores.
var dateLayouts = []string{
	time.RFC3339Nano,
	"01/02/2006 15:04:05 -07:00",
	"1/2/2006 3:04:05 PM -07:00",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05Z07:00",
}

// ParseDateTime parses a date-with-offset in any of the accepted layouts.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised date %q", ErrTypeMismatch, s)
}

// ParseValue parses the default string form of kind k, as produced by
// Value.String.
func ParseValue(k Kind, s string) (Value, error) {
	switch k {
	case KindNull:
		return Null(), nil
	case KindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return Null(), parseErr(k, s, err)
		}
		return Bool(b), nil
	case KindInt16, KindInt32, KindInt64:
		bits := map[Kind]int{KindInt16: 16, KindInt32: 32, KindInt64: 64}[k]
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, bits)
		if err != nil {
			return Null(), parseErr(k, s, err)
		}
		switch k {
		case KindInt16:
			return Int16(int16(i)), nil
		case KindInt32:
			return Int32(int32(i)), nil
		default:
			return Int64(i), nil
		}
	case KindUint16, KindUint32, KindUint64:
		bits := map[Kind]int{KindUint16: 16, KindUint32: 32, KindUint64: 64}[k]
		u, err := strconv.ParseUint(strings.TrimSpace(s), 10, bits)
		if err != nil {
			return Null(), parseErr(k, s, err)
		}
		switch k {
		case KindUint16:
			return Uint16(uint16(u)), nil
		case KindUint32:
			return Uint32(uint32(u)), nil
		default:
			return Uint64(u), nil
		}
	case KindFloat32:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		if err != nil {
			return Null(), parseErr(k, s, err)
		}
		return Float32(float32(f)), nil
	case KindFloat64:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Null(), parseErr(k, s, err)
		}
		return Float64(f), nil
	case KindString:
		return String(s), nil
	case KindDateTime:
		t, err := ParseDateTime(s)
		if err != nil {
			return Null(), err
		}
		return DateTime(t), nil
	case KindGUID:
		g, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			return Null(), parseErr(k, s, err)
		}
		return GUID(g), nil
	case KindBytes:
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return Null(), parseErr(k, s, err)
		}
		return Bytes(b), nil
	default:
		return Null(), fmt.Errorf("%w: unknown kind %d", ErrInvalidArgument, k)
	}
}

func parseErr(k Kind, s string, err error) error {
	return fmt.Errorf("%w: parsing %q as %s: %v", ErrTypeMismatch, s, k, err)
}
