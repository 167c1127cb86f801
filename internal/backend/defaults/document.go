package defaults

import (
	"encoding/base64"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/appshim/internal/storage"
)

// Objective-C type codes of number objects.
const (
	codeBool    = "c"
	codeInt16   = "s"
	codeInt32   = "i"
	codeInt64   = "q"
	codeUint16  = "S"
	codeUint32  = "I"
	codeUint64  = "Q"
	codeFloat32 = "f"
	codeFloat64 = "d"
)

// Object type names for non-number values.
const (
	typeDate = "date"
	typeUUID = "uuid"
	typeData = "data"
)

// wrapped is the stored form of a typed value.
type wrapped struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

func emptyDocument() []byte {
	return []byte("{}\n")
}

func document(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte("{}"), nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: defaults document is not valid JSON", storage.ErrTypeMismatch)
	}
	return data, nil
}

func getValue(data []byte, key string) (storage.Value, bool, error) {
	doc, err := document(data)
	if err != nil {
		return storage.Null(), false, err
	}
	r := gjson.GetBytes(doc, gjson.Escape(key))
	if !r.Exists() || r.Type == gjson.Null {
		return storage.Null(), false, nil
	}
	v, err := decode(r)
	if err != nil {
		return storage.Null(), false, err
	}
	return v, true, nil
}

func hasValue(data []byte, key string) (bool, error) {
	doc, err := document(data)
	if err != nil {
		return false, err
	}
	r := gjson.GetBytes(doc, gjson.Escape(key))
	return r.Exists() && r.Type != gjson.Null, nil
}

func setValue(data []byte, key string, v storage.Value, roaming bool) ([]byte, error) {
	doc, err := document(data)
	if err != nil {
		return nil, err
	}
	out, err := sjson.SetBytes(doc, gjson.Escape(key), encode(v, roaming))
	if err != nil {
		return nil, fmt.Errorf("writing %q: %w", key, err)
	}
	return pretty.Pretty(out), nil
}

func deleteValue(data []byte, key string) ([]byte, bool, error) {
	doc, err := document(data)
	if err != nil {
		return nil, false, err
	}
	path := gjson.Escape(key)
	if !gjson.GetBytes(doc, path).Exists() {
		return nil, false, nil
	}
	out, err := sjson.DeleteBytes(doc, path)
	if err != nil {
		return nil, false, fmt.Errorf("removing %q: %w", key, err)
	}
	return pretty.Pretty(out), true, nil
}

// encode picks the setter for v. The ubiquitous store only has long and
// double setters, so every integer is stored as q and every float as d.
func encode(v storage.Value, roaming bool) any {
	switch v.Kind() {
	case storage.KindBool:
		b, _ := v.AsBool()
		return b
	case storage.KindString:
		s, _ := v.AsString()
		return s
	case storage.KindInt16, storage.KindInt32, storage.KindInt64:
		i, _ := v.AsInt64()
		if roaming {
			return wrapped{Type: codeInt64, Value: i}
		}
		return wrapped{Type: signedCode[v.Kind()], Value: i}
	case storage.KindUint16, storage.KindUint32, storage.KindUint64:
		u, _ := v.AsUint64()
		if roaming {
			if u > math.MaxInt64 {
				return wrapped{Type: codeUint64, Value: u}
			}
			return wrapped{Type: codeInt64, Value: int64(u)}
		}
		return wrapped{Type: unsignedCode[v.Kind()], Value: u}
	case storage.KindFloat32:
		f, _ := v.AsFloat64()
		if roaming {
			return wrapped{Type: codeFloat64, Value: f}
		}
		return wrapped{Type: codeFloat32, Value: f}
	case storage.KindFloat64:
		f, _ := v.AsFloat64()
		return wrapped{Type: codeFloat64, Value: f}
	case storage.KindDateTime:
		t, _ := v.AsTime()
		return wrapped{Type: typeDate, Value: t.Format(time.RFC3339Nano)}
	case storage.KindGUID:
		g, _ := v.AsGUID()
		return wrapped{Type: typeUUID, Value: g.String()}
	case storage.KindBytes:
		b, _ := v.AsBytes()
		return wrapped{Type: typeData, Value: base64.StdEncoding.EncodeToString(b)}
	default:
		return v.String()
	}
}

var signedCode = map[storage.Kind]string{
	storage.KindInt16: codeInt16,
	storage.KindInt32: codeInt32,
	storage.KindInt64: codeInt64,
}

var unsignedCode = map[storage.Kind]string{
	storage.KindUint16: codeUint16,
	storage.KindUint32: codeUint32,
	storage.KindUint64: codeUint64,
}

func decode(r gjson.Result) (storage.Value, error) {
	switch r.Type {
	case gjson.True:
		return storage.Bool(true), nil
	case gjson.False:
		return storage.Bool(false), nil
	case gjson.String:
		return storage.String(r.String()), nil
	case gjson.Number:
		// Bare numbers come from other writers; keep integers integral.
		if i := r.Int(); float64(i) == r.Float() {
			return storage.Int64(i), nil
		}
		return storage.Float64(r.Float()), nil
	case gjson.JSON:
		if !r.IsObject() {
			return storage.String(r.Raw), nil
		}
		return decodeWrapped(r.Get("type").String(), r.Get("value"))
	default:
		return storage.Null(), fmt.Errorf("%w: unexpected JSON value %s", storage.ErrTypeMismatch, r.Raw)
	}
}

func decodeWrapped(typ string, val gjson.Result) (storage.Value, error) {
	switch typ {
	case codeBool, "B":
		return storage.Bool(val.Bool()), nil
	case codeInt16:
		return storage.Int16(int16(val.Int())), nil
	case codeInt32, "l":
		return storage.Int32(int32(val.Int())), nil
	case codeInt64:
		return storage.Int64(val.Int()), nil
	case codeUint16, "C":
		return storage.Uint16(uint16(val.Uint())), nil
	case codeUint32, "L":
		return storage.Uint32(uint32(val.Uint())), nil
	case codeUint64:
		return storage.Uint64(val.Uint()), nil
	case codeFloat32:
		return storage.Float32(float32(val.Float())), nil
	case codeFloat64:
		return storage.Float64(val.Float()), nil
	case typeDate:
		t, err := storage.ParseDateTime(val.String())
		if err != nil {
			return storage.Null(), err
		}
		return storage.DateTime(t), nil
	case typeUUID:
		g, err := uuid.Parse(val.String())
		if err != nil {
			return storage.Null(), fmt.Errorf("%w: %v", storage.ErrTypeMismatch, err)
		}
		return storage.GUID(g), nil
	case typeData:
		b, err := base64.StdEncoding.DecodeString(val.String())
		if err != nil {
			return storage.Null(), fmt.Errorf("%w: %v", storage.ErrTypeMismatch, err)
		}
		return storage.Bytes(b), nil
	default:
		return storage.String(val.String()), nil
	}
}
