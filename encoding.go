package pkstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Encoding selects how record fields are serialized inside a value.
type Encoding int

const (
	MsgPack Encoding = iota
	JSON

	defaultValueEncoding = MsgPack
)

func (enc Encoding) String() string {
	switch enc {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("encoding(%d)", int(enc))
	}
}

// ParseEncoding maps "msgpack" or "json" to an encoding method.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "", "msgpack":
		return MsgPack, nil
	case "json":
		return JSON, nil
	default:
		return 0, fmt.Errorf("unknown value encoding %q", s)
	}
}

func (enc Encoding) encodeFields(buf []byte, fields map[string]any) ([]byte, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	switch enc {
	case MsgPack:
		bb := bytesBuilder{buf}
		e := msgpack.GetEncoder()
		e.Reset(&bb)
		e.SetSortMapKeys(true)
		e.UseCompactInts(true)
		err := e.Encode(fields)
		msgpack.PutEncoder(e)
		if err != nil {
			return buf, fmt.Errorf("failed to encode record using MsgPack: %w", err)
		}
		return bb.Buf, nil
	case JSON:
		prepared, err := jsonFields(fields)
		if err != nil {
			return buf, err
		}
		raw, err := json.Marshal(prepared)
		if err != nil {
			return buf, fmt.Errorf("failed to encode record to JSON: %w", err)
		}
		return appendRaw(buf, raw), nil
	default:
		panic("unsupported encoding")
	}
}

func (enc Encoding) decodeFields(data []byte) (map[string]any, error) {
	var fields map[string]any
	switch enc {
	case MsgPack:
		if len(data) == 0 || data[0] == msgpcode.Nil {
			return nil, dataErrf(data, 0, nil, "record is not a map")
		}
		var r bytes.Reader
		r.Reset(data)
		d := msgpack.GetDecoder()
		d.Reset(&r)
		err := d.Decode(&fields)
		msgpack.PutDecoder(d)
		if err != nil {
			return nil, dataErrf(data, 0, err, "failed to decode msgpack record")
		}
		if r.Len() != 0 {
			return nil, dataErrf(data, len(data)-r.Len(), nil, "trailing bytes after msgpack record")
		}
		if fields == nil {
			fields = make(map[string]any)
		}
		fields = normalizeFields(fields)
	case JSON:
		d := json.NewDecoder(bytes.NewReader(data))
		d.UseNumber()
		if err := d.Decode(&fields); err != nil {
			return nil, dataErrf(data, int(d.InputOffset()), err, "failed to decode JSON record")
		}
		if _, err := d.Token(); !errors.Is(err, io.EOF) {
			return nil, dataErrf(data, int(d.InputOffset()), err, "trailing data after JSON record")
		}
		if fields != nil {
			fields = fromJSONValue(fields).(map[string]any)
		}
	default:
		panic("unsupported encoding")
	}
	if fields == nil {
		return nil, dataErrf(data, 0, nil, "record is not a map")
	}
	return fields, nil
}

// maxPlainFloat is where encoding/json switches floats to exponent notation.
const maxPlainFloat = 1e21

// jsonFields prepares normalized fields for JSON, which has no binary type
// and does not tell integers from integral floats: []byte is rejected, and
// integral floats are written with a trailing ".0".
func jsonFields(fields map[string]any) (map[string]any, error) {
	result := make(map[string]any, len(fields))
	for k, v := range fields {
		jv, err := toJSONValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		result[k] = jv
	}
	return result, nil
}

func toJSONValue(v any) (any, error) {
	switch v := v.(type) {
	case []byte:
		return nil, errors.New("JSON encoding cannot store binary values")
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < maxPlainFloat {
			return json.Number(strconv.FormatFloat(v, 'f', -1, 64) + ".0"), nil
		}
		return v, nil
	case map[string]any:
		if v == nil {
			return v, nil
		}
		return jsonFields(v)
	case []any:
		if v == nil {
			return v, nil
		}
		result := make([]any, len(v))
		for i, e := range v {
			jv, err := toJSONValue(e)
			if err != nil {
				return nil, err
			}
			result[i] = jv
		}
		return result, nil
	default:
		return v, nil
	}
}

func fromJSONValue(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(string(v), 10, 64); err == nil {
			return u
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		for k, e := range v {
			v[k] = fromJSONValue(e)
		}
		return v
	case []any:
		for i, e := range v {
			v[i] = fromJSONValue(e)
		}
		return v
	default:
		return v
	}
}
