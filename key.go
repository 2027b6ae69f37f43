package pkstore

import (
	"bytes"
	"strings"
)

const (
	keyEscape     byte = 0x00
	keyEscapedNul byte = 0xFF
	keyTerminator byte = 0x01
)

// Key identifies a record. Keys order by PK, then by SK.
type Key struct {
	PK string `json:"PK" yaml:"PK" msgpack:"PK"`
	SK string `json:"SK" yaml:"SK" msgpack:"SK"`
}

func (k Key) String() string {
	return k.PK + "/" + k.SK
}

func (k Key) Compare(another Key) int {
	if c := strings.Compare(k.PK, another.PK); c != 0 {
		return c
	}
	return strings.Compare(k.SK, another.SK)
}

func (k Key) Validate() error {
	if k.PK == "" {
		return &InvalidKeyError{Key: k, Msg: "missing PK"}
	}
	if k.SK == "" {
		return &InvalidKeyError{Key: k, Msg: "missing SK"}
	}
	return nil
}

// WithPKSuffix returns the key moved to the partition PK+suffix.
func (k Key) WithPKSuffix(suffix string) Key {
	return Key{PK: k.PK + suffix, SK: k.SK}
}

func EncodeKey(k Key) ([]byte, error) {
	return AppendKey(nil, k)
}

func AppendKey(buf []byte, k Key) ([]byte, error) {
	if err := k.Validate(); err != nil {
		return buf, err
	}
	buf = ensureCapacity(buf, len(buf)+len(k.PK)+len(k.SK)+4)
	buf = appendKeyElem(buf, k.PK)
	buf = appendKeyElem(buf, k.SK)
	return buf, nil
}

func appendKeyElem(buf []byte, s string) []byte {
	for {
		i := strings.IndexByte(s, keyEscape)
		if i < 0 {
			break
		}
		buf = append(buf, s[:i]...)
		buf = append(buf, keyEscape, keyEscapedNul)
		s = s[i+1:]
	}
	buf = append(buf, s...)
	return append(buf, keyEscape, keyTerminator)
}

func DecodeKey(raw []byte) (Key, error) {
	pk, rest, err := decodeKeyElem(raw)
	if err != nil {
		return Key{}, &InvalidKeyError{Msg: "PK", Err: err}
	}
	sk, rest, err := decodeKeyElem(rest)
	if err != nil {
		return Key{}, &InvalidKeyError{Msg: "SK", Err: err}
	}
	if len(rest) != 0 {
		return Key{}, &InvalidKeyError{Err: dataErrf(raw, len(raw)-len(rest), nil, "trailing bytes after key")}
	}
	k := Key{PK: pk, SK: sk}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

func decodeKeyElem(raw []byte) (string, []byte, error) {
	var buf []byte
	data := raw
	for {
		i := bytes.IndexByte(data, keyEscape)
		if i < 0 || i+1 >= len(data) {
			return "", nil, dataErrf(raw, len(raw)-len(data), nil, "unterminated key element")
		}
		switch data[i+1] {
		case keyTerminator:
			if buf == nil {
				return string(data[:i]), data[i+2:], nil
			}
			buf = append(buf, data[:i]...)
			return string(buf), data[i+2:], nil
		case keyEscapedNul:
			buf = append(buf, data[:i]...)
			buf = append(buf, keyEscape)
			data = data[i+2:]
		default:
			return "", nil, dataErrf(raw, len(raw)-len(data)+i+1, nil, "invalid escape 0x%02x", data[i+1])
		}
	}
}
