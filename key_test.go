package pkstore

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func TestKeyEncoding(t *testing.T) {
	tests := []struct {
		key      Key
		expected string
	}{
		{Key{"pk1", "a"}, "706b310001610001"},
		{Key{"a\x00b", "c"}, "6100ff620001630001"},
		{Key{"\x00", "\x00\x00"}, "00ff000100ff00ff0001"},
		{Key{"pk2_deleted", "b"}, "706b325f64656c657465640001620001"},
	}
	for _, tt := range tests {
		encoded, err := EncodeKey(tt.key)
		if err != nil {
			t.Errorf("** EncodeKey(%q) failed: %v", tt.key, err)
			continue
		}
		if a := hex.EncodeToString(encoded); a != tt.expected {
			t.Errorf("** EncodeKey(%q) = %s, wanted %s", tt.key, a, tt.expected)
			continue
		}
		decoded, err := DecodeKey(encoded)
		if err != nil {
			t.Errorf("** DecodeKey(%s) failed: %v", tt.expected, err)
		} else if decoded != tt.key {
			t.Errorf("** DecodeKey(%s) = %q, wanted %q", tt.expected, decoded, tt.key)
		}
	}
}

func TestKeyEncoding_order(t *testing.T) {
	keys := []Key{
		{"pk1", "a"},
		{"pk1", "a\x00"},
		{"pk1", "a\x00\x00"},
		{"pk1", "a\x01"},
		{"pk1", "ab"},
		{"pk1", "z"},
		{"pk1\x00", "a"},
		{"pk10", "a"},
		{"pk2", "b"},
		{"pk2_deleted", "b"},
		{"pk4", "d"},
		{"pk4", "\xff"},
		{"\xff", "a"},
	}
	for i, a := range keys {
		ea := must(EncodeKey(a))
		for j, b := range keys {
			eb := must(EncodeKey(b))
			expected := 0
			if i < j {
				expected = -1
			} else if i > j {
				expected = 1
			}
			if c := a.Compare(b); c != expected {
				t.Errorf("** %q.Compare(%q) = %d, wanted %d", a, b, c, expected)
			}
			if c := bytes.Compare(ea, eb); c != expected {
				t.Errorf("** bytes.Compare(enc(%q), enc(%q)) = %d, wanted %d", a, b, c, expected)
			}
		}
	}
}

func TestKeyEncoding_invalid(t *testing.T) {
	for _, k := range []Key{{}, {PK: "pk"}, {SK: "sk"}} {
		_, err := EncodeKey(k)
		var ike *InvalidKeyError
		if !errors.As(err, &ike) {
			t.Errorf("** EncodeKey(%q) err = %v, wanted *InvalidKeyError", k, err)
		}
	}

	for _, s := range []string{"", "706b31", "706b310001", "706b310001610001ff", "706b310002610001", "0001610001", "706b3100016100"} {
		_, err := DecodeKey(must(hex.DecodeString(s)))
		var ike *InvalidKeyError
		if !errors.As(err, &ike) {
			t.Errorf("** DecodeKey(%s) err = %v, wanted *InvalidKeyError", s, err)
		}
	}
}

func TestKey_WithPKSuffix(t *testing.T) {
	k := Key{"pk2", "b"}.WithPKSuffix("_deleted")
	deepEqual(t, k, Key{"pk2_deleted", "b"})
	deepEqual(t, k.String(), "pk2_deleted/b")
}
