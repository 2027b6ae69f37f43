package pkstore

import "testing"

func TestOp_String(t *testing.T) {
	if OpPut.String() != "put" || OpDelete.String() != "delete" || OpClosed.String() != "closed" || OpNone.String() != "none" {
		t.Fatalf("unexpected Op.String values")
	}
	if got := Op(999).String(); got == "put" || got == "delete" || got == "none" || got == "closed" {
		t.Fatalf("unexpected Op(999).String() = %q", got)
	}
}

func TestChange_String(t *testing.T) {
	chg := Change{Op: OpDelete, Key: Key{"pk2", "b"}}
	if !chg.HasKey() || chg.String() != "delete pk2/b" {
		t.Fatalf("Change.String() = %q, wanted %q", chg.String(), "delete pk2/b")
	}
	chg = Change{Op: OpClosed}
	if chg.HasKey() || chg.String() != "closed" {
		t.Fatalf("Change.String() = %q, wanted %q", chg.String(), "closed")
	}
}
