package pkstore

import (
	"fmt"
)

type (
	// Change describes a mutation applied to a store, or the store shutting
	// down. Key is zero for OpClosed.
	Change struct {
		Op  Op
		Key Key
	}

	Op int
)

const (
	OpNone   Op = 0
	OpPut    Op = 1
	OpDelete Op = 2
	OpClosed Op = 3
)

func (chg Change) HasKey() bool {
	return chg.Key != (Key{})
}

func (chg Change) String() string {
	if chg.HasKey() {
		return chg.Op.String() + " " + chg.Key.String()
	}
	return chg.Op.String()
}

func (v Op) String() string {
	switch v {
	case OpNone:
		return "none"
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	case OpClosed:
		return "closed"
	default:
		return fmt.Sprintf("invalid op %d", int(v))
	}
}
