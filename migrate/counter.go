package migrate

import (
	"github.com/andreyvit/pkstore"
)

// Counter tallies the changes a store emits, one counter per kind.
type Counter struct {
	Puts    int
	Deletes int
	Closed  int
}

// Listen is a pkstore.Listener.
func (c *Counter) Listen(chg pkstore.Change) {
	switch chg.Op {
	case pkstore.OpPut:
		c.Puts++
	case pkstore.OpDelete:
		c.Deletes++
	case pkstore.OpClosed:
		c.Closed++
	}
}

// Moved is the number of records relocated: each move is a delete plus a put.
func (c Counter) Moved() int {
	return min(c.Puts, c.Deletes)
}
