package pkstore

import (
	"fmt"
)

// Storage is a sorted key-value engine. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Get returns the value of key, or nil if the key does not exist.
	// The returned slice is owned by the caller.
	Get(key []byte) ([]byte, error)

	// Put stores a key-value pair, durably as far as the engine is configured to.
	Put(key, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key []byte) error

	// Scan calls fn for at most limit pairs in ascending key order, starting
	// from the first key strictly greater than after (or from the first key if
	// after is nil). The slices passed to fn are only valid during the call.
	// Returning an error from fn stops the scan and returns that error.
	Scan(after []byte, limit int, fn func(k, v []byte) error) error

	// Close flushes pending writes and releases the engine.
	Close() error
}

const (
	EngineBolt   = "bolt"
	EngineLevel  = "level"
	EngineSQLite = "sqlite"
	EngineMem    = "mem"
)

var Engines = []string{EngineBolt, EngineLevel, EngineSQLite, EngineMem}

// OpenStorage opens an engine by name with default options. Path is ignored
// for the memory engine.
func OpenStorage(engine, path string) (Storage, error) {
	switch engine {
	case EngineBolt, "":
		return OpenBolt(path, BoltOptions{})
	case EngineLevel:
		return OpenLevel(path, LevelOptions{})
	case EngineSQLite:
		return OpenSQLite(path)
	case EngineMem:
		return NewMemStorage(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (supported: %v)", engine, Engines)
	}
}
