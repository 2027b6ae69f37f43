package pkstore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

const defaultScanBatchSize = 64

type Options struct {
	// Codec encodes records; DefaultCodec if nil.
	Codec ValueCodec

	Logger  *slog.Logger
	Verbose bool

	// ScanBatchSize is the number of entries read from the engine at a time
	// during iteration.
	ScanBatchSize int

	// EntityTypeField names the field that classifies records;
	// DefaultEntityTypeField if empty.
	EntityTypeField string
}

// Store is an ordered collection of records keyed by Key. It is safe for
// concurrent use; see the package documentation for event ordering and
// iteration semantics.
type Store struct {
	engine    Storage
	codec     ValueCodec
	logger    *slog.Logger
	verbose   bool
	batchSize int
	typeField string

	bus Bus

	// writeMu serializes mutations together with their notifications.
	writeMu sync.Mutex
	// mu guards closed against the engine being closed under a reader.
	mu     sync.RWMutex
	closed bool

	ReadCount  atomic.Uint64
	WriteCount atomic.Uint64
}

func Open(engine Storage, opt Options) *Store {
	if engine == nil {
		panic("nil engine")
	}
	s := &Store{
		engine:    engine,
		codec:     opt.Codec,
		logger:    opt.Logger,
		verbose:   opt.Verbose,
		batchSize: opt.ScanBatchSize,
		typeField: opt.EntityTypeField,
	}
	if s.codec == nil {
		s.codec = DefaultCodec
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultScanBatchSize
	}
	if s.typeField == "" {
		s.typeField = DefaultEntityTypeField
	}
	return s
}

// OpenPath opens the named engine at path and wraps it in a Store.
func OpenPath(engine, path string, opt Options) (*Store, error) {
	st, err := OpenStorage(engine, path)
	if err != nil {
		return nil, err
	}
	return Open(st, opt), nil
}

func (s *Store) Engine() Storage {
	return s.engine
}

func (s *Store) Codec() ValueCodec {
	return s.codec
}

func (s *Store) EntityTypeField() string {
	return s.typeField
}

// EntityType looks up the store's entity type field of rec.
func (s *Store) EntityType(rec Record) Field {
	return rec.Get(s.typeField)
}

// Subscribe registers listener for every change emitted after this call.
func (s *Store) Subscribe(listener Listener) *Subscription {
	return s.bus.Subscribe(listener)
}

func (s *Store) Get(key Key) (Record, error) {
	raw, err := s.GetRaw(key)
	if err != nil {
		return Record{}, err
	}
	rec, err := s.codec.DecodeRecord(raw)
	if err != nil {
		return Record{}, withKey(err, key)
	}
	if s.verbose {
		s.logf("db: GET %v => %v", key, rec)
	}
	return rec, nil
}

// GetRaw returns the encoded value stored under key.
func (s *Store) GetRaw(key Key) ([]byte, error) {
	keyBuf := keyBytesPool.Get().([]byte)
	defer releaseKeyBytes(keyBuf)
	keyRaw, err := AppendKey(keyBuf, key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	s.ReadCount.Add(1)
	raw, err := s.engine.Get(keyRaw)
	if err != nil {
		return nil, fmt.Errorf("get %v: %w", key, err)
	}
	if raw == nil {
		if s.verbose {
			s.logf("db: GET.NOTFOUND %v", key)
		}
		return nil, ErrNotFound
	}
	return raw, nil
}

func (s *Store) Exists(key Key) (bool, error) {
	_, err := s.GetRaw(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) Put(key Key, rec Record) error {
	valueBuf := valueBytesPool.Get().([]byte)
	defer releaseValueBytes(valueBuf)
	raw, err := s.codec.AppendRecord(valueBuf, rec)
	if err != nil {
		return fmt.Errorf("put %v: %w", key, err)
	}
	if s.verbose {
		s.logf("db: PUT %v => %v", key, rec)
	}
	return s.write(OpPut, key, raw)
}

// PutRaw stores an already encoded value. The envelope is validated, the
// record data is stored as is.
func (s *Store) PutRaw(key Key, raw []byte) error {
	if err := ValidateValue(raw); err != nil {
		return withKey(err, key)
	}
	if s.verbose {
		s.logf("db: PUT %v => (%d bytes)", key, len(raw))
	}
	return s.write(OpPut, key, raw)
}

func (s *Store) Delete(key Key) error {
	if s.verbose {
		s.logf("db: DELETE %v", key)
	}
	return s.write(OpDelete, key, nil)
}

func (s *Store) write(op Op, key Key, raw []byte) error {
	keyBuf := keyBytesPool.Get().([]byte)
	defer releaseKeyBytes(keyBuf)
	keyRaw, err := AppendKey(keyBuf, key)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.WriteCount.Add(1)
	if op == OpDelete {
		err = s.engine.Delete(keyRaw)
	} else {
		err = s.engine.Put(keyRaw, raw)
	}
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("%v %v: %w", op, key, err)
	}

	s.bus.Emit(Change{Op: op, Key: key})
	return nil
}

// Close flushes and closes the engine, then emits a single OpClosed change.
// Subsequent calls, including Close, return ErrClosed.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	err := s.engine.Close()
	s.mu.Unlock()

	if s.verbose {
		s.logf("db: CLOSED (reads=%d writes=%d)", s.ReadCount.Load(), s.WriteCount.Load())
	}
	s.bus.Emit(Change{Op: OpClosed})
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func (s *Store) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Store) logf(format string, args ...any) {
	s.logger.Debug(fmt.Sprintf(format, args...))
}
