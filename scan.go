package pkstore

import (
	"fmt"
	"iter"
	"slices"
)

// Entry is a stored pair. Raw is the encoded value; Record is its decoded
// form, zero if decoding failed.
type Entry struct {
	Key    Key
	Raw    []byte
	Record Record
}

type rawEntry struct {
	key   []byte
	value []byte
}

// scanRaw yields raw pairs page by page. Between pages nothing is held, so
// the consumer is free to write to the store; each page starts strictly
// after the last key already yielded.
func (s *Store) scanRaw() iter.Seq2[rawEntry, error] {
	return func(yield func(rawEntry, error) bool) {
		var after []byte
		page := make([]rawEntry, 0, s.batchSize)
		for {
			page = page[:0]
			err := s.readPage(after, func(k, v []byte) error {
				page = append(page, rawEntry{slices.Clone(k), slices.Clone(v)})
				return nil
			})
			if err != nil {
				yield(rawEntry{}, err)
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
			}
			if len(page) < s.batchSize {
				return
			}
			after = page[len(page)-1].key
		}
	}
}

func (s *Store) readPage(after []byte, fn func(k, v []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	s.ReadCount.Add(1)
	err := s.engine.Scan(after, s.batchSize, fn)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	return nil
}

// Entries yields all entries in ascending key order. An entry whose key or
// value cannot be decoded is yielded together with an *InvalidKeyError or
// *CorruptValueError, and iteration continues if the consumer asks for more.
// Any other error ends the iteration.
//
// Iteration is not a snapshot: writes made during iteration at or after the
// current position may or may not be observed.
func (s *Store) Entries() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for re, err := range s.scanRaw() {
			if err != nil {
				yield(Entry{}, err)
				return
			}
			key, err := DecodeKey(re.key)
			if err != nil {
				if !yield(Entry{Raw: re.value}, err) {
					return
				}
				continue
			}
			ent := Entry{Key: key, Raw: re.value}
			ent.Record, err = s.codec.DecodeRecord(re.value)
			if err != nil {
				err = withKey(err, key)
			}
			if !yield(ent, err) {
				return
			}
		}
	}
}

// Keys yields all keys in ascending order without decoding values.
func (s *Store) Keys() iter.Seq2[Key, error] {
	return func(yield func(Key, error) bool) {
		for re, err := range s.scanRaw() {
			if err != nil {
				yield(Key{}, err)
				return
			}
			key, err := DecodeKey(re.key)
			if !yield(key, err) {
				return
			}
		}
	}
}

// Values yields all records in ascending key order.
func (s *Store) Values() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for ent, err := range s.Entries() {
			if !yield(ent.Record, err) {
				return
			}
		}
	}
}

// All collects the entries of seq, stopping at the first error.
func All[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var result []T
	for v, err := range seq {
		if err != nil {
			return result, err
		}
		result = append(result, v)
	}
	return result, nil
}
