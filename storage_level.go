package pkstore

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/syndtr/goleveldb/leveldb"
	lverrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	// minimum memory, in MiB, split between the block cache and write buffers
	minLevelCache = 16
	// minimum number of open file handles
	minLevelHandles = 16
)

type LevelOptions struct {
	Cache    int // MiB
	Handles  int
	Sync     bool
	ReadOnly bool
}

type levelStorage struct {
	db   *leveldb.DB
	wopt *opt.WriteOptions
}

func OpenLevel(path string, o LevelOptions) (Storage, error) {
	options := levelOptions(o)
	db, err := leveldb.OpenFile(path, options)
	if _, corrupted := err.(*lverrors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("leveldb: %w", err)
	}
	return &levelStorage{db: db, wopt: &opt.WriteOptions{Sync: o.Sync}}, nil
}

// NewLevelMem returns a LevelDB engine backed by memory, for tests.
func NewLevelMem() (Storage, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), levelOptions(LevelOptions{}))
	if err != nil {
		return nil, fmt.Errorf("leveldb: %w", err)
	}
	return &levelStorage{db: db, wopt: &opt.WriteOptions{}}, nil
}

func levelOptions(o LevelOptions) *opt.Options {
	cache, handles := o.Cache, o.Handles
	if cache < minLevelCache {
		cache = minLevelCache
	}
	if handles < minLevelHandles {
		handles = minLevelHandles
	}
	return &opt.Options{
		Filter:                 filter.NewBloomFilter(10),
		OpenFilesCacheCapacity: handles,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB,
		ReadOnly:               o.ReadOnly,
	}
}

func (s *levelStorage) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func (s *levelStorage) Put(key, value []byte) error {
	return s.db.Put(key, value, s.wopt)
}

func (s *levelStorage) Delete(key []byte) error {
	return s.db.Delete(key, s.wopt)
}

func (s *levelStorage) Scan(after []byte, limit int, fn func(k, v []byte) error) error {
	var rang *util.Range
	if after != nil {
		rang = &util.Range{Start: slices.Clone(after)}
	}
	it := s.db.NewIterator(rang, nil)
	defer it.Release()

	n := 0
	for ok := it.First(); ok && n < limit; ok = it.Next() {
		if after != nil && bytes.Equal(it.Key(), after) {
			continue
		}
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
		n++
	}
	return it.Error()
}

func (s *levelStorage) Close() error {
	return s.db.Close()
}
