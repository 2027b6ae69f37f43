package pkstore

import (
	"bytes"
	"fmt"
	"slices"
	"time"

	"go.etcd.io/bbolt"
)

var boltEntriesBucket = []byte("entries")

type BoltOptions struct {
	IsTesting bool
	MmapSize  int
	Timeout   time.Duration
}

type boltStorage struct {
	bdb *bbolt.DB
}

func OpenBolt(path string, opt BoltOptions) (Storage, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.Timeout != 0 {
		bopt.Timeout = opt.Timeout
	}
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 64
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("bolt: %w", err)
	}
	err = bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(boltEntriesBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("bolt: %w", err)
	}
	return &boltStorage{bdb: bdb}, nil
}

func (s *boltStorage) Bolt() *bbolt.DB {
	return s.bdb
}

func (s *boltStorage) Get(key []byte) ([]byte, error) {
	var result []byte
	err := s.bdb.View(func(btx *bbolt.Tx) error {
		// Bolt values are only valid for the life of the transaction.
		result = slices.Clone(btx.Bucket(boltEntriesBucket).Get(key))
		return nil
	})
	return result, err
}

func (s *boltStorage) Put(key, value []byte) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(boltEntriesBucket).Put(key, value)
	})
}

func (s *boltStorage) Delete(key []byte) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(boltEntriesBucket).Delete(key)
	})
}

func (s *boltStorage) Scan(after []byte, limit int, fn func(k, v []byte) error) error {
	return s.bdb.View(func(btx *bbolt.Tx) error {
		c := btx.Bucket(boltEntriesBucket).Cursor()
		var k, v []byte
		if after == nil {
			k, v = c.First()
		} else {
			k, v = c.Seek(after)
			if k != nil && bytes.Equal(k, after) {
				k, v = c.Next()
			}
		}
		for n := 0; k != nil && n < limit; n++ {
			if err := fn(k, v); err != nil {
				return err
			}
			k, v = c.Next()
		}
		return nil
	})
}

func (s *boltStorage) Close() error {
	return s.bdb.Close()
}
