// Package profile persists per-block execution counts across runs. A warm
// start reads the store and precompiles blocks that were hot last time,
// skipping their interpreted warm-up. The store is an optional extension:
// the translator is fully functional without it.
package profile

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// Store is a persistent map from block-start address to accumulated
// execution count, backed by leveldb.
type Store struct {
	db *leveldb.DB
}

// Open opens (or creates) a profile store at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory store, used in tests.
func OpenMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory profile store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Count returns the accumulated execution count for a block-start address.
// Unknown addresses report zero.
func (s *Store) Count(addr uint64) (uint64, error) {
	v, err := s.db.Get(key(addr), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("profile entry for %#x has %d bytes", addr, len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

// Add accumulates counts into the store.
func (s *Store) Add(counts map[uint64]uint64) error {
	batch := new(leveldb.Batch)

	for addr, n := range counts {
		cur, err := s.Count(addr)
		if err != nil {
			return err
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], cur+n)
		batch.Put(key(addr), buf[:])
	}

	return s.db.Write(batch, nil)
}

// Hot returns every block-start address whose accumulated count is at least
// minCount.
func (s *Store) Hot(minCount uint64) ([]uint64, error) {
	var hot []uint64

	it := s.db.NewIterator(nil, nil)
	defer it.Release()

	for it.Next() {
		k := it.Key()
		v := it.Value()
		if len(k) != 8 || len(v) != 8 {
			continue
		}
		if binary.BigEndian.Uint64(v) >= minCount {
			hot = append(hot, binary.BigEndian.Uint64(k))
		}
	}

	return hot, it.Error()
}

func key(addr uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], addr)
	return k[:]
}
