package history

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nspcc-dev/neo-go/pkg/core/storage/dbconfig"
	"go.etcd.io/bbolt"
)

// bucket is the only bucket used by BoltDBStore.
var bucket = []byte("settlements")

// BoltDBStore is a BoltDB-backed Store.
type BoltDBStore struct {
	db *bbolt.DB
}

// NewBoltDBStore opens (or creates) the database file.
func NewBoltDBStore(cfg dbconfig.BoltDBOptions) (*BoltDBStore, error) {
	cp := *bbolt.DefaultOptions
	if cfg.ReadOnly {
		cp.ReadOnly = true
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), os.ModePerm); err != nil {
			return nil, fmt.Errorf("could not create dir for BoltDB: %w", err)
		}
	}
	db, err := bbolt.Open(cfg.FilePath, 0o600, &cp)
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB instance: %w", err)
	}
	if !cfg.ReadOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucket)
			return err
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("could not create root bucket: %w", err)
		}
	}
	return &BoltDBStore{db: db}, nil
}

// PutNew implements the Store interface.
func (s *BoltDBStore) PutNew(key, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b.Get(key) != nil {
			return ErrKeyExists
		}
		return b.Put(key, value)
	})
}

// Get implements the Store interface.
func (s *BoltDBStore) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get(key); v != nil {
			val = bytes.Clone(v)
		}
		return nil
	})
	if err == nil && val == nil {
		err = ErrKeyNotFound
	}
	return val, err
}

// Seek implements the Store interface.
func (s *BoltDBStore) Seek(prefix []byte, f func(k, v []byte) bool) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if !f(bytes.Clone(k), bytes.Clone(v)) {
				break
			}
		}
		return nil
	})
}

// Close implements the Store interface.
func (s *BoltDBStore) Close() error {
	return s.db.Close()
}
