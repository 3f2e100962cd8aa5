package history

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/storage/dbconfig"
)

// Supported store types.
const (
	BoltDB     = "boltdb"
	LevelDB    = "leveldb"
	InMemoryDB = "inmemory"
)

var (
	// ErrKeyNotFound is returned by Get for missing keys.
	ErrKeyNotFound = errors.New("key not found")
	// ErrKeyExists is returned by PutNew for keys that are already stored.
	ErrKeyExists = errors.New("key already exists")
)

// Store is an append-only KV store.
type Store interface {
	// PutNew stores the value if there is no value for the key yet.
	PutNew(key, value []byte) error
	Get(key []byte) ([]byte, error)
	// Seek iterates over keys with the given prefix in ascending order until
	// f returns false.
	Seek(prefix []byte, f func(k, v []byte) bool) error
	Close() error
}

// NewStore creates a store according to the configuration.
func NewStore(cfg dbconfig.DBConfiguration) (Store, error) {
	switch cfg.Type {
	case LevelDB:
		return NewLevelDBStore(cfg.LevelDBOptions)
	case InMemoryDB, "":
		return NewMemoryStore(), nil
	case BoltDB:
		return NewBoltDBStore(cfg.BoltDBOptions)
	default:
		return nil, fmt.Errorf("unknown storage: %s", cfg.Type)
	}
}
