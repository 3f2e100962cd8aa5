package ledger

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

// Randomness provides winner indexes.
type Randomness interface {
	// NextIndex returns an index in [0, n).
	NextIndex(n int) (int, error)
}

// CryptoRandomness draws uniformly distributed indexes from crypto/rand.
type CryptoRandomness struct{}

// NextIndex implements Randomness.
func (CryptoRandomness) NextIndex(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid range: %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// HashRandomness derives indexes from a seed the same way for every node,
// index i is SHA-256(seed || counter) mod n where counter is incremented with
// every call.
type HashRandomness struct {
	lock    sync.Mutex
	seed    []byte
	counter uint64
}

// NewHashRandomness returns HashRandomness for the given seed (a block hash
// for example).
func NewHashRandomness(seed []byte) *HashRandomness {
	return &HashRandomness{seed: append([]byte(nil), seed...)}
}

// NextIndex implements Randomness.
func (h *HashRandomness) NextIndex(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid range: %d", n)
	}
	h.lock.Lock()
	defer h.lock.Unlock()

	buf := make([]byte, len(h.seed)+8)
	copy(buf, h.seed)
	binary.LittleEndian.PutUint64(buf[len(h.seed):], h.counter)
	h.counter++

	sum := sha256.Sum256(buf)
	v := new(big.Int).SetBytes(sum[:])
	return int(v.Mod(v, big.NewInt(int64(n))).Int64()), nil
}

// ErrExhausted is returned by FixedRandomness when there are no indexes left.
var ErrExhausted = errors.New("no more indexes")

// FixedRandomness replays the given indexes, it is mostly useful for tests.
type FixedRandomness struct {
	lock    sync.Mutex
	indexes []int
}

// NewFixedRandomness returns FixedRandomness replaying indexes in order.
func NewFixedRandomness(indexes ...int) *FixedRandomness {
	return &FixedRandomness{indexes: indexes}
}

// NextIndex implements Randomness. Values are returned as is, even if they're
// out of [0, n).
func (f *FixedRandomness) NextIndex(n int) (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if len(f.indexes) == 0 {
		return 0, ErrExhausted
	}
	idx := f.indexes[0]
	f.indexes = f.indexes[1:]
	return idx, nil
}
