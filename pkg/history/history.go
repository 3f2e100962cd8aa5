/*
Package history keeps settled lottery rounds.

Every successful winner selection produces a Record that is stored once and
never changed. Records are keyed by the lottery contract hash and the round
number, so listing a contract's history returns rounds in ascending order.
*/
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-lottery/pkg/ledger"
	"go.uber.org/zap"
)

// ErrNotFound is returned when there is no record for the requested round.
var ErrNotFound = errors.New("settlement not found")

// ErrDuplicate is returned on an attempt to overwrite a record.
var ErrDuplicate = errors.New("settlement already recorded")

// Record is a settlement of a particular lottery contract.
type Record struct {
	Contract util.Uint160 `json:"contract"`
	ledger.Settlement
}

// History is a settlement log over a Store.
type History struct {
	log   *zap.Logger
	store Store
}

// New creates History over the given store.
func New(store Store, log *zap.Logger) *History {
	if log == nil {
		log = zap.NewNop()
	}
	return &History{log: log, store: store}
}

func makeKey(contract util.Uint160, round uint64) []byte {
	key := make([]byte, util.Uint160Size+8)
	copy(key, contract.BytesBE())
	binary.BigEndian.PutUint64(key[util.Uint160Size:], round)
	return key
}

// Put stores the record, a round can only be recorded once.
func (h *History) Put(r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("can't encode settlement: %w", err)
	}
	err = h.store.PutNew(makeKey(r.Contract, r.Round), data)
	if errors.Is(err, ErrKeyExists) {
		return fmt.Errorf("%w: %s round %d", ErrDuplicate, r.Contract.StringLE(), r.Round)
	}
	if err != nil {
		return err
	}
	h.log.Debug("settlement recorded",
		zap.Stringer("contract", r.Contract),
		zap.Uint64("round", r.Round),
		zap.Stringer("winner", r.Winner))
	return nil
}

// Get returns the record of the given round.
func (h *History) Get(contract util.Uint160, round uint64) (*Record, error) {
	data, err := h.store.Get(makeKey(contract, round))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s round %d", ErrNotFound, contract.StringLE(), round)
	}
	if err != nil {
		return nil, err
	}
	r := new(Record)
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("can't decode settlement: %w", err)
	}
	return r, nil
}

// List returns all records of the contract ordered by round.
func (h *History) List(contract util.Uint160) ([]Record, error) {
	var (
		res    []Record
		decErr error
	)
	err := h.store.Seek(contract.BytesBE(), func(_, v []byte) bool {
		var r Record
		if decErr = json.Unmarshal(v, &r); decErr != nil {
			return false
		}
		res = append(res, r)
		return true
	})
	if err == nil {
		err = decErr
	}
	if err != nil {
		return nil, fmt.Errorf("can't list settlements: %w", err)
	}
	return res, nil
}

// Close closes the underlying store.
func (h *History) Close() error {
	return h.store.Close()
}
