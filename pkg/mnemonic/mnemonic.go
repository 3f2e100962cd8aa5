/*
Package mnemonic derives Neo accounts from BIP-39 mnemonic phrases.

Keys are derived with SLIP-10 for the NIST P-256 curve using hardened
indexes only, the path of account i is m/44'/888'/0'/0'/i'.
*/
package mnemonic

import (
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/tyler-smith/go-bip39"
)

const (
	// AccountPathFormat is the derivation path of the i-th account.
	AccountPathFormat = "m/44'/888'/0'/0'/%d'"
	// FirstHardenedIndex is the first hardened child index.
	FirstHardenedIndex = 1 << 31

	seedModifier = "Nist256p1 seed"
)

var (
	// ErrInvalidPath is returned for paths that are not fully hardened.
	ErrInvalidPath = errors.New("invalid derivation path")
	// ErrInvalidMnemonic is returned for phrases failing BIP-39 checks.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")

	pathRegex = regexp.MustCompile(`^m(/[0-9]+')+$`)
	curveN    = elliptic.P256().Params().N
)

// Key is an extended private key.
type Key struct {
	Key       []byte
	ChainCode []byte
}

// New generates a new mnemonic phrase with the given entropy size (128-256
// bits, multiple of 32).
func New(bits int) (string, error) {
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// Seed validates the phrase and returns its BIP-39 seed.
func Seed(phrase, password string) ([]byte, error) {
	phrase = strings.Join(strings.Fields(phrase), " ")
	seed, err := bip39.NewSeedWithErrorChecking(phrase, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}
	return seed, nil
}

// Accounts derives n accounts from the phrase.
func Accounts(phrase, password string, n uint32) ([]*wallet.Account, error) {
	seed, err := Seed(phrase, password)
	if err != nil {
		return nil, err
	}
	accs := make([]*wallet.Account, n)
	for i := range n {
		accs[i], err = AccountFromSeed(seed, i)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
	}
	return accs, nil
}

// AccountFromSeed derives the i-th account.
func AccountFromSeed(seed []byte, i uint32) (*wallet.Account, error) {
	k, err := DeriveForPath(fmt.Sprintf(AccountPathFormat, i), seed)
	if err != nil {
		return nil, err
	}
	priv, err := keys.NewPrivateKeyFromBytes(k.Key)
	if err != nil {
		return nil, err
	}
	return wallet.NewAccountFromPrivateKey(priv), nil
}

// DeriveForPath derives the key for a hardened path.
func DeriveForPath(path string, seed []byte) (*Key, error) {
	if !pathRegex.MatchString(path) {
		return nil, ErrInvalidPath
	}

	key := NewMasterKey(seed)
	for _, segment := range strings.Split(path, "/")[1:] {
		i64, err := strconv.ParseUint(strings.TrimSuffix(segment, "'"), 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPath, err)
		}
		key = key.Derive(uint32(i64) + FirstHardenedIndex)
	}
	return key, nil
}

// NewMasterKey returns the master key for the seed.
func NewMasterKey(seed []byte) *Key {
	sum := hmacSum([]byte(seedModifier), seed)
	for !validScalar(sum[:32]) {
		sum = hmacSum([]byte(seedModifier), sum)
	}
	return &Key{Key: sum[:32], ChainCode: sum[32:]}
}

// Derive returns the hardened child i. Non-hardened indexes are treated as
// hardened ones.
func (k *Key) Derive(i uint32) *Key {
	i |= FirstHardenedIndex
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], i)

	data := make([]byte, 0, 37)
	data = append(data, 0)
	data = append(data, k.Key...)
	data = append(data, idx[:]...)

	parent := new(big.Int).SetBytes(k.Key)
	for {
		sum := hmacSum(k.ChainCode, data)
		il := new(big.Int).SetBytes(sum[:32])
		if il.Cmp(curveN) < 0 {
			child := il.Add(il, parent)
			child.Mod(child, curveN)
			if child.Sign() != 0 {
				return &Key{Key: child.FillBytes(make([]byte, 32)), ChainCode: sum[32:]}
			}
		}
		data = append(append([]byte{1}, sum[32:]...), idx[:]...)
	}
}

func validScalar(b []byte) bool {
	v := new(big.Int).SetBytes(b)
	return v.Sign() != 0 && v.Cmp(curveN) < 0
}

func hmacSum(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}
