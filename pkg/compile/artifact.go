package compile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/nef"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Artifact is a compiled contract: its bytecode and its interface.
type Artifact struct {
	Name     string
	NEF      *nef.File
	Manifest *manifest.Manifest
}

// Hash returns the hash the contract gets when deployed by sender.
func (a *Artifact) Hash(sender util.Uint160) util.Uint160 {
	return state.CreateContractHash(sender, a.NEF.Checksum, a.Manifest.Name)
}

// Method returns the ABI method with the given name (any number of
// parameters) or nil.
func (a *Artifact) Method(name string) *manifest.Method {
	return a.Manifest.ABI.GetMethod(name, -1)
}

// Bytes returns serialized NEF and manifest ready to be passed to
// ContractManagement deploy or update.
func (a *Artifact) Bytes() ([]byte, []byte, error) {
	ne, err := a.NEF.Bytes()
	if err != nil {
		return nil, nil, fmt.Errorf("can't serialize NEF: %w", err)
	}
	m, err := json.Marshal(a.Manifest)
	if err != nil {
		return nil, nil, fmt.Errorf("can't serialize manifest: %w", err)
	}
	return ne, m, nil
}

// Save writes <name>.nef and <name>.manifest.json into dir and returns their
// paths.
func (a *Artifact) Save(dir string) (string, string, error) {
	ne, m, err := a.Bytes()
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	nefPath := filepath.Join(dir, a.Name+".nef")
	manifestPath := filepath.Join(dir, a.Name+".manifest.json")
	if err := os.WriteFile(nefPath, ne, 0o644); err != nil {
		return "", "", fmt.Errorf("can't write NEF file: %w", err)
	}
	if err := os.WriteFile(manifestPath, m, 0o644); err != nil {
		return "", "", fmt.Errorf("can't write manifest file: %w", err)
	}
	return nefPath, manifestPath, nil
}

// Load reads an artifact saved by Save. The artifact name is taken from the
// NEF file name.
func Load(nefPath, manifestPath string) (*Artifact, error) {
	b, err := os.ReadFile(nefPath)
	if err != nil {
		return nil, fmt.Errorf("can't read NEF file: %w", err)
	}
	ne, err := nef.FileFromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("can't parse NEF file: %w", err)
	}

	b, err = os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("can't read manifest file: %w", err)
	}
	m := new(manifest.Manifest)
	if err := json.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("can't parse manifest file: %w", err)
	}

	name := filepath.Base(nefPath)
	name = name[:len(name)-len(filepath.Ext(name))]
	return &Artifact{Name: name, NEF: &ne, Manifest: m}, nil
}
