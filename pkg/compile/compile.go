/*
Package compile turns Go contract sources into deployable artifacts.

A Service knows a set of named sources (a package directory plus a contract
configuration file) and compiles them with the NeoGo compiler into a NEF file
and a manifest. Results are cached, a source is only recompiled when its files
or its configuration change.
*/
package compile

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nspcc-dev/neo-go/cli/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/compiler"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"go.uber.org/zap"
)

// DefaultCacheSize is the number of compiled artifacts kept by default.
const DefaultCacheSize = 16

// ErrUnknownSource is returned when compiling a source that was never
// registered.
var ErrUnknownSource = errors.New("unknown contract source")

// Source is a contract package with its configuration.
type Source struct {
	// Dir is the contract package directory (or a single .go file).
	Dir string
	// Config is the path to the YAML contract configuration.
	Config string
}

// Service compiles registered sources.
type Service struct {
	log *zap.Logger

	lock    sync.RWMutex
	sources map[string]Source
	cache   *lru.Cache[[sha256.Size]byte, *Artifact]
}

// NewService creates a compiler service with the given artifact cache size.
func NewService(log *zap.Logger, cacheSize int) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[[sha256.Size]byte, *Artifact](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		log:     log,
		sources: make(map[string]Source),
		cache:   cache,
	}, nil
}

// Register adds (or replaces) a named source.
func (s *Service) Register(name, dir, configPath string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.sources[name] = Source{Dir: dir, Config: configPath}
}

// Sources returns the names of all registered sources.
func (s *Service) Sources() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compile returns an artifact for the named source, compiling it if needed.
func (s *Service) Compile(name string) (*Artifact, error) {
	s.lock.RLock()
	src, ok := s.sources[name]
	s.lock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}

	key, err := sourceHash(src)
	if err != nil {
		return nil, fmt.Errorf("can't read %s sources: %w", name, err)
	}
	if a, ok := s.cache.Get(key); ok {
		s.log.Debug("using cached artifact", zap.String("name", name))
		return a, nil
	}

	a, err := CompileSource(name, src)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, a)
	s.log.Info("contract compiled",
		zap.String("name", name),
		zap.String("contract", a.Manifest.Name),
		zap.Int("script", len(a.NEF.Script)),
		zap.Int("methods", len(a.Manifest.ABI.Methods)))
	return a, nil
}

// CompileSource compiles src without any caching.
func CompileSource(name string, src Source) (*Artifact, error) {
	ne, di, err := compiler.CompileWithOptions(src.Dir, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", name, err)
	}

	conf, err := smartcontract.ParseContractConfig(src.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s configuration: %w", name, err)
	}

	o := &compiler.Options{
		Name:                       conf.Name,
		SourceURL:                  conf.SourceURL,
		ContractEvents:             conf.Events,
		DeclaredNamedTypes:         conf.NamedTypes,
		ContractSupportedStandards: conf.SupportedStandards,
		SafeMethods:                conf.SafeMethods,
		Overloads:                  conf.Overloads,
		Permissions:                make([]manifest.Permission, len(conf.Permissions)),
	}
	for i := range conf.Permissions {
		o.Permissions[i] = manifest.Permission(conf.Permissions[i])
	}
	m, err := compiler.CreateManifest(di, o)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s manifest: %w", name, err)
	}
	return &Artifact{Name: name, NEF: ne, Manifest: m}, nil
}

// sourceHash hashes Go files of the source together with its configuration.
func sourceHash(src Source) ([sha256.Size]byte, error) {
	var res [sha256.Size]byte

	files := []string{src.Dir}
	fi, err := os.Stat(src.Dir)
	if err != nil {
		return res, err
	}
	if fi.IsDir() {
		files, err = filepath.Glob(filepath.Join(src.Dir, "*.go"))
		if err != nil {
			return res, err
		}
		sort.Strings(files)
	}
	files = append(files, src.Config)

	h := sha256.New()
	for _, f := range files {
		if strings.HasSuffix(f, "_test.go") {
			continue
		}
		b, err := os.ReadFile(f)
		if err != nil {
			return res, err
		}
		h.Write([]byte(f))
		h.Write(b)
	}
	copy(res[:], h.Sum(nil))
	return res, nil
}
