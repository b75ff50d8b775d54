package policy

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/victoralfred/gowritter/safepath"
	"gopkg.in/yaml.v3"
)

// Loader reads capability-set files from a confined base directory.
type Loader struct {
	path     string
	safePath *safepath.SafePath
	policy   *CompiledPolicy
	lastHash []byte
	lastLoad time.Time
	mu       sync.RWMutex
}

// NewLoader creates a loader for a policy file under basePath.
func NewLoader(basePath, policyFile string) (*Loader, error) {
	sp, err := safepath.New(basePath)
	if err != nil {
		return nil, fmt.Errorf("creating safe path: %w", err)
	}
	return &Loader{
		path:     policyFile,
		safePath: sp,
	}, nil
}

// Load reads, parses, and compiles the policy file. When the file is
// unchanged since the last load, the cached compilation is returned.
func (l *Loader) Load(ctx context.Context) (*CompiledPolicy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.safePath.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	hash := sha256.Sum256(data)
	if l.policy != nil && string(hash[:]) == string(l.lastHash) {
		return l.policy, nil
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	compiled, err := Compile(&config)
	if err != nil {
		return nil, err
	}
	compiled.hash = fmt.Sprintf("%x", hash)

	l.policy = compiled
	l.lastHash = hash[:]
	l.lastLoad = time.Now()
	return compiled, nil
}

// Get returns the most recently loaded policy without re-reading the
// file, or nil when Load has never succeeded.
func (l *Loader) Get() *CompiledPolicy {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.policy
}
