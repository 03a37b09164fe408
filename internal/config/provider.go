package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/TransportDebuger/filterservice/internal/fserrors"
)

// Provider is the process-wide Config Provider (§4.H). It owns the current
// configuration tree and a single backup copy for rollback (§3 Ownership
// summary).
type Provider struct {
	mu       sync.RWMutex
	path     string
	current  map[string]interface{} // substituted, validated raw tree
	backup   map[string]interface{}
	hasBackup bool
	cache    map[string]*Merged // per-environment merge cache
}

// NewProvider returns an uninitialized Provider.
func NewProvider() *Provider {
	return &Provider{cache: make(map[string]*Merged)}
}

// Initialize loads path, substitutes environment variables, validates the
// result and makes it the current tree. The cache is empty afterward.
func (p *Provider) Initialize(path string) error {
	raw, err := loadRaw(path)
	if err != nil {
		return err
	}
	substituted := substituteEnv(raw).(map[string]interface{})
	if err := validate(substituted); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.path = path
	p.current = substituted
	p.cache = make(map[string]*Merged)
	return nil
}

// GetCurrent returns the raw substituted+validated tree currently active.
func (p *Provider) GetCurrent() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// BackupCurrent snapshots the current tree for a later RestoreBackup.
func (p *Provider) BackupCurrent() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backup = p.current
	p.hasBackup = true
}

// RestoreBackup restores the tree saved by the last BackupCurrent and clears
// the merge cache. It is a no-op if no backup has been taken.
func (p *Provider) RestoreBackup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasBackup {
		return
	}
	p.current = p.backup
	p.cache = make(map[string]*Merged)
}

// Reload re-reads the same path, substitutes and validates it as a
// standalone step; callers that need transactional rollback should wrap
// this in a Transaction (see transaction.go) rather than call it bare.
func (p *Provider) Reload() error {
	p.mu.RLock()
	path := p.path
	p.mu.RUnlock()
	if path == "" {
		return fserrors.New(fserrors.KindConfig, "config.reload", "", fmt.Errorf("provider not initialized"))
	}

	raw, err := loadRaw(path)
	if err != nil {
		return err
	}
	substituted := substituteEnv(raw).(map[string]interface{})
	if err := validate(substituted); err != nil {
		return err
	}

	p.mu.Lock()
	p.current = substituted
	p.cache = make(map[string]*Merged)
	p.mu.Unlock()
	return nil
}

// ApplyOverrides deep-patches overrides (dot-path -> value, matching
// --override KEY:VAL on the CLI) into the current tree and clears the
// cache. Validation runs after the patch; on failure the tree is left
// unchanged.
func (p *Provider) ApplyOverrides(overrides map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	patched := deepCopyMap(p.current)
	for keyPath, val := range overrides {
		setDotPath(patched, keyPath, val)
	}
	if err := validate(patched); err != nil {
		return err
	}
	p.current = patched
	p.cache = make(map[string]*Merged)
	return nil
}

// GetMerged returns defaults deep-patched by environments[env], from cache
// when available.
func (p *Provider) GetMerged(env string) (*Merged, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.cache[env]; ok {
		return m, nil
	}
	if p.current == nil {
		return nil, fserrors.New(fserrors.KindConfig, "config.getmerged", env, fmt.Errorf("provider not initialized"))
	}

	defaults, _ := p.current["defaults"].(map[string]interface{})
	environments, _ := p.current["environments"].(map[string]interface{})

	merged := deepCopyMap(defaults)
	if envBlock, ok := environments[env].(map[string]interface{}); ok {
		merged = deepPatch(merged, envBlock)
	}

	var tree Environment
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &tree,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fserrors.New(fserrors.KindConfig, "config.getmerged", env, err)
	}
	if err := dec.Decode(merged); err != nil {
		return nil, fserrors.New(fserrors.KindConfig, "config.getmerged", env, err)
	}

	result := &Merged{Sources: tree.Sources, Logging: tree.Logging}
	p.cache[env] = result
	return result, nil
}

func loadRaw(path string) (map[string]interface{}, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fserrors.New(fserrors.KindConfig, "config.load", path, err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fserrors.New(fserrors.KindConfig, "config.load", path, err)
	}
	return v.AllSettings(), nil
}
