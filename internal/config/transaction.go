package config

import (
	"fmt"
	"sync"

	"github.com/TransportDebuger/filterservice/internal/fserrors"
)

// Transaction is the idiomatic substitute for the original
// ConfigReloadTransaction, whose C++ destructor rolled back an unfinished
// transaction via RAII. Go has no destructors, so callers must explicitly
// defer Rollback() and call Commit() on success; Rollback after Commit is a
// no-op, matching the original's "active_" guard.
type Transaction struct {
	mu       sync.Mutex
	provider *Provider
	active   bool
}

// Begin starts a transaction: saves the current tree as the rollback point.
func Begin(p *Provider) *Transaction {
	p.BackupCurrent()
	return &Transaction{provider: p, active: true}
}

// Reload performs the full begin/reload/commit-or-rollback sequence used by
// SIGHUP handling (§4.H, §6): on any load or validation failure the
// previous tree is restored and the cache cleared; partial states are never
// visible to readers.
func (t *Transaction) Reload() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return fserrors.New(fserrors.KindConfig, "config.transaction.reload", "", fmt.Errorf("transaction not active"))
	}
	if err := t.provider.Reload(); err != nil {
		t.provider.RestoreBackup()
		t.active = false
		return err
	}
	t.active = false
	return nil
}

// Commit discards the rollback point, keeping the current tree.
func (t *Transaction) Commit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
}

// Rollback restores the tree saved by Begin. No-op if already committed or
// rolled back.
func (t *Transaction) Rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return
	}
	t.provider.RestoreBackup()
	t.active = false
}
