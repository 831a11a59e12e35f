package identity

import (
	"strings"
	"sync"
)

// Directory remembers the display name each wallet last proved.
type Directory struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewDirectory() *Directory {
	return &Directory{names: make(map[string]string)}
}

// Set records displayName for wallet, replacing any earlier claim.
func (d *Directory) Set(wallet, displayName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[strings.ToLower(strings.TrimSpace(wallet))] = displayName
}

// Lookup returns the claimed name, if any.
func (d *Directory) Lookup(wallet string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.names[strings.ToLower(strings.TrimSpace(wallet))]
	return name, ok
}

// DisplayName returns the claimed name or the default one.
func (d *Directory) DisplayName(wallet string) string {
	if name, ok := d.Lookup(wallet); ok {
		return name
	}
	return DefaultDisplayName(wallet)
}
