// Package modes holds the process-wide reply and tournament switches.
package modes

import "sync"

// Flags are shared by every command invocation. A write is visible to any
// read that starts after the write returns.
type Flags struct {
	mu         sync.RWMutex
	private    bool
	tournament bool
}

// New creates flags with tournament mode off
func New(private bool) *Flags {
	return &Flags{private: private}
}

// Private reports whether replies go to the caller instead of the channel
func (f *Flags) Private() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.private
}

// Tournament reports whether lobby lookups require a pingtest link
func (f *Flags) Tournament() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.tournament
}

// SetTournament switches tournament mode
func (f *Flags) SetTournament(on bool) {
	f.mu.Lock()
	f.tournament = on
	f.mu.Unlock()
}
