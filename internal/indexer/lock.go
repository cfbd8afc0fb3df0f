package indexer

import (
	"sync"
	"time"
)

// ingestGuard admits one ingest at a time and remembers which dump is
// being loaded so a rejected caller can be told what it is waiting on.
type ingestGuard struct {
	mu      sync.Mutex
	held    bool
	source  string
	started time.Time
}

// acquire claims the guard for source without blocking. On failure it
// returns the source and start time of the active ingest.
func (g *ingestGuard) acquire(source string) (string, time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return g.source, g.started, false
	}
	g.held = true
	g.source = source
	g.started = time.Now()
	return "", time.Time{}, true
}

func (g *ingestGuard) release() {
	g.mu.Lock()
	g.held = false
	g.source = ""
	g.mu.Unlock()
}
