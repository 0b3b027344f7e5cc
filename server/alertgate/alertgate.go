// Package alertgate limits how often an alert may be raised for the same (feed, zone or area) pair.
package alertgate

import (
	"sync"
	"time"
)

// Key identifies the thing that is alerting. Area is a zone ID, or the door area name.
type Key struct {
	FeedID int64
	Area   string
}

// Gate is a cooldown map. It is lossy, and forgets everything on restart.
// It bounds the alert rate per key, but offers no exactly-once guarantee.
type Gate struct {
	cooldown time.Duration

	lock sync.Mutex
	last map[Key]time.Time
}

func NewGate(cooldown time.Duration) *Gate {
	return &Gate{
		cooldown: cooldown,
		last:     map[Key]time.Time{},
	}
}

func (g *Gate) Cooldown() time.Duration {
	return g.cooldown
}

// ShouldEmit returns true if the key has not emitted within the cooldown window,
// and records 'now' as the key's emission time when it does.
func (g *Gate) ShouldEmit(key Key, now time.Time) bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	last, ok := g.last[key]
	if ok && now.Sub(last) < g.cooldown {
		return false
	}
	g.last[key] = now
	return true
}

// ForgetFeed discards the cooldowns of a feed
func (g *Gate) ForgetFeed(feedID int64) {
	g.lock.Lock()
	defer g.lock.Unlock()
	for k := range g.last {
		if k.FeedID == feedID {
			delete(g.last, k)
		}
	}
}

// Sweep discards cooldowns that have already elapsed, and returns the number discarded.
// Dropping an elapsed entry doesn't change the outcome of any future ShouldEmit.
func (g *Gate) Sweep(now time.Time) int {
	g.lock.Lock()
	defer g.lock.Unlock()
	n := 0
	for k, t := range g.last {
		if now.Sub(t) >= g.cooldown {
			delete(g.last, k)
			n++
		}
	}
	return n
}

func (g *Gate) Len() int {
	g.lock.Lock()
	defer g.lock.Unlock()
	return len(g.last)
}
