package monitor

import (
	"github.com/cyclopcam/perimeter/pkg/gen"
	"github.com/cyclopcam/perimeter/server/engine"
)

// SYNC-WATCHER-CHANNEL-SIZE
const WatcherChannelSize = 100

// Register to receive frame results for a specific feed.
func (m *Monitor) AddWatcher(feedID int64) chan *engine.FrameResult {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	ch := make(chan *engine.FrameResult, WatcherChannelSize)
	m.watchers[feedID] = append(m.watchers[feedID], ch)
	return ch
}

// Unregister from frame results for a specific feed
func (m *Monitor) RemoveWatcher(feedID int64, ch chan *engine.FrameResult) {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	for i, w := range m.watchers[feedID] {
		if w == ch {
			m.watchers[feedID] = gen.DeleteFromSliceUnordered(m.watchers[feedID], i)
			if len(m.watchers[feedID]) == 0 {
				delete(m.watchers, feedID)
			}
			return
		}
	}
	m.Log.Warnf("Monitor.RemoveWatcher failed to find channel for feed %v", feedID)
}

// Add a watcher that is interested in the alerts of all feeds
func (m *Monitor) AddAlertWatcher() chan *engine.Alert {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	ch := make(chan *engine.Alert, WatcherChannelSize)
	m.alertWatchers = append(m.alertWatchers, ch)
	return ch
}

// Unregister an alert watcher
func (m *Monitor) RemoveAlertWatcher(ch chan *engine.Alert) {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	for i, wch := range m.alertWatchers {
		if wch == ch {
			m.alertWatchers = gen.DeleteFromSliceUnordered(m.alertWatchers, i)
			return
		}
	}
	m.Log.Warnf("Monitor.RemoveAlertWatcher failed to find channel")
}

// A slow watcher loses results rather than stalling the feed worker, and every other watcher with it.
func (m *Monitor) sendToWatchers(result *engine.FrameResult) {
	m.watchersLock.RLock()
	defer m.watchersLock.RUnlock()
	for _, ch := range m.watchers[result.FeedID] {
		if !gen.SendUnlessBacklogged(ch, result) {
			m.Log.Warnf("Watcher on feed %v is falling behind. Dropping results.", result.FeedID)
		}
	}
	for _, alert := range result.Alerts {
		for _, ch := range m.alertWatchers {
			if !gen.SendUnlessBacklogged(ch, &alert) {
				m.Log.Warnf("Alert watcher is falling behind. Dropping alerts.")
			}
		}
	}
}
