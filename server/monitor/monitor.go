// Package monitor runs one worker per feed. Each worker processes the most recent frame
// submitted for its feed, at a fixed interval, and distributes the results.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/perimeter/server/door"
	"github.com/cyclopcam/perimeter/server/engine"
	"github.com/cyclopcam/perimeter/server/zones"
	"github.com/prometheus/client_golang/prometheus"
)

// ConfigSource supplies the configuration snapshot that accompanies every frame
type ConfigSource interface {
	ZonesForFeed(feedID int64) ([]zones.Zone, error)
	DoorAccessForFeed(feedID int64) (*door.AccessConfig, error)
}

// AlertSink receives every alert that makes it through the dedup gate
type AlertSink interface {
	Escalate(alert *engine.Alert) error
}

type Monitor struct {
	Log      logs.Log
	Engine   *engine.Engine
	Registry *prometheus.Registry

	config   ConfigSource
	sink     AlertSink // May be nil
	interval time.Duration
	metrics  *metrics

	feedsLock sync.Mutex
	feeds     map[int64]*feedWorker
	closed    bool

	watchersLock  sync.RWMutex
	watchers      map[int64][]chan *engine.FrameResult
	alertWatchers []chan *engine.Alert

	lastConfigErrLock sync.Mutex
	lastConfigErrAt   time.Time
}

type feedWorker struct {
	feedID int64

	// Serializes frames on this feed, whether they come from the worker or from Analyze()
	processLock sync.Mutex

	pendingLock sync.Mutex
	pending     *engine.FrameInput // Latest submitted frame, not yet processed

	stop    chan struct{}
	stopped chan struct{}
}

// Create a new monitor. sink may be nil.
func NewMonitor(logger logs.Log, eng *engine.Engine, config ConfigSource, sink AlertSink, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	reg := prometheus.NewRegistry()
	return &Monitor{
		Log:      logger,
		Engine:   eng,
		Registry: reg,
		config:   config,
		sink:     sink,
		interval: interval,
		metrics:  newMetrics(reg),
		feeds:    map[int64]*feedWorker{},
		watchers: map[int64][]chan *engine.FrameResult{},
	}
}

// Close stops all feed workers
func (m *Monitor) Close() {
	m.Log.Infof("Monitor shutting down")
	m.feedsLock.Lock()
	m.closed = true
	workers := m.feeds
	m.feeds = map[int64]*feedWorker{}
	m.feedsLock.Unlock()

	for _, w := range workers {
		close(w.stop)
	}
	for _, w := range workers {
		<-w.stopped
	}
	m.metrics.feeds.Set(0)
	m.Log.Infof("Monitor is closed")
}

// Feeds returns the IDs of the feeds that have a running worker
func (m *Monitor) Feeds() []int64 {
	m.feedsLock.Lock()
	defer m.feedsLock.Unlock()
	ids := make([]int64, 0, len(m.feeds))
	for id := range m.feeds {
		ids = append(ids, id)
	}
	return ids
}

// Return the worker for the feed, starting it if necessary
func (m *Monitor) getWorker(feedID int64) (*feedWorker, error) {
	m.feedsLock.Lock()
	defer m.feedsLock.Unlock()
	if m.closed {
		return nil, fmt.Errorf("Monitor is closed")
	}
	w := m.feeds[feedID]
	if w == nil {
		w = &feedWorker{
			feedID:  feedID,
			stop:    make(chan struct{}),
			stopped: make(chan struct{}),
		}
		m.feeds[feedID] = w
		m.metrics.feeds.Set(float64(len(m.feeds)))
		m.Log.Infof("Starting worker for feed %v", feedID)
		go m.workerLoop(w)
	}
	return w, nil
}

// SubmitFrame queues a frame for asynchronous processing. If the feed worker has not yet
// processed the previous frame, then the previous frame is discarded.
func (m *Monitor) SubmitFrame(in *engine.FrameInput) error {
	w, err := m.getWorker(in.FeedID)
	if err != nil {
		return err
	}
	w.pendingLock.Lock()
	if w.pending != nil {
		m.metrics.framesDropped.WithLabelValues(feedLabel(in.FeedID)).Inc()
	}
	w.pending = in
	w.pendingLock.Unlock()
	return nil
}

// Analyze processes a frame immediately, and returns the result
func (m *Monitor) Analyze(in *engine.FrameInput) (*engine.FrameResult, error) {
	w, err := m.getWorker(in.FeedID)
	if err != nil {
		return nil, err
	}
	return m.process(w, in), nil
}

// RemoveFeed stops the feed's worker, and forgets all of its tracking state.
// Returns false if the feed had no worker.
func (m *Monitor) RemoveFeed(feedID int64) bool {
	m.feedsLock.Lock()
	w := m.feeds[feedID]
	delete(m.feeds, feedID)
	m.metrics.feeds.Set(float64(len(m.feeds)))
	m.feedsLock.Unlock()

	if w != nil {
		close(w.stop)
		<-w.stopped
	}
	m.Engine.ForgetFeed(feedID)
	m.metrics.forgetFeed(feedID)
	return w != nil
}

func (m *Monitor) workerLoop(w *feedWorker) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	defer close(w.stopped)
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.pendingLock.Lock()
			in := w.pending
			w.pending = nil
			w.pendingLock.Unlock()
			if in != nil {
				m.process(w, in)
			}
		}
	}
}

func (m *Monitor) process(w *feedWorker, in *engine.FrameInput) *engine.FrameResult {
	w.processLock.Lock()
	defer w.processLock.Unlock()

	start := time.Now()
	if in.Time.IsZero() {
		in.Time = start
	}
	m.attachConfig(in)

	result := m.Engine.ProcessFrame(in)

	lbl := feedLabel(in.FeedID)
	m.metrics.processSeconds.Observe(time.Since(start).Seconds())
	m.metrics.framesProcessed.WithLabelValues(lbl).Inc()
	m.metrics.activeTracks.WithLabelValues(lbl).Set(float64(m.Engine.Tracks.NumTracks(in.FeedID)))

	for i := range result.Alerts {
		alert := &result.Alerts[i]
		m.metrics.alerts.WithLabelValues(string(alert.Type)).Inc()
		m.Log.Infof("Alert on feed %v: %v", alert.FeedID, alert.Message)
		if m.sink != nil {
			if err := m.sink.Escalate(alert); err != nil {
				m.Log.Errorf("Failed to escalate alert on feed %v: %v", alert.FeedID, err)
			}
		}
	}

	m.sendToWatchers(result)
	return result
}

// Fill in the zones and door access of a frame, unless the caller supplied them.
// A config read failure leaves the frame without rules, so tracking continues.
func (m *Monitor) attachConfig(in *engine.FrameInput) {
	if m.config == nil {
		return
	}
	var err error
	if in.Zones == nil {
		if in.Zones, err = m.config.ZonesForFeed(in.FeedID); err != nil {
			m.logConfigError(err)
		}
	}
	if in.DoorAccess == nil {
		if in.DoorAccess, err = m.config.DoorAccessForFeed(in.FeedID); err != nil {
			m.logConfigError(err)
		}
	}
}

func (m *Monitor) logConfigError(err error) {
	m.lastConfigErrLock.Lock()
	defer m.lastConfigErrLock.Unlock()
	if time.Since(m.lastConfigErrAt) > 15*time.Second {
		m.Log.Errorf("Failed to read feed configuration: %v", err)
		m.lastConfigErrAt = time.Now()
	}
}
