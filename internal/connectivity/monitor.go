package connectivity

import (
	"context"
	"sync"
	"time"

	"pos-service/internal/events"

	"go.uber.org/zap"
)

// Drainer is the sync queue as seen by the monitor
type Drainer interface {
	TriggerDrain()
	LastSyncTime() *time.Time
}

// Prober checks whether the backend is reachable
type Prober interface {
	Ping(ctx context.Context) error
}

// Status is what the UI shows in its connection indicator
type Status struct {
	Online         bool       `json:"online"`
	ChangedAt      time.Time  `json:"changedAt"`
	LastSyncAt     *time.Time `json:"lastSyncAt,omitempty"`
	LastCheckAt    *time.Time `json:"lastCheckAt,omitempty"`
	LastCheckError string     `json:"lastCheckError,omitempty"`
}

// Monitor holds the online/offline state. Going online starts one drain of
// the sync queue; going offline only changes the status.
type Monitor struct {
	mu           sync.RWMutex
	online       bool
	changedAt    time.Time
	lastCheck    *time.Time
	lastCheckErr string

	drainer   Drainer
	probe     Prober
	publisher events.EventPublisher
	logger    *zap.Logger
}

// NewMonitor creates a monitor in the given state. probe may be nil.
func NewMonitor(initial bool, probe Prober, publisher events.EventPublisher, logger *zap.Logger) *Monitor {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		online:    initial,
		changedAt: time.Now().UTC(),
		probe:     probe,
		publisher: publisher,
		logger:    logger,
	}
}

// SetDrainer attaches the queue once it exists; the queue itself needs the
// monitor to be built first.
func (m *Monitor) SetDrainer(d Drainer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drainer = d
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline records a connectivity report from the host and reports whether
// the state changed
func (m *Monitor) SetOnline(ctx context.Context, online bool) bool {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	m.changedAt = time.Now().UTC()
	changedAt := m.changedAt
	drainer := m.drainer
	m.mu.Unlock()

	if online {
		m.logger.Info("🌐 Connection restored")
	} else {
		m.logger.Warn("📴 Working offline")
	}

	if err := m.publisher.Publish(ctx, events.ConnectivityChanged{Online: online, OccurredAt: changedAt}); err != nil {
		m.logger.Warn("Failed to publish connectivity event", zap.Error(err))
	}
	if online && drainer != nil {
		drainer.TriggerDrain()
	}
	return true
}

// Check probes the backend and sets the state from the result. Without a
// probe it returns the current state.
func (m *Monitor) Check(ctx context.Context) (bool, error) {
	if m.probe == nil {
		return m.IsOnline(), nil
	}

	err := m.probe.Ping(ctx)
	now := time.Now().UTC()

	m.mu.Lock()
	m.lastCheck = &now
	m.lastCheckErr = ""
	if err != nil {
		m.lastCheckErr = err.Error()
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Debug("Backend probe failed", zap.Error(err))
	}
	m.SetOnline(ctx, err == nil)
	return err == nil, err
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	status := Status{
		Online:         m.online,
		ChangedAt:      m.changedAt,
		LastCheckError: m.lastCheckErr,
	}
	if m.lastCheck != nil {
		t := *m.lastCheck
		status.LastCheckAt = &t
	}
	drainer := m.drainer
	m.mu.RUnlock()

	if drainer != nil {
		status.LastSyncAt = drainer.LastSyncTime()
	}
	return status
}
