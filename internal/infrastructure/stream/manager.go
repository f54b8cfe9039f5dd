package stream

import (
	"sync"
	"time"

	"campuspulse/internal/core/domain"
	"campuspulse/internal/core/ports"
	"campuspulse/pkg/utils"

	"go.uber.org/zap"
)

type streamMetrics interface {
	SessionStarted(kind string)
	SessionEnded(kind string)
	FramePushed(kind string)
	FrameSuppressed(kind string)
}

// Options tunes session pacing.
type Options struct {
	// MinUpdateInterval is the floor every requested interval is clamped
	// to. This is the only place a client value is silently adjusted.
	MinUpdateInterval     time.Duration
	DefaultUpdateInterval time.Duration
	HeartbeatInterval     time.Duration
	EventBufferSize       int
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		MinUpdateInterval:     5 * time.Second,
		DefaultUpdateInterval: 30 * time.Second,
		HeartbeatInterval:     30 * time.Second,
		EventBufferSize:       32,
	}
}

// Manager owns all live streaming sessions and feeds them domain events from
// the change notifier. It implements ports.EventSink.
type Manager struct {
	engine  ports.AggregationService
	repo    ports.IssueRepository
	opts    Options
	metrics streamMetrics
	logger  *zap.SugaredLogger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. metrics may be nil.
func NewManager(engine ports.AggregationService, repo ports.IssueRepository, opts Options, metrics streamMetrics, logger *zap.SugaredLogger) *Manager {
	if opts.EventBufferSize <= 0 {
		opts.EventBufferSize = DefaultOptions().EventBufferSize
	}
	return &Manager{
		engine:   engine,
		repo:     repo,
		opts:     opts,
		metrics:  metrics,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// OpenHeatmapSession registers a session streaming aggregated frames.
func (m *Manager) OpenHeatmapSession(filter *domain.IssueFilter, cfg domain.AggregationConfig, interval time.Duration) *Session {
	return m.open(KindHeatmap, filter, cfg, interval)
}

// OpenIssueSession registers a session streaming raw issue snapshots.
func (m *Manager) OpenIssueSession(filter *domain.IssueFilter, interval time.Duration) *Session {
	return m.open(KindIssues, filter, domain.AggregationConfig{}, interval)
}

func (m *Manager) open(kind SessionKind, filter *domain.IssueFilter, cfg domain.AggregationConfig, interval time.Duration) *Session {
	s := &Session{
		id:       utils.GenerateSessionID(),
		kind:     kind,
		filter:   filter,
		cfg:      cfg,
		interval: m.clampInterval(interval),
		manager:  m,
		events:   make(chan *domain.EventEnvelope, m.opts.EventBufferSize),
		done:     make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SessionStarted(string(kind))
	}
	m.logger.Infow("stream session opened",
		"session_id", s.id,
		"kind", kind,
		"interval", s.interval,
	)
	return s
}

// clampInterval applies the default and the configured floor.
func (m *Manager) clampInterval(interval time.Duration) time.Duration {
	if interval <= 0 {
		return m.opts.DefaultUpdateInterval
	}
	if interval < m.opts.MinUpdateInterval {
		return m.opts.MinUpdateInterval
	}
	return interval
}

// CloseSession closes a session by id. Unknown ids are a no-op.
func (m *Manager) CloseSession(id string) {
	m.mu.RLock()
	s := m.sessions[id]
	m.mu.RUnlock()
	if s != nil {
		s.Close()
	}
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	_, tracked := m.sessions[s.id]
	delete(m.sessions, s.id)
	m.mu.Unlock()

	if tracked {
		if m.metrics != nil {
			m.metrics.SessionEnded(string(s.kind))
		}
		m.logger.Infow("stream session closed", "session_id", s.id)
	}
}

// Notify implements ports.EventSink: it offers the event to every session
// without ever blocking the notifier. A session with a full event buffer
// misses the nudge and catches up on its next tick.
func (m *Manager) Notify(env *domain.EventEnvelope) {
	m.mu.RLock()
	targets := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		targets = append(targets, s)
	}
	m.mu.RUnlock()

	for _, s := range targets {
		if !s.wants(env) {
			continue
		}
		select {
		case s.events <- env:
		default:
		}
	}
}

// ManagerStats is a snapshot of live sessions for the ops endpoint.
type ManagerStats struct {
	ActiveSessions int            `json:"active_sessions"`
	ByKind         map[string]int `json:"by_kind"`
}

// Stats returns current session counts.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := ManagerStats{
		ActiveSessions: len(m.sessions),
		ByKind:         make(map[string]int),
	}
	for _, s := range m.sessions {
		stats.ByKind[string(s.kind)]++
	}
	return stats
}

// Close shuts down every live session.
func (m *Manager) Close() {
	m.mu.RLock()
	targets := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		targets = append(targets, s)
	}
	m.mu.RUnlock()

	for _, s := range targets {
		s.Close()
	}
}
