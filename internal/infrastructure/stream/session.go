package stream

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"

	"campuspulse/internal/core/domain"
)

// SessionKind selects what a session streams.
type SessionKind string

const (
	KindHeatmap SessionKind = "heatmap"
	KindIssues  SessionKind = "issues"
)

// Frame event types on the wire. Snapshots are "initial" then "update";
// issue-list sessions additionally relay per-issue deltas.
const (
	frameInitial   = "initial"
	frameUpdate    = "update"
	frameHeartbeat = "heartbeat"
	frameCreated   = "created"
	frameUpdated   = "updated"
	frameDeleted   = "deleted"
)

// Frame is one server-sent event.
type Frame struct {
	Event string
	Data  interface{}
}

// FrameSender delivers frames to the client. The SSE handler adapts gin's
// response writer; tests record frames in memory.
type FrameSender interface {
	Send(frame Frame) error
}

type heartbeatData struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one long-lived unidirectional stream. It recomputes its payload
// on a fixed interval, pushes only when the payload actually changed, and
// emits heartbeats so the client can tell a quiet stream from a dead one.
type Session struct {
	id       string
	kind     SessionKind
	filter   *domain.IssueFilter
	cfg      domain.AggregationConfig
	interval time.Duration
	manager  *Manager

	events chan *domain.EventEnvelope
	done   chan struct{}

	// Both are touched only from the Run goroutine.
	lastFingerprint uint64
	sentSnapshot    bool

	closeOnce sync.Once
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Interval returns the effective update interval after clamping.
func (s *Session) Interval() time.Duration { return s.interval }

// wants reports whether a domain event concerns this session's scope.
func (s *Session) wants(env *domain.EventEnvelope) bool {
	if s.filter != nil {
		if s.filter.OrganizationID != "" && env.OrganizationID != s.filter.OrganizationID {
			return false
		}
		if s.filter.CampusID != "" && env.CampusID != "" && env.CampusID != s.filter.CampusID {
			return false
		}
	}
	if s.kind == KindHeatmap {
		return env.HeatmapRelevant()
	}
	return env.Type != domain.EventHeatmapInvalidated && env.Type != domain.EventStatsChanged
}

// Run drives the session until the client disconnects (ctx), the session is
// closed, or a send fails. The first frame goes out immediately.
func (s *Session) Run(ctx context.Context, out FrameSender) error {
	defer s.Close()

	if err := s.push(ctx, out); err != nil {
		return err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	heartbeat := time.NewTicker(s.manager.opts.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.done:
			return nil

		case env := <-s.events:
			// Issue-list sessions relay each change as a typed delta
			// frame; the next snapshot remains the source of truth.
			if s.kind == KindIssues {
				if err := s.sendDelta(out, env); err != nil {
					return err
				}
				continue
			}
			// Critical events refresh out of band; everything else
			// waits for the next tick.
			if !env.Urgent() {
				continue
			}
			if err := s.push(ctx, out); err != nil {
				return err
			}
			ticker.Reset(s.interval)

		case <-ticker.C:
			if err := s.push(ctx, out); err != nil {
				return err
			}

		case <-heartbeat.C:
			// Heartbeats flow regardless of data activity.
			if err := out.Send(Frame{
				Event: frameHeartbeat,
				Data:  heartbeatData{SessionID: s.id, Timestamp: time.Now()},
			}); err != nil {
				return err
			}
		}
	}
}

// push recomputes the snapshot and sends it when it differs from the last
// delivered one. The first delivered snapshot is typed "initial", every later
// one "update". Transient compute errors are logged and the tick skipped so
// one bad query never kills the stream.
func (s *Session) push(ctx context.Context, out FrameSender) error {
	payload, fpSource, err := s.compute(ctx)
	if err != nil {
		s.manager.logger.Warnw("stream payload compute failed, skipping tick",
			"session_id", s.id,
			"kind", s.kind,
			"error", err,
		)
		return nil
	}

	fp, err := fingerprint(fpSource)
	if err != nil {
		s.manager.logger.Warnw("stream payload fingerprint failed", "session_id", s.id, "error", err)
		return nil
	}
	if s.sentSnapshot && fp == s.lastFingerprint {
		if s.manager.metrics != nil {
			s.manager.metrics.FrameSuppressed(string(s.kind))
		}
		return nil
	}
	s.lastFingerprint = fp

	event := frameUpdate
	if !s.sentSnapshot {
		event = frameInitial
	}
	if err := out.Send(Frame{Event: event, Data: payload}); err != nil {
		return err
	}
	s.sentSnapshot = true
	if s.manager.metrics != nil {
		s.manager.metrics.FramePushed(string(s.kind))
	}
	return nil
}

// sendDelta relays one lifecycle event as a typed frame. Resolutions and
// assignments surface as "updated" so the frame-type set stays closed.
func (s *Session) sendDelta(out FrameSender, env *domain.EventEnvelope) error {
	event := frameUpdated
	switch env.Type {
	case domain.EventIssueCreated:
		event = frameCreated
	case domain.EventIssueDeleted:
		event = frameDeleted
	}
	if err := out.Send(Frame{Event: event, Data: env.Payload}); err != nil {
		return err
	}
	if s.manager.metrics != nil {
		s.manager.metrics.FramePushed(string(s.kind))
	}
	return nil
}

// compute returns the frame payload plus the value to fingerprint. For
// heatmaps the metadata's GeneratedAt changes on every recompute, so only
// the points participate in duplicate suppression.
func (s *Session) compute(ctx context.Context) (interface{}, interface{}, error) {
	switch s.kind {
	case KindHeatmap:
		frame, err := s.manager.engine.AggregateFiltered(ctx, s.filter, s.cfg)
		if err != nil {
			return nil, nil, err
		}
		return frame, frame.Points, nil
	default:
		issues, err := s.manager.repo.Query(ctx, s.filter)
		if err != nil {
			return nil, nil, err
		}
		return issues, issues, nil
	}
}

func fingerprint(payload interface{}) (uint64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64(), nil
}

// Close terminates the session. Safe to call any number of times and from
// any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.manager.remove(s)
	})
}
