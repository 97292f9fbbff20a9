// Package websocket serves the /ws echo endpoint. Every connection gets a
// Session: an actor that serializes inbound frames onto an outbound queue,
// and a Forwarder that is the only writer of data frames to the socket.
package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"echo-server/internal/infrastructure/concurrency"
	"echo-server/internal/infrastructure/observability"
	apperrors "echo-server/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// KeyPrefix is prepended to the peer address to form a session key.
const KeyPrefix = "echo-session-"

// Frame is one WebSocket data message.
type Frame struct {
	Type int
	Data []byte
}

// State is the lifecycle position of a session.
type State int32

const (
	StateActive State = iota
	StateClosing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session is the per-connection echo actor and its outbound queue.
type Session struct {
	key       string
	actor     *concurrency.Actor[Frame]
	outbound  *concurrency.Queue[Frame]
	state     atomic.Int32
	overflow  atomic.Bool
	createdAt time.Time

	terminateOnce sync.Once
}

// Key returns the registry key of the session.
func (s *Session) Key() string {
	return s.key
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Outbound returns the queue the forwarder consumes.
func (s *Session) Outbound() *concurrency.Queue[Frame] {
	return s.outbound
}

// Overflowed reports whether the outbound queue was closed because the
// client could not keep up.
func (s *Session) Overflowed() bool {
	return s.overflow.Load()
}

// MarkClosing moves an active session to closing. It reports whether the
// transition happened.
func (s *Session) MarkClosing() bool {
	return s.state.CompareAndSwap(int32(StateActive), int32(StateClosing))
}

// handle is the actor handler: frames are echoed verbatim.
func (s *Session) handle(ctx context.Context, f Frame) error {
	err := s.outbound.Push(ctx, f)
	if errors.Is(err, concurrency.ErrQueueOverflow) {
		s.overflow.Store(true)
		s.MarkClosing()
	}
	return err
}

// ManagerConfig configures the sessions a Manager creates.
type ManagerConfig struct {
	// OutboundQueueSize bounds each outbound queue; 0 is unbounded.
	OutboundQueueSize int
	OverflowPolicy    concurrency.OverflowPolicy
	Shards            int
}

// Manager creates, addresses and terminates sessions.
type Manager struct {
	system  *concurrency.System[Frame]
	config  ManagerConfig
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewManager creates a session manager. metrics may be nil.
func NewManager(config ManagerConfig, metrics *observability.Collector, logger *zap.Logger) *Manager {
	logger = logger.With(zap.String("component", "websocket"))
	return &Manager{
		system:  concurrency.NewSystem[Frame]("websocket", config.Shards, logger),
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

// Create registers a session under key. An empty or already registered key
// is replaced by a generated one.
func (m *Manager) Create(key string) (*Session, error) {
	if key == "" {
		key = uuid.NewString()
	}

	s, err := m.spawn(key)
	if errors.Is(err, concurrency.ErrActorExists) {
		fallback := uuid.NewString()
		m.logger.Warn("Session key already registered, using generated key",
			zap.String("key", key),
			zap.String("fallback", fallback),
		)
		s, err = m.spawn(fallback)
	}
	if err != nil {
		return nil, apperrors.NewInternal("create session", err)
	}

	if m.metrics != nil {
		m.metrics.SessionsActive.Inc()
		m.metrics.SessionsTotal.Inc()
	}
	m.logger.Debug("Session created", zap.String("session", s.key))
	return s, nil
}

func (m *Manager) spawn(key string) (*Session, error) {
	s := &Session{
		key:       key,
		outbound:  concurrency.NewQueue[Frame](m.config.OutboundQueueSize, m.config.OverflowPolicy),
		createdAt: time.Now(),
	}

	actor, err := m.system.Spawn(key, s.handle)
	if err != nil {
		return nil, err
	}
	s.actor = actor

	// The actor is the only producer: once it exits nothing more can arrive.
	go func() {
		<-actor.Done()
		s.outbound.Close()
	}()
	return s, nil
}

// Dispatch hands f to the session's mailbox without waiting for it to be
// echoed.
func (m *Manager) Dispatch(s *Session, f Frame) error {
	if s.State() != StateActive {
		return apperrors.NewSessionNotFound(s.key)
	}
	if current, ok := m.system.Lookup(s.key); !ok || current != s.actor {
		return apperrors.NewSessionNotFound(s.key)
	}
	if err := s.actor.Tell(f); err != nil {
		return apperrors.NewSessionNotFound(s.key)
	}
	return nil
}

// Terminate unregisters the session, lets its mailbox drain and closes the
// outbound queue. It is idempotent.
func (m *Manager) Terminate(s *Session) {
	s.terminateOnce.Do(func() {
		s.MarkClosing()
		m.system.Remove(s.actor)
		<-s.actor.Done()
		s.outbound.Close()
		s.state.Store(int32(StateTerminated))

		if m.metrics != nil {
			m.metrics.SessionsActive.Dec()
		}
		m.logger.Debug("Session terminated",
			zap.String("session", s.key),
			zap.Duration("lifetime", time.Since(s.createdAt)),
			zap.Bool("overflow", s.Overflowed()),
		)
	})
}

// Len returns the number of registered sessions.
func (m *Manager) Len() int {
	return m.system.Len()
}

// Shutdown stops every session mailbox. Connection handlers then observe
// their forwarders finishing and terminate their sessions.
func (m *Manager) Shutdown() {
	m.system.Shutdown()
}
