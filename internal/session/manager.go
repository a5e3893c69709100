package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/interfaces"
	"github.com/ternarybob/auspex/internal/pipeline"
)

// Session is one dashboard visitor's isolated pipeline. Two browser tabs
// with different session IDs never share machines, slots or chat history.
// Events is the session-scoped bus the supervisor publishes on; the
// WebSocket layer subscribes to it per connection.
type Session struct {
	ID         string
	Supervisor *pipeline.Supervisor
	Events     interfaces.EventService
	CreatedAt  time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen returns the time of the session's most recent request.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Manager owns the session table and the janitor that evicts idle
// sessions on a cron schedule.
// Factory builds a fresh supervisor and its session-scoped event bus.
type Factory func() (*pipeline.Supervisor, interfaces.EventService)

type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	factory     Factory
	events      interfaces.EventService
	logger      arbor.ILogger
	idleTTL     time.Duration
	schedule    string
	maxSessions int

	cron *cron.Cron
	now  func() time.Time
}

// NewManager creates a session manager. factory builds a fresh supervisor
// per session; events is the application bus for session lifecycle.
func NewManager(
	cfg *common.SessionsConfig,
	factory Factory,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Manager {
	if logger == nil {
		logger = common.GetLogger()
	}

	idleTTL := 2 * time.Hour
	if d, err := time.ParseDuration(cfg.IdleTTL); err == nil && d > 0 {
		idleTTL = d
	}
	schedule := cfg.JanitorSchedule
	if schedule == "" {
		schedule = "*/10 * * * *"
	}
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 100
	}

	return &Manager{
		sessions:    make(map[string]*Session),
		factory:     factory,
		events:      events,
		logger:      logger,
		idleTTL:     idleTTL,
		schedule:    schedule,
		maxSessions: maxSessions,
		now:         time.Now,
	}
}

// Start launches the eviction janitor.
func (m *Manager) Start() error {
	m.cron = cron.New()
	if _, err := m.cron.AddFunc(m.schedule, m.EvictIdle); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", m.schedule, err)
	}
	m.cron.Start()

	m.logger.Info().
		Str("schedule", m.schedule).
		Str("idle_ttl", m.idleTTL.String()).
		Int("max_sessions", m.maxSessions).
		Msg("Session janitor started")
	return nil
}

// Stop halts the janitor. Running eviction passes finish first.
func (m *Manager) Stop() {
	if m.cron != nil {
		ctx := m.cron.Stop()
		<-ctx.Done()
	}
}

// Create registers a new session with a fresh supervisor.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxSessions {
		return nil, fmt.Errorf("session limit reached (%d)", m.maxSessions)
	}

	now := m.now()
	sup, bus := m.factory()
	sess := &Session{
		ID:         uuid.NewString(),
		Supervisor: sup,
		Events:     bus,
		CreatedAt:  now,
		lastSeen:   now,
	}
	m.sessions[sess.ID] = sess

	m.logger.Info().
		Str("session_id", sess.ID).
		Int("session_count", len(m.sessions)).
		Msg("Session created")
	m.publish(interfaces.EventSessionCreated, sess.ID)
	return sess, nil
}

// Get looks up a session and marks it active.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		sess.touch(m.now())
	}
	return sess, ok
}

// GetOrCreate returns the named session, or a new one when the ID is
// unknown or empty.
func (m *Manager) GetOrCreate(id string) (*Session, error) {
	if id != "" {
		if sess, ok := m.Get(id); ok {
			return sess, nil
		}
	}
	return m.Create()
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EvictIdle removes every session idle longer than the TTL.
func (m *Manager) EvictIdle() {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var evicted []string
	for id, sess := range m.sessions {
		if sess.LastSeen().Before(cutoff) {
			delete(m.sessions, id)
			evicted = append(evicted, id)
		}
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	for _, id := range evicted {
		m.logger.Info().Str("session_id", id).Msg("Session evicted")
		m.publish(interfaces.EventSessionExpired, id)
	}
	if len(evicted) > 0 {
		m.logger.Info().
			Int("evicted", len(evicted)).
			Int("remaining", remaining).
			Msg("Session eviction pass complete")
	}
}

func (m *Manager) publish(t interfaces.EventType, sessionID string) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(context.Background(), interfaces.Event{Type: t, Payload: sessionID}); err != nil {
		m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Session event publish failed")
	}
}
