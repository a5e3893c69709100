package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/interfaces"
	"github.com/ternarybob/auspex/internal/session"
)

// streamedEvents are the session-bus events pushed to dashboard clients.
var streamedEvents = []interfaces.EventType{
	interfaces.EventPipelineTransition,
	interfaces.EventSlotUpdated,
	interfaces.EventChatMessage,
}

// wsMessage is the envelope every pushed frame uses.
type wsMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// sessionClients tracks one session's connections and its event-type
// throttlers. The bus subscription is made once per session and fans out
// to however many tabs the visitor has open.
type sessionClients struct {
	mu         sync.Mutex
	conns      map[*websocket.Conn]*sync.Mutex
	subscribed bool
	subs       map[interfaces.EventType]string
	throttlers map[interfaces.EventType]*rate.Limiter
}

type WebSocketHandler struct {
	logger           arbor.ILogger
	sessions         *session.Manager
	upgrader         websocket.Upgrader
	allowedEvents    map[string]bool
	throttleConfig   map[interfaces.EventType]time.Duration
	serverInstanceID string

	mu      sync.Mutex
	clients map[string]*sessionClients
}

// NewWebSocketHandler creates the dashboard state-streaming handler.
func NewWebSocketHandler(sessions *session.Manager, config *common.WebSocketConfig, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:   logger,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local development
			},
		},
		allowedEvents:    make(map[string]bool),
		throttleConfig:   make(map[interfaces.EventType]time.Duration),
		serverInstanceID: uuid.New().String(),
		clients:          make(map[string]*sessionClients),
	}

	if config != nil {
		if config.ReadBufferSize > 0 {
			h.upgrader.ReadBufferSize = config.ReadBufferSize
		}
		if config.WriteBufferSize > 0 {
			h.upgrader.WriteBufferSize = config.WriteBufferSize
		}
		// Empty whitelist allows all events.
		for _, eventType := range config.AllowedEvents {
			h.allowedEvents[eventType] = true
		}
		for eventType, intervalStr := range config.ThrottleIntervals {
			duration, err := time.ParseDuration(intervalStr)
			if err != nil {
				logger.Warn().
					Err(err).
					Str("event_type", eventType).
					Str("interval", intervalStr).
					Msg("Invalid throttle interval - throttling disabled for event")
				continue
			}
			h.throttleConfig[interfaces.EventType(eventType)] = duration
		}
	}

	logger.Info().
		Str("server_instance_id", h.serverInstanceID).
		Msg("WebSocket handler initialized")
	return h
}

// HandleWebSocket handles GET /ws?session={id}
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.register(sess, conn)
	h.logger.Info().
		Str("session_id", sess.ID).
		Str("remote", r.RemoteAddr).
		Msg("WebSocket client connected")

	// Clients use the instance ID to detect server restarts, and the
	// snapshot to render without waiting for the first transition.
	h.sendTo(conn, h.connMutex(sess.ID, conn), wsMessage{
		Type:      "connected",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload: map[string]interface{}{
			"server_instance_id": h.serverInstanceID,
			"session_id":         sess.ID,
			"snapshot":           sess.Supervisor.Snapshot(),
		},
	})

	// Read loop: the dashboard sends nothing meaningful; this just
	// detects the close.
	go func() {
		defer h.unregister(sess.ID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *WebSocketHandler) register(sess *session.Session, conn *websocket.Conn) {
	h.mu.Lock()
	sc, ok := h.clients[sess.ID]
	if !ok {
		sc = &sessionClients{
			conns:      make(map[*websocket.Conn]*sync.Mutex),
			throttlers: make(map[interfaces.EventType]*rate.Limiter),
		}
		for eventType, interval := range h.throttleConfig {
			sc.throttlers[eventType] = rate.NewLimiter(rate.Every(interval), 1)
		}
		h.clients[sess.ID] = sc
	}
	h.mu.Unlock()

	sc.mu.Lock()
	sc.conns[conn] = &sync.Mutex{}
	needSubscribe := !sc.subscribed
	sc.subscribed = true
	sc.mu.Unlock()

	if needSubscribe && sess.Events != nil {
		subs := make(map[interfaces.EventType]string, len(streamedEvents))
		for _, eventType := range streamedEvents {
			et := eventType
			id, err := sess.Events.Subscribe(et, func(ctx context.Context, event interfaces.Event) error {
				h.broadcast(sess.ID, event)
				return nil
			})
			if err != nil {
				h.logger.Warn().
					Err(err).
					Str("session_id", sess.ID).
					Str("event_type", string(et)).
					Msg("WebSocket event subscription failed")
				continue
			}
			subs[et] = id
		}
		sc.mu.Lock()
		sc.subs = subs
		sc.mu.Unlock()
	}
}

func (h *WebSocketHandler) unregister(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	sc, ok := h.clients[sessionID]
	h.mu.Unlock()
	if !ok {
		return
	}

	sc.mu.Lock()
	delete(sc.conns, conn)
	remaining := len(sc.conns)
	var subs map[interfaces.EventType]string
	if remaining == 0 {
		subs = sc.subs
		sc.subs = nil
		sc.subscribed = false
	}
	sc.mu.Unlock()

	if len(subs) > 0 {
		if sess, ok := h.sessions.Get(sessionID); ok && sess.Events != nil {
			for et, id := range subs {
				_ = sess.Events.Unsubscribe(et, id)
			}
		}
	}

	conn.Close()
	h.logger.Info().
		Str("session_id", sessionID).
		Int("remaining", remaining).
		Msg("WebSocket client disconnected")
}

func (h *WebSocketHandler) connMutex(sessionID string, conn *websocket.Conn) *sync.Mutex {
	h.mu.Lock()
	sc, ok := h.clients[sessionID]
	h.mu.Unlock()
	if !ok {
		return &sync.Mutex{}
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if mu, found := sc.conns[conn]; found {
		return mu
	}
	return &sync.Mutex{}
}

// broadcast fans one session-bus event out to the session's connections.
func (h *WebSocketHandler) broadcast(sessionID string, event interfaces.Event) {
	if len(h.allowedEvents) > 0 && !h.allowedEvents[string(event.Type)] {
		return
	}

	h.mu.Lock()
	sc, ok := h.clients[sessionID]
	h.mu.Unlock()
	if !ok {
		return
	}

	// Slot churn during a full run floods the socket; the dashboard
	// re-pulls full snapshots so dropped intermediate frames are safe.
	sc.mu.Lock()
	if limiter, throttled := sc.throttlers[event.Type]; throttled && !limiter.Allow() {
		sc.mu.Unlock()
		return
	}
	targets := make(map[*websocket.Conn]*sync.Mutex, len(sc.conns))
	for conn, mu := range sc.conns {
		targets[conn] = mu
	}
	sc.mu.Unlock()

	msg := wsMessage{
		Type:      string(event.Type),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   event.Payload,
	}
	for conn, mu := range targets {
		h.sendTo(conn, mu, msg)
	}
}

// sendTo writes one frame under the connection's write mutex. gorilla
// connections allow one concurrent writer only.
func (h *WebSocketHandler) sendTo(conn *websocket.Conn, mu *sync.Mutex, msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn().Err(err).Str("type", msg.Type).Msg("WebSocket marshal failed")
		return
	}

	mu.Lock()
	defer mu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Debug().Err(err).Msg("WebSocket write failed")
	}
}
