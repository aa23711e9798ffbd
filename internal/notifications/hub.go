package notifications

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"clearinvoice/onboarding-portal/onboarding-portal-backend/internal/onboarding"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Hub fans onboarding events out to connected dashboard clients, one event
// stream per user. It implements onboarding.Notifier.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	connections map[string]map[*connection]struct{}
}

type connection struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan Event
}

// NewHub creates a new notifications hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:      logger,
		connections: make(map[string]map[*connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin checking is handled by the CORS layer in front.
				return true
			},
		},
	}
}

// HandleConnection upgrades an HTTP request to a websocket subscribed to the
// given user's events.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request, userID string) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	conn := &connection{
		id:     uuid.New().String(),
		userID: userID,
		conn:   ws,
		send:   make(chan Event, 32),
	}

	h.mu.Lock()
	if h.connections[userID] == nil {
		h.connections[userID] = make(map[*connection]struct{})
	}
	h.connections[userID][conn] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("Dashboard client connected",
		zap.String("connection_id", conn.id),
		zap.String("user_id", userID))

	go h.writePump(conn)
	go h.readPump(conn)

	return nil
}

// Publish delivers an event to every connection of the event's user.
// Slow clients are skipped rather than blocking the caller.
func (h *Hub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.connections[event.UserID] {
		select {
		case conn.send <- event:
		default:
		}
	}
}

// ProgressSaved implements onboarding.Notifier.
func (h *Hub) ProgressSaved(userID string, metrics onboarding.ProgressMetrics, status onboarding.AutosaveStatus) {
	h.Publish(Event{
		Type:   EventProgressSaved,
		UserID: userID,
		Payload: map[string]interface{}{
			"progress": metrics,
			"autosave": status,
		},
	})
}

// ResumePrompt implements onboarding.Notifier.
func (h *Hub) ResumePrompt(userID string, session onboarding.ResumeSession) {
	h.Publish(Event{
		Type:    EventResumePrompt,
		UserID:  userID,
		Payload: session,
	})
}

func (h *Hub) remove(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.connections[conn.userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, conn.userID)
		}
	}
}

// readPump drains client messages; the stream is push-only, so reads exist
// to notice closes and answer pings.
func (h *Hub) readPump(conn *connection) {
	defer func() {
		h.remove(conn)
		conn.conn.Close()
	}()

	conn.conn.SetReadLimit(512)
	conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		conn.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("Websocket read failed",
					zap.String("connection_id", conn.id),
					zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.conn.Close()
	}()

	for {
		select {
		case event, ok := <-conn.send:
			conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
