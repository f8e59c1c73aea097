package notification

import (
	"context"
	"encoding/json"
	"expvar"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis keys for cross-instance fan-out
const (
	userEventsChannel = "notifications:user_events"
	presenceKey       = "notifications:presence:online"
)

var (
	wsConnectionsGauge   = expvar.NewInt("notification_ws_connections")
	wsEventsSentTotal    = expvar.NewInt("notification_ws_events_sent_total")
	wsEventsDroppedTotal = expvar.NewInt("notification_ws_events_dropped_total")
)

type userEventMessage struct {
	UserID           string          `json:"user_id"`
	Payload          json.RawMessage `json:"payload"`
	SenderInstanceID string          `json:"sender_instance_id"`
}

// Connection represents one user's WebSocket connection
type Connection struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans notification events out to connected users. Redis Pub/Sub
// carries events to users connected to other instances.
type Hub struct {
	connections map[uuid.UUID]map[*Connection]bool
	mu          sync.RWMutex

	redis  *redis.Client
	pubsub *redis.PubSub

	register   chan *Connection
	unregister chan *Connection

	ctx    context.Context
	cancel context.CancelFunc

	instanceID string
}

// NewHub creates a notification hub. redisClient may be nil for
// single-instance deployments; delivery is then local only.
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		redis:       redisClient,
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		ctx:         ctx,
		cancel:      cancel,
		instanceID:  uuid.NewString(),
	}

	if redisClient != nil {
		h.pubsub = redisClient.Subscribe(ctx, userEventsChannel)
	}

	return h
}

// Run starts the hub (call in goroutine)
func (h *Hub) Run() {
	if h.pubsub != nil {
		go h.runRedisSubscriber()
	}

	for {
		select {
		case <-h.ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.connections[conn.UserID] == nil {
				h.connections[conn.UserID] = make(map[*Connection]bool)
			}
			h.connections[conn.UserID][conn] = true
			h.mu.Unlock()
			wsConnectionsGauge.Add(1)

			h.setPresence(conn.UserID, true)
			log.Debug().Str("user_id", conn.UserID.String()).Msg("User connected to notification stream")

		case conn := <-h.unregister:
			lastConnection := false
			h.mu.Lock()
			if conns, ok := h.connections[conn.UserID]; ok {
				if _, exists := conns[conn]; exists {
					delete(conns, conn)
					close(conn.Send)
					wsConnectionsGauge.Add(-1)
				}
				if len(conns) == 0 {
					delete(h.connections, conn.UserID)
					lastConnection = true
				}
			}
			h.mu.Unlock()

			if lastConnection {
				h.setPresence(conn.UserID, false)
			}
			log.Debug().Str("user_id", conn.UserID.String()).Msg("User disconnected from notification stream")
		}
	}
}

func (h *Hub) runRedisSubscriber() {
	ch := h.pubsub.Channel()

	for {
		select {
		case <-h.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event userEventMessage
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			if event.SenderInstanceID == h.instanceID {
				continue
			}
			userID, err := uuid.Parse(event.UserID)
			if err != nil {
				continue
			}
			h.sendLocal(userID, []byte(event.Payload))
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// SendToUserJSON delivers a payload to every connection the user holds,
// on this instance and, via Redis, on the others.
func (h *Hub) SendToUserJSON(userID uuid.UUID, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	h.sendLocal(userID, data)
	return h.publishUserEvent(userID, data)
}

func (h *Hub) sendLocal(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	conns, ok := h.connections[userID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	for conn := range conns {
		select {
		case conn.Send <- data:
			wsEventsSentTotal.Add(1)
		default:
			// Buffer full, drop rather than block the hub
			wsEventsDroppedTotal.Add(1)
		}
	}
}

func (h *Hub) publishUserEvent(userID uuid.UUID, data []byte) error {
	if h.redis == nil {
		return nil
	}

	event := userEventMessage{
		UserID:           userID.String(),
		Payload:          data,
		SenderInstanceID: h.instanceID,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return h.redis.Publish(h.ctx, userEventsChannel, payload).Err()
}

func (h *Hub) setPresence(userID uuid.UUID, online bool) {
	if h.redis == nil {
		return
	}

	ctx := context.Background()
	if online {
		h.redis.SAdd(ctx, presenceKey, userID.String())
		h.redis.Expire(ctx, presenceKey, 5*time.Minute)
	} else {
		h.redis.SRem(ctx, presenceKey, userID.String())
	}
}

// IsOnline checks if the user has an open connection anywhere.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	if h.redis == nil {
		h.mu.RLock()
		conns, ok := h.connections[userID]
		h.mu.RUnlock()
		return ok && len(conns) > 0
	}
	return h.redis.SIsMember(context.Background(), presenceKey, userID.String()).Val()
}

// ConnectionCount returns the number of local connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.connections {
		total += len(conns)
	}
	return total
}

// Shutdown gracefully shuts down the hub
func (h *Hub) Shutdown() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}

// WSPublisher adapts the hub to the service's realtime interface.
type WSPublisher struct {
	hub *Hub
}

// NewWSPublisher creates a hub-backed realtime publisher.
func NewWSPublisher(hub *Hub) *WSPublisher {
	return &WSPublisher{hub: hub}
}

func (p *WSPublisher) NotifyNew(_ context.Context, userID uuid.UUID, n *Notification, unreadCount int) error {
	if p == nil || p.hub == nil {
		return nil
	}

	return p.hub.SendToUserJSON(userID, map[string]interface{}{
		"type": "notification:new",
		"data": map[string]interface{}{
			"notification": n,
			"unread_count": unreadCount,
		},
	})
}
