package relay

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tuftsceeo/smartmotor/internal/logging"
)

const (
	// Time allowed to write a message to a client
	writeWait = 10 * time.Second

	// A client must answer a ping within this window or it is dropped
	pongWait = 60 * time.Second

	// Ping period; must be shorter than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size accepted from a client
	maxPublishSize = 8192

	// Per-client outbound queue depth; a client that cannot drain this is
	// disconnected rather than allowed to stall the channel
	sendQueueDepth = 32
)

// welcomeEnvelope is the connection-ready signal sent to every new client
type welcomeEnvelope struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
	Channel  string `json:"channel"`
}

// dataEnvelope is the rebroadcast wrapper: the original publish rides in
// Payload as a JSON-encoded string, which is why subscribers parse twice
type dataEnvelope struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// publishDocument is the slice of an inbound publish the relay itself cares
// about; the full document is forwarded verbatim
type publishDocument struct {
	Topic string `json:"topic"`
}

// Hub owns every channel and fans publishes out to channel members.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]*channelHub
	capture  *CaptureWriter
}

// NewHub creates an empty hub. capture may be nil.
func NewHub(capture *CaptureWriter) *Hub {
	return &Hub{
		channels: make(map[string]*channelHub),
		capture:  capture,
	}
}

// channelHub is one named channel's membership
type channelHub struct {
	name    string
	mu      sync.Mutex
	clients map[*client]struct{}
}

// client is one connected WebSocket peer
type client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	channel *channelHub
	hub     *Hub
}

// ChannelStats is the /api/channels view of one channel
type ChannelStats struct {
	Name    string   `json:"name"`
	Clients []string `json:"clients"`
}

// Stats returns a sorted snapshot of channels and their member ids
func (h *Hub) Stats() []ChannelStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := make([]ChannelStats, 0, len(h.channels))
	for name, ch := range h.channels {
		ch.mu.Lock()
		ids := make([]string, 0, len(ch.clients))
		for c := range ch.clients {
			ids = append(ids, c.id)
		}
		ch.mu.Unlock()
		sort.Strings(ids)
		stats = append(stats, ChannelStats{Name: name, Clients: ids})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Join registers an upgraded connection on a channel, greets it with the
// welcome envelope, and starts its pumps. Blocks until the client leaves.
func (h *Hub) Join(channelName string, conn *websocket.Conn) {
	h.mu.Lock()
	ch, ok := h.channels[channelName]
	if !ok {
		ch = &channelHub{
			name:    channelName,
			clients: make(map[*client]struct{}),
		}
		h.channels[channelName] = ch
	}
	h.mu.Unlock()

	c := &client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, sendQueueDepth),
		channel: ch,
		hub:     h,
	}

	ch.mu.Lock()
	ch.clients[c] = struct{}{}
	ch.mu.Unlock()
	metricConnections.WithLabelValues(ch.name).Inc()

	logging.LogConnection(conn.RemoteAddr().String(), "client_joined")
	logging.Info("Client joined channel",
		zap.String("channel", ch.name),
		zap.String("client_id", c.id),
	)

	welcome, err := json.Marshal(welcomeEnvelope{
		Type:     "welcome",
		ClientID: c.id,
		Channel:  ch.name,
	})
	if err == nil {
		c.send <- welcome
	}

	go c.writePump()
	c.readPump()
}

// leave removes the client and closes its connection; idempotent via the
// channel map check. The send channel is never closed: fan-out from other
// clients may still hold a reference, and a buffered send to a departed
// client is harmless where a send on a closed channel is not.
func (c *client) leave() {
	ch := c.channel
	ch.mu.Lock()
	_, present := ch.clients[c]
	if present {
		delete(ch.clients, c)
	}
	ch.mu.Unlock()
	if !present {
		return
	}

	metricConnections.WithLabelValues(ch.name).Dec()
	_ = c.conn.Close()
	logging.Info("Client left channel",
		zap.String("channel", ch.name),
		zap.String("client_id", c.id),
	)
}

// readPump reads publishes from one client, validates them, and fans them
// out. Runs on the Join goroutine and returns when the client disconnects.
func (c *client) readPump() {
	defer c.leave()

	c.conn.SetReadLimit(maxPublishSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				logging.Warn("Client read error",
					zap.String("client_id", c.id),
					zap.Error(err),
				)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if messageType != websocket.TextMessage {
			logging.Debug("Ignoring non-text message",
				zap.String("client_id", c.id),
				zap.Int("type", messageType),
			)
			continue
		}

		c.handlePublish(raw)
	}
}

// handlePublish validates one inbound publish and broadcasts it wrapped in
// the data envelope. Invalid publishes are counted and dropped; the client
// stays connected.
func (c *client) handlePublish(raw []byte) {
	ch := c.channel

	if err := ValidatePublish(raw); err != nil {
		metricInvalidPublishes.WithLabelValues(ch.name).Inc()
		logging.Warn("Dropping invalid publish",
			zap.String("channel", ch.name),
			zap.String("client_id", c.id),
			zap.Error(err),
		)
		return
	}

	var doc publishDocument
	_ = json.Unmarshal(raw, &doc)
	metricPublishes.WithLabelValues(ch.name).Inc()
	logging.LogTopicEvent("relayed", doc.Topic, json.RawMessage(raw))

	c.hub.capture.Write(CaptureRecord{
		Timestamp:  time.Now(),
		Channel:    ch.name,
		ClientID:   c.id,
		Direction:  "publish",
		Topic:      doc.Topic,
		PayloadLen: len(raw),
		Payload:    string(raw),
	})

	envelope, err := json.Marshal(dataEnvelope{
		Type:    "data",
		Payload: string(raw),
	})
	if err != nil {
		logging.Error("Failed to wrap broadcast envelope", zap.Error(err))
		return
	}

	// Fan out to every member, sender included; subscribers filter by topic
	ch.mu.Lock()
	members := make([]*client, 0, len(ch.clients))
	for member := range ch.clients {
		members = append(members, member)
	}
	ch.mu.Unlock()

	for _, member := range members {
		select {
		case member.send <- envelope:
			metricBroadcasts.WithLabelValues(ch.name).Inc()
			metricBroadcastBytes.WithLabelValues(ch.name).Add(float64(len(envelope)))
		default:
			// The member's queue has been full for a while; cut it loose
			// rather than let one slow client stall the channel
			metricDroppedClients.WithLabelValues(ch.name).Inc()
			logging.Warn("Dropping client with full send queue",
				zap.String("channel", ch.name),
				zap.String("client_id", member.id),
			)
			member.leave()
		}
	}
}

// writePump owns all writes to the socket: queued envelopes and periodic
// pings. One writer per connection keeps frames from interleaving.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			// Doubles as the exit path after leave(): the write on the
			// closed connection fails and the pump winds down
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
