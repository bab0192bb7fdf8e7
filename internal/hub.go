package internal

import (
	"log/slog"
	"sync"
)

// Hub fans outbound events to connected clients. Delivery is best-effort per
// connection: a client whose send buffer is full is dropped rather than
// blocking the rest of the fan-out.
type Hub struct {
	mutex   sync.RWMutex
	conns   map[string]*Conn
	metrics *Metrics
}

func NewHub(metrics *Metrics) *Hub {
	return &Hub{conns: make(map[string]*Conn), metrics: metrics}
}

func (hub *Hub) add(conn *Conn) {
	hub.mutex.Lock()
	hub.conns[conn.id] = conn
	hub.mutex.Unlock()
}

// remove detaches the connection and closes its send channel exactly once,
// which ends its writePump.
func (hub *Hub) remove(conn *Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	if _, exists := hub.conns[conn.id]; exists {
		delete(hub.conns, conn.id)
		close(conn.send)
	}
}

func (hub *Hub) size() int {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	return len(hub.conns)
}

// BroadcastAll delivers the payload to every connected client.
func (hub *Hub) BroadcastAll(payload []byte) {
	hub.deliver(payload, "")
}

// BroadcastExcept delivers the payload to everyone but the given connection.
// Used for typing notices, which never echo back to their sender.
func (hub *Hub) BroadcastExcept(payload []byte, exceptID string) {
	hub.deliver(payload, exceptID)
}

// SendTo delivers the payload to exactly one connection. Returns false if
// the connection is gone or too slow to accept it. The send happens under
// the same lock that guards channel close, so it can never race a drop.
func (hub *Hub) SendTo(connID string, payload []byte) bool {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	conn, exists := hub.conns[connID]
	if !exists {
		return false
	}
	select {
	case conn.send <- payload:
		return true
	default:
		delete(hub.conns, conn.id)
		close(conn.send)
		hub.metrics.DroppedClients.Inc()
		slog.Warn("dropping slow client", "conn_id", conn.id)
		return false
	}
}

func (hub *Hub) deliver(payload []byte, exceptID string) {
	hub.mutex.Lock()
	for id, conn := range hub.conns {
		if id == exceptID {
			continue
		}
		select {
		case conn.send <- payload:
		default:
			// this client can't keep up; drop it so the rest still get
			// the event. writePump exits when the channel closes.
			delete(hub.conns, id)
			close(conn.send)
			hub.metrics.DroppedClients.Inc()
			slog.Warn("dropping slow client", "conn_id", id)
		}
	}
	hub.mutex.Unlock()
}
