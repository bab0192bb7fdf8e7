package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// route dispatches one inbound frame according to the connection's state.
// It runs on the connection's read goroutine, so per-connection state needs
// no extra locking; shared state is taken under s.mu inside each handler.
//
// Events arriving before join (other than join itself) are dropped without
// an error frame, matching the protocol's permissive behavior. Each drop is
// logged at debug level so misbehaving clients stay visible.
func (s *Server) route(conn *Conn, env Envelope) {
	if conn.state == stateDisconnected {
		return
	}
	switch env.Event {
	case EventJoin:
		var name string
		if err := json.Unmarshal(env.Data, &name); err != nil {
			slog.Debug("malformed join payload", "conn_id", conn.id, "error", err)
			return
		}
		s.handleJoin(conn, name)
	case EventChat:
		var text string
		if err := json.Unmarshal(env.Data, &text); err != nil {
			slog.Debug("malformed chat payload", "conn_id", conn.id, "error", err)
			return
		}
		s.handleChat(conn, text)
	case EventTyping:
		s.handleTyping(conn)
	case EventFileUpload:
		var payload InlineFilePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			slog.Debug("malformed file-upload payload", "conn_id", conn.id, "error", err)
			return
		}
		s.handleInlineUpload(conn, payload)
	default:
		slog.Debug("unknown event", "conn_id", conn.id, "event", env.Event)
	}
}

// handleJoin moves the connection to the joined state, announces it, and
// replays history to the newcomer only. Registration, the history append of
// the system message, and all three outbound sends happen under one lock so
// no other connection can observe them out of order.
func (s *Server) handleJoin(conn *Conn, name string) {
	if conn.state != stateConnected {
		slog.Debug("ignoring join in current state", "conn_id", conn.id, "state", int(conn.state))
		return
	}

	joined := s.systemMessage(fmt.Sprintf("%s has joined the chat.", name))

	s.mu.Lock()
	if err := s.presence.Register(conn.id, name); err != nil {
		s.mu.Unlock()
		// should be unreachable: the transport hands out unique ids. Treat
		// it as fatal to this connection only.
		slog.Error("presence registration failed", "conn_id", conn.id, "error", err)
		conn.state = stateDisconnected
		s.hub.remove(conn)
		conn.sock.Close()
		return
	}
	conn.state = stateJoined
	conn.username = name

	s.history.Append(joined)
	s.metrics.MessagesTotal.WithLabelValues(MessageSystem).Inc()
	replay := s.history.Replay()
	roster := s.presence.Snapshot()

	s.sendEventAll(EventOnlineUsers, roster)
	s.sendEventAll(EventChat, joined)
	s.sendEventTo(conn.id, EventChatHistory, replay)
	s.mu.Unlock()

	slog.Info("client joined", "conn_id", conn.id, "name", name, "online", len(roster))
}

func (s *Server) handleChat(conn *Conn, text string) {
	if conn.state != stateJoined {
		slog.Debug("ignoring chat before join", "conn_id", conn.id)
		return
	}
	s.Publish(Message{
		Sender:    conn.username,
		Body:      text,
		Timestamp: formatTimestamp(s.now()),
		Type:      MessageText,
	})
}

// handleTyping relays the notice to everyone but the sender. No state is
// mutated and nothing is appended to history; expiry of the indicator is
// the receiving client's concern.
func (s *Server) handleTyping(conn *Conn) {
	if conn.state != stateJoined {
		slog.Debug("ignoring typing before join", "conn_id", conn.id)
		return
	}
	payload, err := encodeEvent(EventTyping, conn.username)
	if err != nil {
		return
	}
	s.hub.BroadcastExcept(payload, conn.id)
}

// handleInlineUpload accepts an already compressed image sent inline over
// the socket. The payload is validated and wrapped as-is; no transcoding or
// disk storage happens on this path. Invalid payloads are dropped without a
// reply, like every other protocol error.
func (s *Server) handleInlineUpload(conn *Conn, payload InlineFilePayload) {
	if conn.state != stateJoined {
		slog.Debug("ignoring file-upload before join", "conn_id", conn.id)
		return
	}
	if err := s.validate.Struct(payload); err != nil {
		slog.Debug("invalid inline upload", "conn_id", conn.id, "error", fmt.Errorf("%w: %v", ErrInvalidPayload, err))
		return
	}
	msg := s.pipeline.IngestInline(conn.username, payload, formatTimestamp(s.now()))
	s.Publish(msg)
}

// handleDisconnect runs once per connection, from readPump's deferred
// cleanup. An eventual leave announcement only happens when the connection
// had completed a join.
func (s *Server) handleDisconnect(conn *Conn) {
	if conn.state == stateDisconnected {
		return
	}
	conn.state = stateDisconnected
	s.hub.remove(conn)
	s.metrics.ActiveConnections.Dec()

	s.mu.Lock()
	name, hadJoined := s.presence.Unregister(conn.id)
	if hadJoined {
		left := s.systemMessage(fmt.Sprintf("%s has left the chat.", name))
		s.history.Append(left)
		s.metrics.MessagesTotal.WithLabelValues(MessageSystem).Inc()
		s.sendEventAll(EventOnlineUsers, s.presence.Snapshot())
		s.sendEventAll(EventChat, left)
	}
	s.mu.Unlock()

	slog.Info("client disconnected", "conn_id", conn.id, "name", name)
}

func (s *Server) systemMessage(text string) Message {
	return Message{
		Sender:    systemSender,
		Body:      text,
		Timestamp: formatTimestamp(s.now()),
		Type:      MessageSystem,
	}
}

func (s *Server) sendEventAll(event string, data any) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		slog.Error("encoding event", "event", event, "error", err)
		return
	}
	s.hub.BroadcastAll(payload)
}

func (s *Server) sendEventTo(connID, event string, data any) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		slog.Error("encoding event", "event", event, "error", err)
		return
	}
	s.hub.SendTo(connID, payload)
}
