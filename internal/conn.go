package internal

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// inline image payloads travel as data URLs over the socket, so the
	// read limit is far above a plain chat line.
	maxMsgSize = 32 << 20
)

type connState int

const (
	stateConnected connState = iota // transport open, no display name yet
	stateJoined
	stateDisconnected
)

// Conn is the server side of one websocket connection plus its protocol
// state. state and username are only touched from the connection's own read
// goroutine; the hub sees nothing but the send channel.
type Conn struct {
	id       string
	sock     *websocket.Conn
	send     chan []byte
	state    connState
	username string
}

func newConn(id string, sock *websocket.Conn) *Conn {
	return &Conn{
		id:    id,
		sock:  sock,
		send:  make(chan []byte, 256),
		state: stateConnected,
	}
}

func (conn *Conn) readPump(server *Server) {
	defer func() {
		server.handleDisconnect(conn)
		conn.sock.Close()
	}()
	conn.sock.SetReadLimit(maxMsgSize)
	_ = conn.sock.SetReadDeadline(time.Now().Add(pongWait))
	conn.sock.SetPongHandler(func(string) error {
		return conn.sock.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := conn.sock.ReadMessage()
		if err != nil {
			// normal close or read error; deferred cleanup runs.
			break
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			slog.Debug("discarding malformed frame", "conn_id", conn.id, "error", err)
			continue
		}
		server.route(conn, env)
	}
}

func (conn *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.sock.Close()
	}()
	for {
		select {
		case message, ok := <-conn.send:
			_ = conn.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel; tell the peer and bail.
				_ = conn.sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.sock.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
