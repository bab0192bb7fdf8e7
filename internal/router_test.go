package internal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"mediachat/internal/storage"
)

func newTestServer(t *testing.T, transcoder Transcoder) *Server {
	t.Helper()
	store, err := storage.NewStore("sqlite://file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(t.Context()))

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	pipeline := NewPipeline(PipelineOptions{
		UploadDir:        t.TempDir(),
		VideoDir:         t.TempDir(),
		Transcoder:       transcoder,
		TranscodeWorkers: 2,
		TranscodeTimeout: time.Minute,
	}, store, metrics)

	server := NewServer(pipeline, store, metrics, registry, ServerOptions{
		MaxUploadBytes: 10 << 20,
		AllowedOrigin:  "*",
	})
	server.now = func() time.Time {
		return time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)
	}
	pipeline.now = server.now
	return server
}

// openConn attaches a connection to the hub without a real websocket; events
// fanned out to it are read straight from its send buffer.
func openConn(server *Server, id string) *Conn {
	conn := newConn(id, nil)
	server.hub.add(conn)
	return conn
}

func join(server *Server, conn *Conn, name string) {
	payload, _ := json.Marshal(name)
	server.route(conn, Envelope{Event: EventJoin, Data: payload})
}

func sendChat(server *Server, conn *Conn, text string) {
	payload, _ := json.Marshal(text)
	server.route(conn, Envelope{Event: EventChat, Data: payload})
}

func nextEvent(t *testing.T, conn *Conn) Envelope {
	t.Helper()
	select {
	case payload := <-conn.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(payload, &env))
		return env
	default:
		t.Fatalf("no event queued for %s", conn.id)
		return Envelope{}
	}
}

func decodeRoster(t *testing.T, env Envelope) []string {
	t.Helper()
	require.Equal(t, EventOnlineUsers, env.Event)
	var roster []string
	require.NoError(t, json.Unmarshal(env.Data, &roster))
	return roster
}

func decodeChat(t *testing.T, env Envelope) Message {
	t.Helper()
	require.Equal(t, EventChat, env.Event)
	var msg Message
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	return msg
}

func decodeHistory(t *testing.T, env Envelope) []Message {
	t.Helper()
	require.Equal(t, EventChatHistory, env.Event)
	var history []Message
	require.NoError(t, json.Unmarshal(env.Data, &history))
	return history
}

func drain(conn *Conn) {
	for {
		select {
		case <-conn.send:
		default:
			return
		}
	}
}

func TestJoinSequence(t *testing.T) {
	server := newTestServer(t, &fakeTranscoder{})
	alice := openConn(server, "conn-alice")
	join(server, alice, "alice")

	require.Equal(t, []string{"alice"}, decodeRoster(t, nextEvent(t, alice)))
	joined := decodeChat(t, nextEvent(t, alice))
	require.Equal(t, systemSender, joined.Sender)
	require.Equal(t, MessageSystem, joined.Type)
	require.Equal(t, "alice has joined the chat.", joined.Body)
	require.Equal(t, "12:30:45", joined.Timestamp)
	history := decodeHistory(t, nextEvent(t, alice))
	require.Len(t, history, 1)

	bob := openConn(server, "conn-bob")
	join(server, bob, "bob")

	// both see the updated roster and bob's announcement.
	require.Equal(t, []string{"alice", "bob"}, decodeRoster(t, nextEvent(t, alice)))
	require.Equal(t, "bob has joined the chat.", decodeChat(t, nextEvent(t, alice)).Body)
	require.Equal(t, []string{"alice", "bob"}, decodeRoster(t, nextEvent(t, bob)))
	require.Equal(t, "bob has joined the chat.", decodeChat(t, nextEvent(t, bob)).Body)

	// history goes to bob only.
	require.Len(t, decodeHistory(t, nextEvent(t, bob)), 2)
	requireEmpty(t, alice)
}

func TestChatBroadcastAndReplay(t *testing.T) {
	server := newTestServer(t, &fakeTranscoder{})
	alice := openConn(server, "conn-alice")
	bob := openConn(server, "conn-bob")
	join(server, alice, "alice")
	join(server, bob, "bob")
	drain(alice)
	drain(bob)

	sendChat(server, alice, "hi")

	for _, conn := range []*Conn{alice, bob} {
		msg := decodeChat(t, nextEvent(t, conn))
		require.Equal(t, "alice", msg.Sender)
		require.Equal(t, MessageText, msg.Type)
		require.Equal(t, "hi", msg.Body)
	}

	// a later joiner gets the message in its replayed history.
	carol := openConn(server, "conn-carol")
	join(server, carol, "carol")
	_ = nextEvent(t, carol) // roster
	_ = nextEvent(t, carol) // join announcement
	history := decodeHistory(t, nextEvent(t, carol))
	require.Equal(t, "hi", history[len(history)-2].Body) // last entry is carol's own join
}

func TestDisconnectAnnouncesLeave(t *testing.T) {
	server := newTestServer(t, &fakeTranscoder{})
	alice := openConn(server, "conn-alice")
	bob := openConn(server, "conn-bob")
	join(server, alice, "alice")
	join(server, bob, "bob")
	drain(alice)
	drain(bob)

	server.handleDisconnect(bob)

	require.Equal(t, []string{"alice"}, decodeRoster(t, nextEvent(t, alice)))
	left := decodeChat(t, nextEvent(t, alice))
	require.Equal(t, "bob has left the chat.", left.Body)
	require.Equal(t, MessageSystem, left.Type)
}

func TestDisconnectBeforeJoinIsSilent(t *testing.T) {
	server := newTestServer(t, &fakeTranscoder{})
	alice := openConn(server, "conn-alice")
	join(server, alice, "alice")
	drain(alice)

	ghost := openConn(server, "conn-ghost")
	server.handleDisconnect(ghost)

	requireEmpty(t, alice)
	require.Equal(t, 1, server.history.Len()) // only alice's join recorded
}

func TestTypingNeverEchoesToSender(t *testing.T) {
	server := newTestServer(t, &fakeTranscoder{})
	alice := openConn(server, "conn-alice")
	bob := openConn(server, "conn-bob")
	join(server, alice, "alice")
	join(server, bob, "bob")
	drain(alice)
	drain(bob)

	server.route(alice, Envelope{Event: EventTyping, Data: json.RawMessage(`"alice"`)})

	requireEmpty(t, alice)
	env := nextEvent(t, bob)
	require.Equal(t, EventTyping, env.Event)
	var name string
	require.NoError(t, json.Unmarshal(env.Data, &name))
	require.Equal(t, "alice", name)
}

func TestEventsBeforeJoinDropped(t *testing.T) {
	server := newTestServer(t, &fakeTranscoder{})
	alice := openConn(server, "conn-alice")
	join(server, alice, "alice")
	drain(alice)

	stranger := openConn(server, "conn-stranger")
	sendChat(server, stranger, "should vanish")
	server.route(stranger, Envelope{Event: EventTyping, Data: json.RawMessage(`"stranger"`)})

	requireEmpty(t, alice)
	requireEmpty(t, stranger)
	require.Equal(t, 1, server.history.Len())
}

func TestSecondJoinIgnored(t *testing.T) {
	server := newTestServer(t, &fakeTranscoder{})
	alice := openConn(server, "conn-alice")
	join(server, alice, "alice")
	drain(alice)

	join(server, alice, "alice-again")

	requireEmpty(t, alice)
	require.Equal(t, []string{"alice"}, server.presence.Snapshot())
}

func TestInlineUploadBecomesImageMessage(t *testing.T) {
	server := newTestServer(t, &fakeTranscoder{})
	alice := openConn(server, "conn-alice")
	bob := openConn(server, "conn-bob")
	join(server, alice, "alice")
	join(server, bob, "bob")
	drain(alice)
	drain(bob)

	payload, _ := json.Marshal(InlineFilePayload{
		FileName:    "cat.jpg",
		FileType:    "image/jpeg",
		FileSize:    2048,
		FileContent: "data:image/jpeg;base64,/9j/AAA=",
		Type:        "image",
	})
	server.route(alice, Envelope{Event: EventFileUpload, Data: payload})

	for _, conn := range []*Conn{alice, bob} {
		msg := decodeChat(t, nextEvent(t, conn))
		require.Equal(t, MessageImage, msg.Type)
		require.Equal(t, "alice", msg.Sender)
		require.Equal(t, "cat.jpg", msg.FileName)
		require.Equal(t, "image/jpeg", msg.FileType)
		require.Equal(t, int64(2048), msg.FileSize)
		require.Equal(t, "data:image/jpeg;base64,/9j/AAA=", msg.File)
	}
	require.Equal(t, 3, server.history.Len())
}

func TestInvalidInlineUploadDropped(t *testing.T) {
	server := newTestServer(t, &fakeTranscoder{})
	alice := openConn(server, "conn-alice")
	join(server, alice, "alice")
	drain(alice)

	// non-image mime type fails validation and is dropped without a reply.
	payload, _ := json.Marshal(InlineFilePayload{
		FileName:    "movie.mp4",
		FileType:    "video/mp4",
		FileContent: "data:video/mp4;base64,AAAA",
	})
	server.route(alice, Envelope{Event: EventFileUpload, Data: payload})

	requireEmpty(t, alice)
	require.Equal(t, 1, server.history.Len())
}
