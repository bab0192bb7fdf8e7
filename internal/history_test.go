package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoryReplayOrder(t *testing.T) {
	history := NewHistory()
	history.Append(Message{Sender: "alice", Body: "one", Type: MessageText})
	history.Append(Message{Sender: "bob", Body: "two", Type: MessageText})
	history.Append(Message{Sender: "System", Body: "three", Type: MessageSystem})

	replay := history.Replay()
	require.Len(t, replay, 3)
	require.Equal(t, "one", replay[0].Body)
	require.Equal(t, "two", replay[1].Body)
	require.Equal(t, "three", replay[2].Body)
}

func TestHistoryReplayIsSnapshot(t *testing.T) {
	history := NewHistory()
	history.Append(Message{Body: "original"})

	replay := history.Replay()
	replay[0].Body = "mutated"
	history.Append(Message{Body: "second"})

	fresh := history.Replay()
	require.Equal(t, "original", fresh[0].Body)
	require.Equal(t, 2, history.Len())
	require.Len(t, replay, 1)
}
