package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoryReplayReplacesLiveFrames(t *testing.T) {
	model := NewClientModel("http://localhost:5000", "alice")
	joined := Message{
		Sender:    systemSender,
		Body:      "alice has joined the chat.",
		Timestamp: "12:30:45",
		Type:      MessageSystem,
	}

	// the join announcement arrives live before the history frame, which
	// replays it too; the client must not display it twice.
	updated, _ := model.Update(chatReceivedMsg(joined))
	model = updated.(*ClientModel)
	updated, _ = model.Update(historyMsg([]Message{joined}))
	model = updated.(*ClientModel)

	require.Len(t, model.messages, 1)
	require.Equal(t, "alice has joined the chat.", model.messages[0].Body)
}

func TestChatAppendsAfterReplay(t *testing.T) {
	model := NewClientModel("http://localhost:5000", "alice")
	replay := []Message{
		{Sender: systemSender, Body: "alice has joined the chat.", Type: MessageSystem},
	}
	live := Message{Sender: "bob", Body: "hi", Type: MessageText}

	updated, _ := model.Update(historyMsg(replay))
	model = updated.(*ClientModel)
	updated, _ = model.Update(chatReceivedMsg(live))
	model = updated.(*ClientModel)

	require.Len(t, model.messages, 2)
	require.Equal(t, "hi", model.messages[1].Body)
}
