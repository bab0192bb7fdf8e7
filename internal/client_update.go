package internal

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

const typingThrottle = time.Second

func (model *ClientModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.KeyMsg:
		if typedMessage.Type == tea.KeyCtrlC || typedMessage.Type == tea.KeyEsc {
			model.closeConn()
			return model, tea.Quit
		}
		if typedMessage.Type == tea.KeyEnter {
			return model.handleSubmit()
		}
		var commands []tea.Cmd
		var inputCmd tea.Cmd
		model.textInput, inputCmd = model.textInput.Update(typedMessage)
		commands = append(commands, inputCmd)
		// announce typing, throttled, while actually entering text.
		if model.isConnected && typedMessage.Type == tea.KeyRunes && time.Since(model.lastTypingSent) > typingThrottle {
			model.lastTypingSent = time.Now()
			commands = append(commands, model.sendEventCmd(EventTyping, model.username))
		}
		return model, tea.Batch(commands...)

	case connectedMsg:
		model.conn = typedMessage.conn
		model.isConnected = true
		model.lastErr = nil
		return model, model.readOnceCmd()

	case connectFailedMsg:
		model.lastErr = typedMessage.err
		return model, tea.Quit

	case disconnectedMsg:
		model.isConnected = false
		model.lastErr = typedMessage.err
		return model, tea.Quit

	case chatReceivedMsg:
		model.messages = append(model.messages, Message(typedMessage))
		return model, model.readOnceCmd()

	case historyMsg:
		// the replayed log already contains everything appended before the
		// server sent it, including frames that also arrived live (our own
		// join announcement). Replace rather than merge.
		model.messages = []Message(typedMessage)
		return model, model.readOnceCmd()

	case rosterMsg:
		model.roster = []string(typedMessage)
		return model, model.readOnceCmd()

	case typingNoticeMsg:
		model.typingFrom = string(typedMessage)
		return model, tea.Batch(
			model.readOnceCmd(),
			tea.Tick(3*time.Second, func(time.Time) tea.Msg { return clearTypingMsg{} }),
		)

	case clearTypingMsg:
		model.typingFrom = ""
		return model, nil

	case frameSkippedMsg:
		return model, model.readOnceCmd()

	case uploadDoneMsg:
		if typedMessage.err != nil {
			model.messages = append(model.messages, Message{
				Sender: systemSender,
				Body:   fmt.Sprintf("Upload failed: %v", typedMessage.err),
				Type:   MessageSystem,
			})
		}
		return model, nil
	}

	var command tea.Cmd
	model.textInput, command = model.textInput.Update(message)
	return model, command
}

func (model *ClientModel) handleSubmit() (tea.Model, tea.Cmd) {
	trimmed := strings.TrimSpace(model.textInput.Value())
	if trimmed == "" {
		return model, nil
	}
	model.textInput.SetValue("")

	if strings.HasPrefix(trimmed, "/") {
		parts := strings.SplitN(trimmed, " ", 2)
		switch strings.ToLower(parts[0]) {
		case "/quit", "/exit":
			model.closeConn()
			return model, tea.Quit
		case "/send":
			if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
				model.messages = append(model.messages, Message{
					Sender: systemSender,
					Body:   "Usage: /send <path>",
					Type:   MessageSystem,
				})
				return model, nil
			}
			return model, model.uploadFileCmd(strings.TrimSpace(parts[1]))
		default:
			return model, nil
		}
	}

	if !model.isConnected {
		return model, nil
	}
	return model, model.sendEventCmd(EventChat, trimmed)
}

func (model *ClientModel) closeConn() {
	if model.conn == nil {
		return
	}
	model.writeMutex.Lock()
	_ = model.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	model.writeMutex.Unlock()
	_ = model.conn.Close()
}
