package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

var httpTimeout = 60 * time.Second

// messages delivered into the Bubble Tea update loop by the commands below.
type (
	connectedMsg     struct{ conn *websocket.Conn }
	connectFailedMsg struct{ err error }
	disconnectedMsg  struct{ err error }
	chatReceivedMsg  Message
	historyMsg       []Message
	rosterMsg        []string
	typingNoticeMsg  string
	frameSkippedMsg  struct{}
	uploadDoneMsg    struct {
		fileURL string
		err     error
	}
	clearTypingMsg struct{}
)

// connectCmd dials the websocket endpoint and sends the join event.
func (model *ClientModel) connectCmd() tea.Cmd {
	return func() tea.Msg {
		wsURL, err := wsURLFromBase(model.serverURL)
		if err != nil {
			return connectFailedMsg{err}
		}
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			return connectFailedMsg{err}
		}
		payload, err := encodeEvent(EventJoin, model.username)
		if err != nil {
			_ = conn.Close()
			return connectFailedMsg{err}
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			_ = conn.Close()
			return connectFailedMsg{err}
		}
		return connectedMsg{conn}
	}
}

// readOnceCmd reads a single frame and translates it into a tea message.
// The update loop re-issues it after every delivery, forming the read loop.
func (model *ClientModel) readOnceCmd() tea.Cmd {
	conn := model.conn
	return func() tea.Msg {
		if conn == nil {
			return frameSkippedMsg{}
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return disconnectedMsg{err}
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return frameSkippedMsg{}
		}
		switch env.Event {
		case EventChat:
			var msg Message
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				return frameSkippedMsg{}
			}
			return chatReceivedMsg(msg)
		case EventChatHistory:
			var history []Message
			if err := json.Unmarshal(env.Data, &history); err != nil {
				return frameSkippedMsg{}
			}
			return historyMsg(history)
		case EventOnlineUsers:
			var roster []string
			if err := json.Unmarshal(env.Data, &roster); err != nil {
				return frameSkippedMsg{}
			}
			return rosterMsg(roster)
		case EventTyping:
			var name string
			if err := json.Unmarshal(env.Data, &name); err != nil {
				return frameSkippedMsg{}
			}
			return typingNoticeMsg(name)
		default:
			return frameSkippedMsg{}
		}
	}
}

func (model *ClientModel) sendEventCmd(event string, data any) tea.Cmd {
	conn := model.conn
	return func() tea.Msg {
		if conn == nil {
			return nil
		}
		payload, err := encodeEvent(event, data)
		if err != nil {
			return nil
		}
		model.writeMutex.Lock()
		err = conn.WriteMessage(websocket.TextMessage, payload)
		model.writeMutex.Unlock()
		if err != nil {
			return disconnectedMsg{err}
		}
		return nil
	}
}

// uploadFileCmd posts the file to the HTTP upload endpoint. The resulting
// chat message arrives back over the websocket, so nothing is appended
// locally on success.
func (model *ClientModel) uploadFileCmd(path string) tea.Cmd {
	base := model.serverURL
	username := model.username
	return func() tea.Msg {
		file, err := os.Open(path)
		if err != nil {
			return uploadDoneMsg{err: err}
		}
		defer file.Close()

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("chatFile", filepath.Base(path))
		if err != nil {
			return uploadDoneMsg{err: err}
		}
		if _, err := io.Copy(part, file); err != nil {
			return uploadDoneMsg{err: err}
		}
		if err := writer.WriteField("username", username); err != nil {
			return uploadDoneMsg{err: err}
		}
		if err := writer.Close(); err != nil {
			return uploadDoneMsg{err: err}
		}

		req, err := http.NewRequest(http.MethodPost, base+"/upload", body)
		if err != nil {
			return uploadDoneMsg{err: err}
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())

		client := &http.Client{Timeout: httpTimeout}
		resp, err := client.Do(req)
		if err != nil {
			return uploadDoneMsg{err: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return uploadDoneMsg{err: fmt.Errorf("upload failed: %s", readResponseError(resp.Body))}
		}
		var parsed struct {
			FileURL string `json:"fileUrl"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return uploadDoneMsg{err: err}
		}
		return uploadDoneMsg{fileURL: parsed.FileURL}
	}
}

func readResponseError(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return "request failed"
	}
	var parsed map[string]string
	if err := json.Unmarshal(data, &parsed); err == nil {
		if msg, ok := parsed["error"]; ok {
			return msg
		}
	}
	return strings.TrimSpace(string(data))
}

func wsURLFromBase(base string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %s", parsed.Scheme)
	}
	parsed.Path = "/ws"
	return parsed.String(), nil
}
