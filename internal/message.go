package internal

import (
	"encoding/json"
	"time"
)

// message types as carried on the wire and in history.
const (
	MessageText   = "text"
	MessageImage  = "image"
	MessageVideo  = "video"
	MessageFile   = "file"
	MessageSystem = "system"
)

// event names exchanged over the websocket.
const (
	EventJoin        = "join"
	EventChat        = "chat"
	EventChatHistory = "chat-history"
	EventTyping      = "typing"
	EventOnlineUsers = "online-users"
	EventFileUpload  = "file-upload"
)

const systemSender = "System"

// Message is one chat entry. Once appended to history it is never mutated,
// so fan-out and replay can hand out copies without further locking.
type Message struct {
	Sender    string `json:"sender"`
	Body      string `json:"message"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	File      string `json:"file,omitempty"` // inline data URL or relative blob URL
	FileType  string `json:"fileType,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	FileSize  int64  `json:"fileSize,omitempty"`
}

// Envelope wraps every websocket frame with its event name.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// InlineFilePayload is the file-upload event body: an already compressed
// image sent as an inline data URL over the persistent connection.
type InlineFilePayload struct {
	FileName    string `json:"fileName" validate:"required"`
	FileType    string `json:"fileType" validate:"required,startswith=image/"`
	FileSize    int64  `json:"fileSize" validate:"gte=0"`
	FileContent string `json:"fileContent" validate:"required"`
	Type        string `json:"type" validate:"omitempty,eq=image"`
}

func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// formatTimestamp renders the wall-clock time string clients display as-is.
func formatTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
