package internal

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// ClientModel is the Bubble Tea model for the terminal chat client.
type ClientModel struct {
	textInput  textinput.Model
	messages   []Message
	roster     []string
	typingFrom string

	serverURL string
	username  string

	conn        *websocket.Conn
	writeMutex  sync.Mutex
	isConnected bool
	lastErr     error

	// the server relays a typing notice per keystroke; throttle our own
	// emissions so we do not flood it.
	lastTypingSent time.Time
}

func NewClientModel(serverURL, username string) *ClientModel {
	input := textinput.New()
	input.Placeholder = "Type a message… (/send <path> to upload, /quit to exit)"
	input.CharLimit = 0
	input.Prompt = "> "
	input.Focus()

	return &ClientModel{
		textInput: input,
		messages:  make([]Message, 0, 64),
		serverURL: serverURL,
		username:  username,
	}
}

func (model *ClientModel) Init() tea.Cmd {
	return model.connectCmd()
}

// RunClient starts the terminal client against the given server base URL.
func RunClient(serverURL, username string) error {
	program := tea.NewProgram(NewClientModel(serverURL, username), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	return nil
}
