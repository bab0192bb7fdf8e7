package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	appTitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1)
	rosterStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectingStyle    = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	errorStyle         = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	messageBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2).MarginTop(1)
	inputBoxStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	timestampStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	usernameStyle      = lipgloss.NewStyle().Bold(true)
	ownNameStyle       = usernameStyle.Copy().Foreground(lipgloss.Color("213"))
	systemMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	mediaStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	typingStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
)

const visibleMessages = 20

func (model *ClientModel) View() string {
	header := appTitleStyle.Render("mediachat")
	if len(model.roster) > 0 {
		header = lipgloss.JoinHorizontal(lipgloss.Center, header,
			rosterStyle.Render(fmt.Sprintf("  online: %s", strings.Join(model.roster, ", "))))
	}

	sections := []string{header}

	body := model.renderMessages()
	if body == "" {
		body = systemMessageStyle.Render("No messages yet.")
	}
	sections = append(sections, messageBoxStyle.Render(body))

	if model.typingFrom != "" && model.typingFrom != model.username {
		sections = append(sections, typingStyle.Render(fmt.Sprintf("%s is typing…", model.typingFrom)))
	}

	switch {
	case model.lastErr != nil:
		sections = append(sections, errorStyle.Render(fmt.Sprintf("Error: %v", model.lastErr)))
	case !model.isConnected:
		sections = append(sections, connectingStyle.Render("Connecting…"))
	}

	sections = append(sections, inputBoxStyle.Render(model.textInput.View()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model *ClientModel) renderMessages() string {
	messages := model.messages
	if len(messages) > visibleMessages {
		messages = messages[len(messages)-visibleMessages:]
	}
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, model.renderMessage(msg))
	}
	return strings.Join(lines, "\n")
}

func (model *ClientModel) renderMessage(msg Message) string {
	ts := timestampStyle.Render(msg.Timestamp)
	if msg.Type == MessageSystem {
		return fmt.Sprintf("%s %s", ts, systemMessageStyle.Render(msg.Body))
	}

	name := usernameStyle.Render(msg.Sender)
	if msg.Sender == model.username {
		name = ownNameStyle.Render(msg.Sender)
	}

	switch msg.Type {
	case MessageImage, MessageVideo, MessageFile:
		detail := msg.FileName
		if msg.FileSize > 0 {
			detail = fmt.Sprintf("%s (%s)", msg.FileName, formatSize(msg.FileSize))
		}
		location := msg.File
		if strings.HasPrefix(location, "data:") {
			location = "inline image"
		} else {
			location = model.serverURL + location
		}
		return fmt.Sprintf("%s %s: %s", ts, name, mediaStyle.Render(fmt.Sprintf("[%s] %s → %s", msg.Type, detail, location)))
	default:
		return fmt.Sprintf("%s %s: %s", ts, name, msg.Body)
	}
}

func formatSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
