package main

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dm-chat/internal/chatstore"
	"dm-chat/internal/models"
)

const sidebarWidth = 24

type conversationStore interface {
	GetUsers(ctx context.Context)
	SwitchConversation(ctx context.Context, user *models.User)
	SendMessage(ctx context.Context, payload models.SendRequest, receiverID string) (models.Message, error)
}

type focus int

const (
	focusContacts focus = iota
	focusInput
)

type model struct {
	store conversationStore
	me    models.User

	state  chatstore.State
	cursor int
	focus  focus
	notice string

	input    textinput.Model
	viewport viewport.Model
	width    int
	height   int
}

func newModel(store conversationStore, me models.User) model {
	input := textinput.New()
	input.Placeholder = "Type a message, /image <url> or /file <url>"
	input.CharLimit = 2000
	input.Prompt = "> "

	return model{
		store:    store,
		me:       me,
		input:    input,
		viewport: viewport.New(40, 10),
		focus:    focusContacts,
	}
}

func (m model) Init() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		store.GetUsers(context.Background())
		return nil
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case stateMsg:
		m.state = chatstore.State(msg)
		if m.cursor >= len(m.state.Users) {
			m.cursor = max(len(m.state.Users)-1, 0)
		}
		m.viewport.SetContent(renderMessages(m.state.Messages, m.me, m.partnerName()))
		m.viewport.GotoBottom()
		return m, nil

	case noticeMsg:
		m.notice = string(msg)
		return m, nil

	case transportClosedMsg:
		if msg.err != nil {
			m.notice = "push channel closed: " + msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "ctrl+q":
		return m, tea.Quit
	case "tab":
		return m.toggleFocus()
	case "esc":
		m.notice = ""
		return m, m.switchCmd(nil)
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.focus == focusContacts {
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.state.Users)-1 {
				m.cursor++
			}
		case "enter":
			if len(m.state.Users) == 0 {
				return m, nil
			}
			user := m.state.Users[m.cursor]
			m.notice = ""
			m.focus = focusInput
			return m, tea.Batch(m.input.Focus(), m.switchCmd(&user))
		}
		return m, nil
	}

	if msg.String() == "enter" {
		req, ok := parseInput(m.input.Value())
		if !ok {
			return m, nil
		}
		m.input.Reset()
		return m, m.sendCmd(req)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) toggleFocus() (tea.Model, tea.Cmd) {
	if m.focus == focusContacts {
		m.focus = focusInput
		return m, m.input.Focus()
	}
	m.focus = focusContacts
	m.input.Blur()
	return m, nil
}

func (m model) switchCmd(user *models.User) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		store.SwitchConversation(context.Background(), user)
		return nil
	}
}

func (m model) sendCmd(req models.SendRequest) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		// Failures reach the notifier; the result is appended by the store.
		_, _ = store.SendMessage(context.Background(), req, "")
		return nil
	}
}

func (m *model) resize() {
	m.viewport.Width = max(m.width-sidebarWidth-3, 10)
	m.viewport.Height = max(m.height-5, 1)
	m.input.Width = max(m.width-sidebarWidth-6, 10)
}

func (m model) partnerName() string {
	if m.state.SelectedUser == nil {
		return ""
	}
	return m.state.SelectedUser.FullName
}

func (m model) View() string {
	var side strings.Builder
	side.WriteString(headerStyle.Render("Contacts"))
	side.WriteString("\n")
	if m.state.IsUsersLoading {
		side.WriteString(helpStyle.Render("loading..."))
		side.WriteString("\n")
	}
	for i, u := range m.state.Users {
		line := u.FullName
		if m.state.SelectedUser != nil && m.state.SelectedUser.ID == u.ID {
			line = selectedStyle.Render(line)
		}
		if i == m.cursor && m.focus == focusContacts {
			line = cursorStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		side.WriteString(line)
		side.WriteString("\n")
	}

	var pane strings.Builder
	switch {
	case m.state.SelectedUser == nil:
		pane.WriteString(headerStyle.Render("Select a contact to start chatting"))
	case m.state.IsMessagesLoading:
		pane.WriteString(headerStyle.Render(m.partnerName()) + " " + helpStyle.Render("loading messages..."))
	default:
		pane.WriteString(headerStyle.Render(m.partnerName()))
	}
	pane.WriteString("\n")
	pane.WriteString(m.viewport.View())
	pane.WriteString("\n")
	if m.notice != "" {
		pane.WriteString(errorStyle.Render(m.notice))
	}
	pane.WriteString("\n")
	pane.WriteString(m.input.View())

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		sidebarStyle.Width(sidebarWidth).Render(side.String()),
		" ",
		pane.String(),
	)
	help := helpStyle.Render("tab switch focus | enter open/send | esc close | ctrl+c quit")
	return lipgloss.JoinVertical(lipgloss.Left, body, help)
}

func renderMessages(msgs []models.Message, me models.User, partner string) string {
	if len(msgs) == 0 {
		return helpStyle.Render("No messages yet.")
	}
	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		ts := timeStyle.Render(msg.CreatedAt.Local().Format("15:04"))
		var who string
		if msg.SenderID == me.ID {
			who = sentMsgStyle.Render("You")
		} else {
			who = recvMsgStyle.Render(partner)
		}
		fmt.Fprintf(&b, "%s %s: %s", ts, who, describe(msg))
	}
	return b.String()
}

func describe(msg models.Message) string {
	parts := make([]string, 0, 3)
	if msg.Text != "" {
		parts = append(parts, msg.Text)
	}
	if msg.Image != "" {
		parts = append(parts, "[image] "+msg.Image)
	}
	if msg.File != "" {
		label := "[file]"
		if msg.FileType != "" {
			label = "[" + msg.FileType + "]"
		}
		parts = append(parts, label+" "+msg.File)
	}
	return strings.Join(parts, " ")
}

// parseInput turns an input line into a send payload. "/image <url>" and
// "/file <url>" attach instead of sending text.
func parseInput(line string) (models.SendRequest, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return models.SendRequest{}, false
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/image":
		if arg == "" {
			return models.SendRequest{}, false
		}
		return models.SendRequest{Image: arg}, true
	case "/file":
		if arg == "" {
			return models.SendRequest{}, false
		}
		return models.SendRequest{File: arg, FileType: strings.ToLower(strings.TrimPrefix(path.Ext(arg), "."))}, true
	}
	return models.SendRequest{Text: line}, true
}
