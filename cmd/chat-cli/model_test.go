package main

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-chat/internal/chatstore"
	"dm-chat/internal/models"
)

type fakeStore struct {
	mu       sync.Mutex
	switched []*models.User
	sent     []models.SendRequest
}

func (f *fakeStore) GetUsers(context.Context) {}

func (f *fakeStore) SwitchConversation(_ context.Context, user *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switched = append(f.switched, user)
}

func (f *fakeStore) SendMessage(_ context.Context, payload models.SendRequest, _ string) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return models.Message{}, nil
}

var me = models.User{ID: "me", FullName: "Me"}

func withUsers(m model) model {
	updated, _ := m.Update(stateMsg(chatstore.State{Users: []models.User{{ID: "a", FullName: "Alice"}, {ID: "b", FullName: "Bob"}}}))
	return updated.(model)
}

func runCmd(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			runCmd(c)
		}
	}
}

func TestEnterOnContactSwitchesConversation(t *testing.T) {
	store := &fakeStore{}
	m := withUsers(newModel(store, me))

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(model)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(model)
	runCmd(cmd)

	require.Len(t, store.switched, 1)
	assert.Equal(t, "b", store.switched[0].ID)
	assert.Equal(t, focusInput, m.focus)
}

func TestEnterInInputSends(t *testing.T) {
	store := &fakeStore{}
	m := withUsers(newModel(store, me))
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(model)
	m.input.SetValue("hello there")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(model)
	runCmd(cmd)

	require.Len(t, store.sent, 1)
	assert.Equal(t, "hello there", store.sent[0].Text)
	assert.Empty(t, m.input.Value())
}

func TestEscTearsDown(t *testing.T) {
	store := &fakeStore{}
	m := withUsers(newModel(store, me))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	runCmd(cmd)

	require.Len(t, store.switched, 1)
	assert.Nil(t, store.switched[0])
}

func TestViewShowsStateAndNotice(t *testing.T) {
	m := newModel(&fakeStore{}, me)
	alice := models.User{ID: "a", FullName: "Alice"}
	updated, _ := m.Update(stateMsg(chatstore.State{
		Users:        []models.User{alice},
		SelectedUser: &alice,
		Messages: []models.Message{
			{ID: "m1", SenderID: "a", ReceiverID: "me", Text: "hi", CreatedAt: time.Now()},
			{ID: "m2", SenderID: "me", ReceiverID: "a", Text: "hey", CreatedAt: time.Now()},
		},
	}))
	updated, _ = updated.Update(noticeMsg("Failed to send message"))

	view := updated.View()
	assert.Contains(t, view, "Alice")
	assert.Contains(t, view, "hi")
	assert.Contains(t, view, "You")
	assert.Contains(t, view, "Failed to send message")
}

func TestParseInput(t *testing.T) {
	req, ok := parseInput("  hello  ")
	require.True(t, ok)
	assert.Equal(t, models.SendRequest{Text: "hello"}, req)

	req, ok = parseInput("/image https://cdn.example/cat.png")
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example/cat.png", req.Image)
	assert.Empty(t, req.Text)

	req, ok = parseInput("/file https://cdn.example/report.pdf")
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example/report.pdf", req.File)
	assert.Equal(t, "pdf", req.FileType)

	_, ok = parseInput("   ")
	assert.False(t, ok)
	_, ok = parseInput("/image")
	assert.False(t, ok)
}

func TestDescribe(t *testing.T) {
	got := describe(models.Message{Text: "look", Image: "x.png", File: "y.pdf", FileType: "pdf"})
	assert.True(t, strings.HasPrefix(got, "look [image] x.png"))
	assert.Contains(t, got, "[pdf] y.pdf")
}
