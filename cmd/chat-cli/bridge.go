package main

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"dm-chat/internal/chatstore"
)

type stateMsg chatstore.State

type noticeMsg string

type transportClosedMsg struct {
	err error
}

// programBridge forwards store snapshots and notifications into the running
// program. Messages sent before attach are dropped.
type programBridge struct {
	mu sync.Mutex
	p  *tea.Program
}

func (b *programBridge) attach(p *tea.Program) {
	b.mu.Lock()
	b.p = p
	b.mu.Unlock()
}

func (b *programBridge) send(msg tea.Msg) {
	b.mu.Lock()
	p := b.p
	b.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Error implements notify.Notifier.
func (b *programBridge) Error(message string) {
	b.send(noticeMsg(message))
}

func (b *programBridge) observe(s chatstore.State) {
	b.send(stateMsg(s))
}
