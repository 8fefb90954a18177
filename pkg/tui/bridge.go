package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Sender delivers messages into a running Bubbletea program.
// *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// applyMsg carries a state mutation into Update, which makes the Bubbletea
// update loop the state-owning context.
type applyMsg struct {
	fn func()
}

// Bridge is a loop.Dispatcher backed by a Bubbletea program. Components are
// built with the Bridge before the program exists, so the program is
// attached afterwards. Dispatch must not be called from Update itself,
// because Send blocks until the update loop receives the message.
type Bridge struct {
	mu       sync.Mutex
	sender   Sender
	pending  []func()
	flushing bool
}

// NewBridge returns an unattached Bridge.
func NewBridge() *Bridge { return &Bridge{} }

// Attach connects the Bridge to s. Mutations dispatched before Attach are
// sent from a separate goroutine, since the program may not be running yet.
// Until that backlog is drained, later dispatches queue behind it.
func (b *Bridge) Attach(s Sender) {
	b.mu.Lock()
	b.sender = s
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	b.flushing = true
	b.mu.Unlock()

	go b.flush(s)
}

func (b *Bridge) flush(s Sender) {
	for {
		b.mu.Lock()
		batch := b.pending
		b.pending = nil
		if len(batch) == 0 {
			b.flushing = false
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()

		for _, fn := range batch {
			s.Send(applyMsg{fn: fn})
		}
	}
}

// Dispatch implements loop.Dispatcher.
func (b *Bridge) Dispatch(fn func()) {
	b.mu.Lock()
	s := b.sender
	if s == nil || b.flushing {
		b.pending = append(b.pending, fn)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	s.Send(applyMsg{fn: fn})
}
