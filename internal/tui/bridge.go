package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/anikino/internal/task"
)

// Bridge makes the Bubble Tea update loop the consuming context. Task
// consumers are queued by Dispatch and run one at a time from Update, the
// same goroutine that handles key presses, so the controller is only ever
// touched there.
type Bridge struct {
	queue  *task.Queue[func()]
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBridge creates an open bridge
func NewBridge() *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		queue:  task.NewQueue[func()](),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Dispatch implements task.Dispatcher
func (b *Bridge) Dispatch(fn func()) bool {
	return b.queue.Push(fn)
}

// Next waits for the next closure. The model re-arms it after running each
// one, so exactly one Next is outstanding at a time.
func (b *Bridge) Next() tea.Cmd {
	return func() tea.Msg {
		fn, ok := b.queue.Pop(b.ctx)
		if !ok {
			return bridgeClosedMsg{}
		}
		return dispatchMsg{fn: fn}
	}
}

// Pending returns how many closures are waiting
func (b *Bridge) Pending() int {
	return b.queue.Len()
}

// Close stops accepting closures and releases a waiting Next
func (b *Bridge) Close() {
	b.queue.Close()
	b.cancel()
}
