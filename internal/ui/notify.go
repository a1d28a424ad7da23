package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Notifier bridges coordinator change hooks into the program. Notify never
// blocks, so it is safe to call from inside Update; bursts of changes
// collapse into one pending message.
type Notifier struct {
	ch chan struct{}
}

// NewNotifier returns a Notifier with nothing pending.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Notify records that the dashboard state changed.
func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// wait blocks until the next notification or until ctx ends.
func (n *Notifier) wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-n.ch:
			return changedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}
