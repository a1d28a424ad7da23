package ui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/bulwark/internal/dashboard"
	"github.com/five82/bulwark/internal/draft"
	"github.com/five82/bulwark/internal/views"
)

// Messages

// changedMsg asks the model to re-read the dashboard state.
type changedMsg struct{}

type clockMsg time.Time

type startedMsg struct {
	err error
}

// actionMsg reports the outcome of a key-initiated request. done is shown
// as the footer notice when err is nil; an empty done shows nothing.
type actionMsg struct {
	done string
	err  error
}

// Commands

func clockCmd() tea.Cmd {
	return tea.Tick(ClockInterval, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

func startCmd(ctx context.Context, console Console) tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: console.Start(ctx)}
	}
}

func activateCmd(ctx context.Context, console Console, view views.View) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		return actionMsg{err: console.Activate(ctx, view)}
	}
}

func refreshCmd(ctx context.Context, console Console, view views.View) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		if err := console.Refresh(ctx, view, dashboard.ReasonManual); err != nil {
			return actionMsg{err: fmt.Errorf("refresh %s: %w", view.Label(), err)}
		}
		return actionMsg{done: view.Label() + " refreshed"}
	}
}

func saveCmd(ctx context.Context, console Console, key draft.Section) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		if err := console.Save(ctx, key); err != nil {
			return actionMsg{err: fmt.Errorf("save %s: %w", key, err)}
		}
		return actionMsg{done: fmt.Sprintf("Saved %s", key)}
	}
}

func banCmd(ctx context.Context, console Console, ip string, seconds int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		if err := console.BanIP(ctx, ip, seconds); err != nil {
			return actionMsg{err: fmt.Errorf("ban %s: %w", ip, err)}
		}
		return actionMsg{done: fmt.Sprintf("Banned %s for %s", ip, formatSeconds(seconds))}
	}
}

func unbanCmd(ctx context.Context, console Console, ip string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		if err := console.UnbanIP(ctx, ip); err != nil {
			return actionMsg{err: fmt.Errorf("unban %s: %w", ip, err)}
		}
		return actionMsg{done: "Unbanned " + ip}
	}
}
