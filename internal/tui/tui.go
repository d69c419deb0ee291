package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"boardsync/internal/client"
	"boardsync/internal/model"
)

type Options struct {
	API *client.API
	Log zerolog.Logger
}

// Run starts the interactive board against a running server and blocks
// until the user quits or ctx is done.
func Run(ctx context.Context, opts Options) error {
	applyColorProfilePreference()
	applyThemePreference()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newAppModel(ctx, opts.API, client.NewCache(model.Snapshot{}))
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	stream := client.NewStream(opts.API, opts.Log)
	go func() {
		_ = stream.Run(ctx, client.StreamHandler{
			Event:        func(ev model.Event) { p.Send(eventMsg{ev: ev}) },
			Disconnected: func(err error) { p.Send(disconnectedMsg{err: err}) },
		})
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
