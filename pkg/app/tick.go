package app

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/livedash/pkg/refresher"
)

// TickCmd sends a TickEvent after d.
func TickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickEvent{Time: t}
	})
}

// RetryCmd runs one extra tick of v off the update loop.
func RetryCmd(ctx context.Context, v *refresher.View) tea.Cmd {
	return func() tea.Msg {
		err := v.Retry(ctx)
		return ActionDoneEvent{View: v.Name(), Action: ActionRetry, Err: err, Snapshot: v.Snapshot()}
	}
}

// ToggleCmd flips auto-refresh of v. Enabling restarts the view, which
// fetches immediately.
func ToggleCmd(ctx context.Context, v *refresher.View) tea.Cmd {
	return func() tea.Msg {
		_, err := v.ToggleAutoRefresh(ctx)
		return ActionDoneEvent{View: v.Name(), Action: ActionToggle, Err: err, Snapshot: v.Snapshot()}
	}
}

// MountCmd mounts views on m. Initial tick failures are shown by the views
// themselves and are not reported here.
func MountCmd(ctx context.Context, m *refresher.Manager, views []*refresher.View) tea.Cmd {
	return func() tea.Msg {
		var names []string
		var errs []error
		for _, v := range views {
			err := m.Mount(ctx, v)
			if errors.Is(err, refresher.ErrAlreadyMounted) || errors.Is(err, refresher.ErrClosed) {
				errs = append(errs, err)
				continue
			}
			names = append(names, v.Name())
		}
		return MountedEvent{Views: names, Err: errors.Join(errs...)}
	}
}
