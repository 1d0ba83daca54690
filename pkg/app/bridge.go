package app

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/livedash/pkg/refresher"
)

// Bridge forwards refresher callbacks into a running program. Views are
// built before the program exists, so the program is attached later;
// updates before that are dropped.
type Bridge struct {
	p atomic.Pointer[tea.Program]
}

// Attach sets the receiving program.
func (b *Bridge) Attach(p *tea.Program) { b.p.Store(p) }

// OnUpdate is suitable for refresher.OnUpdate.
func (b *Bridge) OnUpdate(s refresher.Snapshot) {
	if p := b.p.Load(); p != nil {
		p.Send(ViewUpdateEvent{Snapshot: s})
	}
}
