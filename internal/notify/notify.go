// Package notify surfaces delivery problems and successes to the user.
package notify

import (
	"log/slog"
	"sync"
)

// ErrorKind classifies a user-visible delivery error.
type ErrorKind string

// User-visible error classes.
const (
	ErrorNoSender         ErrorKind = "no_sender"
	ErrorNoRecipients     ErrorKind = "no_recipients"
	ErrorInvalidRecipient ErrorKind = "invalid_recipient"
	ErrorAuthRequired     ErrorKind = "auth_required"
)

// Presenter signals delivery outcomes to the user. Calls are
// fire-and-forget and never affect pipeline state.
type Presenter interface {
	ShowError(kind ErrorKind)
	ShowSuccess()
	ClearError(kind ErrorKind)
}

// LogPresenter reports outcomes through the application log.
type LogPresenter struct {
	Log *slog.Logger
}

// ShowError logs one user-visible error.
func (p *LogPresenter) ShowError(kind ErrorKind) {
	p.Log.Warn("delivery error", "kind", string(kind))
}

// ShowSuccess logs a delivery success.
func (p *LogPresenter) ShowSuccess() {
	p.Log.Info("delivery succeeded")
}

// ClearError logs that an error condition has been resolved.
func (p *LogPresenter) ClearError(kind ErrorKind) {
	p.Log.Info("delivery error cleared", "kind", string(kind))
}

// Dedup wraps a Presenter so each error kind is shown once until its
// underlying condition clears. Repeated identical failures stay quiet.
type Dedup struct {
	next Presenter

	mu     sync.Mutex
	active map[ErrorKind]bool
}

// NewDedup creates a deduplicating wrapper around next.
func NewDedup(next Presenter) *Dedup {
	return &Dedup{next: next, active: make(map[ErrorKind]bool)}
}

// ShowError forwards the first occurrence of each kind and swallows
// repeats until ClearError is called for that kind.
func (d *Dedup) ShowError(kind ErrorKind) {
	d.mu.Lock()
	seen := d.active[kind]
	d.active[kind] = true
	d.mu.Unlock()

	if !seen {
		d.next.ShowError(kind)
	}
}

// ShowSuccess always forwards.
func (d *Dedup) ShowSuccess() {
	d.next.ShowSuccess()
}

// ClearError dismisses an error class once its condition is corrected.
// Only forwarded when the class was actually showing.
func (d *Dedup) ClearError(kind ErrorKind) {
	d.mu.Lock()
	seen := d.active[kind]
	delete(d.active, kind)
	d.mu.Unlock()

	if seen {
		d.next.ClearError(kind)
	}
}
