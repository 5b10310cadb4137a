package processor

import (
	"sync"

	"callrelay/internal/model"
)

// Settings holds the runtime-mutable delivery configuration. It is
// read in full at the start of every processing attempt, so edits made
// through the admin API take effect on the next event.
type Settings struct {
	mu             sync.RWMutex
	sender         string
	recipients     []string
	triggers       []model.Trigger
	markReadOnSend bool
	notifySuccess  bool
}

// NewSettings creates delivery settings with the given initial values.
func NewSettings(sender string, recipients []string, triggers []model.Trigger) *Settings {
	return &Settings{
		sender:     sender,
		recipients: recipients,
		triggers:   triggers,
	}
}

// Sender returns the configured sender identity.
func (s *Settings) Sender() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sender
}

// SetSender updates the sender identity.
func (s *Settings) SetSender(sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = sender
}

// Recipients returns a copy of the configured recipient list.
func (s *Settings) Recipients() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]string, len(s.recipients))
	copy(cp, s.recipients)
	return cp
}

// SetRecipients replaces the recipient list.
func (s *Settings) SetRecipients(recipients []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients = recipients
}

// Triggers returns a copy of the enabled trigger set.
func (s *Settings) Triggers() []model.Trigger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]model.Trigger, len(s.triggers))
	copy(cp, s.triggers)
	return cp
}

// SetTriggers replaces the enabled trigger set.
func (s *Settings) SetTriggers(triggers []model.Trigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers = triggers
}

// MarkReadOnSend reports whether delivered events are marked read.
func (s *Settings) MarkReadOnSend() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.markReadOnSend
}

// SetMarkReadOnSend toggles the mark-read side effect.
func (s *Settings) SetMarkReadOnSend(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markReadOnSend = v
}

// NotifySuccess reports whether successful deliveries are announced.
func (s *Settings) NotifySuccess() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifySuccess
}

// SetNotifySuccess toggles the success notification side effect.
func (s *Settings) SetNotifySuccess(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifySuccess = v
}
