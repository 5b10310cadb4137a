// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"strings"
)

// State is the lifecycle state of an event.
type State string

// Event lifecycle states.
const (
	StatePending   State = "pending"
	StateProcessed State = "processed"
	StateIgnored   State = "ignored"
)

// Status is a set of rejection-reason flags assigned by the rule engine.
// The zero value means the event passed every gate.
type Status uint8

// Rejection reasons. Multiple flags may be set on one event.
const (
	StatusAccepted          Status = 0
	StatusNumberBlacklisted Status = 1 << 0
	StatusTextBlacklisted   Status = 1 << 1
	StatusTriggerOff        Status = 1 << 2
)

// Has reports whether flag is set.
func (s Status) Has(flag Status) bool {
	return s&flag != 0
}

func (s Status) String() string {
	if s == StatusAccepted {
		return "accepted"
	}
	var parts []string
	if s.Has(StatusNumberBlacklisted) {
		parts = append(parts, "number_blacklisted")
	}
	if s.Has(StatusTextBlacklisted) {
		parts = append(parts, "text_blacklisted")
	}
	if s.Has(StatusTriggerOff) {
		parts = append(parts, "trigger_off")
	}
	return strings.Join(parts, "|")
}

// Trigger identifies a category of phone activity that can be relayed.
type Trigger string

// Supported triggers.
const (
	TriggerIncomingSMS  Trigger = "incoming_sms"
	TriggerOutgoingSMS  Trigger = "outgoing_sms"
	TriggerIncomingCall Trigger = "incoming_call"
	TriggerOutgoingCall Trigger = "outgoing_call"
	TriggerMissedCall   Trigger = "missed_call"
)

// ParseTrigger converts a string to a Trigger, rejecting unknown values.
func ParseTrigger(s string) (Trigger, error) {
	t := Trigger(strings.TrimSpace(strings.ToLower(s)))
	switch t {
	case TriggerIncomingSMS, TriggerOutgoingSMS, TriggerIncomingCall,
		TriggerOutgoingCall, TriggerMissedCall:
		return t, nil
	}
	return "", fmt.Errorf("unknown trigger %q", s)
}

// Location is a geographic coordinate pair.
type Location struct {
	Latitude  float64
	Longitude float64
}

func (l Location) String() string {
	return fmt.Sprintf("%.6f,%.6f", l.Latitude, l.Longitude)
}

// Event represents a single call or SMS occurrence on a device.
// Identity is the (StartTime, Acceptor) pair; StartTime is epoch millis.
type Event struct {
	StartTime  int64
	Acceptor   string
	Phone      string
	IsIncoming bool
	EndTime    *int64
	IsMissed   bool
	Text       *string
	Location   *Location
	Details    string
	IsRead     bool

	State       State
	Status      Status
	ProcessTime *int64
}

// IsSMS reports whether the event carries message text.
func (e *Event) IsSMS() bool {
	return e.Text != nil
}

// CallDuration returns the call length in millis, or nil when the call
// never ended (or the event is an SMS).
func (e *Event) CallDuration() *int64 {
	if e.EndTime == nil {
		return nil
	}
	d := *e.EndTime - e.StartTime
	return &d
}

// Category maps the event to exactly one trigger category.
// For calls a missed call wins over the incoming/outgoing distinction.
func (e *Event) Category() Trigger {
	if e.IsSMS() {
		if e.IsIncoming {
			return TriggerIncomingSMS
		}
		return TriggerOutgoingSMS
	}
	if e.IsMissed {
		return TriggerMissedCall
	}
	if e.IsIncoming {
		return TriggerIncomingCall
	}
	return TriggerOutgoingCall
}

// RuleSet is the user-editable filtering configuration evaluated
// against each event at processing time.
type RuleSet struct {
	Triggers       []Trigger
	PhoneWhitelist []string
	PhoneBlacklist []string
	TextWhitelist  []string
	TextBlacklist  []string
}

// HasTrigger reports whether the trigger category is enabled.
func (r *RuleSet) HasTrigger(t Trigger) bool {
	for _, v := range r.Triggers {
		if v == t {
			return true
		}
	}
	return false
}
