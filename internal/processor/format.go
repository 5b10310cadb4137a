package processor

import (
	"fmt"
	"strings"
	"time"

	"callrelay/internal/model"
	"callrelay/internal/transport"
)

func categoryLabel(t model.Trigger) string {
	switch t {
	case model.TriggerIncomingSMS:
		return "Incoming SMS"
	case model.TriggerOutgoingSMS:
		return "Outgoing SMS"
	case model.TriggerIncomingCall:
		return "Incoming call"
	case model.TriggerOutgoingCall:
		return "Outgoing call"
	case model.TriggerMissedCall:
		return "Missed call"
	}
	return "Event"
}

// FormatMessage renders an event as an outbound message.
func FormatMessage(ev *model.Event, from string, recipients []string) *transport.Message {
	subject := fmt.Sprintf("%s from %s", categoryLabel(ev.Category()), ev.Phone)

	var b strings.Builder
	if ev.IsSMS() {
		b.WriteString(*ev.Text)
	} else if d := ev.CallDuration(); d != nil {
		fmt.Fprintf(&b, "Duration: %s", formatDuration(*d))
	}

	if ev.Details != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(ev.Details)
	}
	if ev.Location != nil {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Location: %s", ev.Location)
	}
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "At %s", time.UnixMilli(ev.StartTime).UTC().Format("2006-01-02 15:04 UTC"))

	return &transport.Message{
		Subject:    subject,
		Body:       b.String(),
		From:       from,
		ReplyTo:    from,
		Recipients: recipients,
	}
}

func formatDuration(millis int64) string {
	d := time.Duration(millis) * time.Millisecond
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
