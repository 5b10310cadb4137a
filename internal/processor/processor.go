// Package processor orchestrates the event pipeline: enrich, filter,
// deliver, persist, notify.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"time"

	"callrelay/internal/filter"
	"callrelay/internal/model"
	"callrelay/internal/notify"
	"callrelay/internal/storage"
	"callrelay/internal/transport"
)

// Processor runs events through the filtering and delivery pipeline.
type Processor struct {
	store     storage.Storage
	transport transport.Transport
	locator   Locator
	presenter notify.Presenter
	settings  *Settings
	log       *slog.Logger
	now       func() time.Time
}

// New creates a Processor wired to its collaborators.
func New(store storage.Storage, tr transport.Transport, locator Locator,
	presenter notify.Presenter, settings *Settings, log *slog.Logger) *Processor {
	return &Processor{
		store:     store,
		transport: tr,
		locator:   locator,
		presenter: presenter,
		settings:  settings,
		log:       log,
		now:       time.Now,
	}
}

// SetClock overrides the time source (useful for testing).
func (p *Processor) SetClock(now func() time.Time) {
	p.now = now
}

// Process runs one event through the pipeline. A filter rejection is
// terminal (ignored); an accepted event is delivered now or stays
// pending for the next sweep. The silent flag suppresses user-facing
// configuration errors for background invocations.
func (p *Processor) Process(ctx context.Context, ev *model.Event, silent bool) error {
	p.enrich(ctx, ev)

	rs, err := p.ruleSet(ctx)
	if err != nil {
		return fmt.Errorf("load rule set: %w", err)
	}

	ev.Status = filter.Test(ev, rs)
	if ev.Status != model.StatusAccepted {
		ev.State = model.StateIgnored
		p.log.Debug("event ignored", "phone", ev.Phone, "status", ev.Status.String())
	} else if p.deliver(ctx, ev, silent) {
		p.markProcessed(ev)
	} else {
		ev.State = model.StatePending
	}

	if _, err := p.store.UpsertEvent(ctx, ev); err != nil {
		return fmt.Errorf("persist event: %w", err)
	}
	p.store.Flush()
	return nil
}

// ProcessPending retries delivery for every pending event. Only events
// whose delivery now succeeds are persisted; one change notification
// covers the whole batch. Runs silently: no user is present.
func (p *Processor) ProcessPending(ctx context.Context) error {
	pending, err := p.store.ListPendingEvents(ctx)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	p.log.Debug("retrying pending events", "count", len(pending))

	delivered := 0
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		ev := &pending[i]
		if !p.deliver(ctx, ev, true) {
			continue
		}
		p.markProcessed(ev)
		if _, err := p.store.UpsertEvent(ctx, ev); err != nil {
			return fmt.Errorf("persist event: %w", err)
		}
		delivered++
	}

	if delivered > 0 {
		p.log.Info("delivered pending events", "count", delivered, "of", len(pending))
	}
	p.store.Flush()
	return nil
}

func (p *Processor) markProcessed(ev *model.Event) {
	ev.State = model.StateProcessed
	t := p.now().UnixMilli()
	ev.ProcessTime = &t
}

// enrich attaches the current location when the event has none.
// Location is best-effort and never blocks processing.
func (p *Processor) enrich(ctx context.Context, ev *model.Event) {
	if ev.Location != nil || p.locator == nil {
		return
	}
	loc, err := p.locator.Current(ctx)
	if err != nil {
		p.log.Debug("get location", "error", err)
		return
	}
	ev.Location = loc
}

// ruleSet assembles the current rules: pattern lists from the store,
// trigger set from the delivery settings.
func (p *Processor) ruleSet(ctx context.Context) (*model.RuleSet, error) {
	rs := &model.RuleSet{Triggers: p.settings.Triggers()}

	for _, l := range []struct {
		name storage.ListName
		dst  *[]string
	}{
		{storage.ListPhoneWhitelist, &rs.PhoneWhitelist},
		{storage.ListPhoneBlacklist, &rs.PhoneBlacklist},
		{storage.ListTextWhitelist, &rs.TextWhitelist},
		{storage.ListTextBlacklist, &rs.TextBlacklist},
	} {
		items, err := p.store.GetList(ctx, l.name)
		if err != nil {
			return nil, err
		}
		*l.dst = items
	}
	return rs, nil
}

// deliver attempts one delivery. Configuration errors surface only on
// interactive calls; an authorization error surfaces always; any other
// transport failure is logged and retried on a later sweep.
func (p *Processor) deliver(ctx context.Context, ev *model.Event, silent bool) bool {
	sender := p.settings.Sender()
	if sender == "" {
		if !silent {
			p.presenter.ShowError(notify.ErrorNoSender)
		}
		return false
	}
	p.presenter.ClearError(notify.ErrorNoSender)

	recipients := p.settings.Recipients()
	if len(recipients) == 0 {
		if !silent {
			p.presenter.ShowError(notify.ErrorNoRecipients)
		}
		return false
	}
	p.presenter.ClearError(notify.ErrorNoRecipients)

	for _, r := range recipients {
		if !validRecipient(r) {
			if !silent {
				p.presenter.ShowError(notify.ErrorInvalidRecipient)
			}
			return false
		}
	}
	p.presenter.ClearError(notify.ErrorInvalidRecipient)

	msg := FormatMessage(ev, sender, recipients)
	if err := p.transport.Send(ctx, msg); err != nil {
		if errors.Is(err, transport.ErrAuthRequired) {
			p.presenter.ShowError(notify.ErrorAuthRequired)
			p.log.Warn("delivery requires authorization", "error", err)
		} else {
			p.log.Warn("delivery failed", "phone", ev.Phone, "error", err)
		}
		return false
	}
	p.presenter.ClearError(notify.ErrorAuthRequired)

	if p.settings.MarkReadOnSend() {
		ev.IsRead = true
	}
	if p.settings.NotifySuccess() {
		p.presenter.ShowSuccess()
	}
	return true
}

// validRecipient accepts a numeric chat ID or a mail-style address.
func validRecipient(r string) bool {
	if r == "" {
		return false
	}
	if _, err := strconv.ParseInt(r, 10, 64); err == nil {
		return true
	}
	if _, err := mail.ParseAddress(r); err == nil {
		return true
	}
	return false
}
