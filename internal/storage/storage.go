// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"fmt"

	"callrelay/internal/model"
)

// ListName identifies one of the pattern list tables.
type ListName string

// Pattern list tables.
const (
	ListPhoneBlacklist ListName = "phone_blacklist"
	ListPhoneWhitelist ListName = "phone_whitelist"
	ListTextBlacklist  ListName = "text_blacklist"
	ListTextWhitelist  ListName = "text_whitelist"
)

// ParseListName converts a string to a ListName, rejecting unknown tables.
func ParseListName(s string) (ListName, error) {
	n := ListName(s)
	switch n {
	case ListPhoneBlacklist, ListPhoneWhitelist, ListTextBlacklist, ListTextWhitelist:
		return n, nil
	}
	return "", fmt.Errorf("unknown list %q", s)
}

// Change describes one committed unit of work: the names of all tables
// touched since the previous flush, coalesced into a single notification.
type Change struct {
	Tables []string
}

// Observer receives change notifications. Observers are invoked
// synchronously on the flushing goroutine and must not block.
type Observer func(Change)

// Ops is the set of operations available both on the store itself and
// inside a batch. Mutations performed directly on the store take effect
// immediately; inside Batch they commit or roll back as one.
type Ops interface {
	UpsertEvent(ctx context.Context, ev *model.Event) (inserted bool, err error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	ListPendingEvents(ctx context.Context) ([]model.Event, error)
	DeleteEvent(ctx context.Context, startTime int64, acceptor string) error
	ClearEvents(ctx context.Context) error
	MarkAllRead(ctx context.Context, read bool) error
	UnreadCount(ctx context.Context) (int, error)

	GetList(ctx context.Context, name ListName) ([]string, error)
	ReplaceList(ctx context.Context, name ListName, items []string) error
	AddToList(ctx context.Context, name ListName, item string) error
	RemoveFromList(ctx context.Context, name ListName, item string) error

	GetLastLocation(ctx context.Context) (*model.Location, error)
	PutLastLocation(ctx context.Context, loc model.Location) error
}

// Storage is the interface for all persistence operations.
type Storage interface {
	Ops

	// Batch runs fn against a single transaction. If fn returns an
	// error the transaction rolls back and no table is journaled.
	Batch(ctx context.Context, fn func(Ops) error) error

	// Flush broadcasts one notification covering every table touched
	// since the previous flush, then clears the journal. A flush with
	// nothing journaled is a no-op.
	Flush()

	// Subscribe registers an observer and returns its token.
	Subscribe(fn Observer) string
	// Unsubscribe removes a previously registered observer.
	Unsubscribe(token string)

	Close() error
}
