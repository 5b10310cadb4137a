package processor

import (
	"context"

	"callrelay/internal/model"
	"callrelay/internal/storage"
)

// Locator provides the device location, best-effort. A nil location
// with a nil error means no position is known.
type Locator interface {
	Current(ctx context.Context) (*model.Location, error)
}

// StoreLocator returns the last known location recorded in the store.
type StoreLocator struct {
	Store storage.Storage
}

// Current returns the last known location, or nil when none was recorded.
func (l *StoreLocator) Current(ctx context.Context) (*model.Location, error) {
	return l.Store.GetLastLocation(ctx)
}
