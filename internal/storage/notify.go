package storage

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// journal accumulates the names of tables touched during the current
// unit of work.
type journal struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func newJournal() *journal {
	return &journal{set: make(map[string]struct{})}
}

func (j *journal) record(table string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.set[table] = struct{}{}
}

func (j *journal) merge(tables map[string]struct{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for t := range tables {
		j.set[t] = struct{}{}
	}
}

// drain returns the touched tables sorted by name and clears the journal.
func (j *journal) drain() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.set) == 0 {
		return nil
	}
	tables := make([]string, 0, len(j.set))
	for t := range j.set {
		tables = append(tables, t)
	}
	j.set = make(map[string]struct{})
	sort.Strings(tables)
	return tables
}

type observerEntry struct {
	token string
	fn    Observer
}

// bus is the in-process observer registry. Observers are notified in
// registration order, synchronously, fire-and-forget.
type bus struct {
	mu        sync.Mutex
	observers []observerEntry
}

func (b *bus) subscribe(fn Observer) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	token := uuid.NewString()
	b.observers = append(b.observers, observerEntry{token: token, fn: fn})
	return token
}

func (b *bus) unsubscribe(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, o := range b.observers {
		if o.token == token {
			b.observers = append(b.observers[:i], b.observers[i+1:]...)
			return
		}
	}
}

func (b *bus) publish(c Change) {
	b.mu.Lock()
	snapshot := make([]observerEntry, len(b.observers))
	copy(snapshot, b.observers)
	b.mu.Unlock()

	for _, o := range snapshot {
		o.fn(c)
	}
}
