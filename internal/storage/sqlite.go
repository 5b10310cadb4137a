package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"callrelay/internal/model"
	"callrelay/migrations"
)

// Table names reported in change notifications.
const (
	TableEvents       = "events"
	TableLastLocation = "last_location"
)

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ops implements Ops against either the database handle or one
// transaction. db is nil when already inside a batch transaction.
type ops struct {
	q     executor
	db    *sql.DB
	touch func(table string)
}

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	ops
	journal *journal
	bus     *bus
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer connection keeps in-memory databases coherent and
	// serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &SQLite{journal: newJournal(), bus: &bus{}}
	s.ops = ops{q: db, db: db, touch: s.journal.record}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Batch runs fn against one transaction. A failed batch rolls back and
// journals nothing; a committed batch journals every table fn touched.
func (s *SQLite) Batch(ctx context.Context, fn func(Ops) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	staged := make(map[string]struct{})
	b := &ops{q: tx, touch: func(t string) { staged[t] = struct{}{} }}
	if err := fn(b); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	s.journal.merge(staged)
	return nil
}

// Flush broadcasts one coalesced notification for the touched tables.
func (s *SQLite) Flush() {
	tables := s.journal.drain()
	if len(tables) == 0 {
		return
	}
	s.bus.publish(Change{Tables: tables})
}

// Subscribe registers an observer and returns its token.
func (s *SQLite) Subscribe(fn Observer) string {
	return s.bus.subscribe(fn)
}

// Unsubscribe removes a previously registered observer.
func (s *SQLite) Unsubscribe(token string) {
	s.bus.unsubscribe(token)
}

// transact runs fn inside a transaction, or directly when ops is
// already transaction-backed.
func (o *ops) transact(ctx context.Context, fn func(q executor) error) error {
	if o.db == nil {
		return fn(o.q)
	}
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

const eventColumns = `start_time, acceptor, phone, is_incoming, end_time, is_missed,
	 text, latitude, longitude, details, is_read, state, status, process_time`

// UpsertEvent inserts an event; on a (start_time, acceptor) conflict all
// non-key columns are updated instead. Reports whether a new row was
// inserted. An event with an empty state is stored as pending.
func (o *ops) UpsertEvent(ctx context.Context, ev *model.Event) (bool, error) {
	if ev.State == "" {
		ev.State = model.StatePending
	}

	var lat, lng any
	if ev.Location != nil {
		lat, lng = ev.Location.Latitude, ev.Location.Longitude
	}

	inserted := false
	err := o.transact(ctx, func(q executor) error {
		var count int
		if err := q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM events WHERE start_time = ? AND acceptor = ?`,
			ev.StartTime, ev.Acceptor,
		).Scan(&count); err != nil {
			return fmt.Errorf("check event: %w", err)
		}

		_, err := q.ExecContext(ctx,
			`INSERT INTO events (`+eventColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(start_time, acceptor) DO UPDATE SET
			   phone = excluded.phone,
			   is_incoming = excluded.is_incoming,
			   end_time = excluded.end_time,
			   is_missed = excluded.is_missed,
			   text = excluded.text,
			   latitude = excluded.latitude,
			   longitude = excluded.longitude,
			   details = excluded.details,
			   is_read = excluded.is_read,
			   state = excluded.state,
			   status = excluded.status,
			   process_time = excluded.process_time`,
			ev.StartTime, ev.Acceptor, ev.Phone, boolToInt(ev.IsIncoming),
			ev.EndTime, boolToInt(ev.IsMissed), ev.Text, lat, lng,
			ev.Details, boolToInt(ev.IsRead), string(ev.State),
			int(ev.Status), ev.ProcessTime,
		)
		if err != nil {
			return fmt.Errorf("upsert event: %w", err)
		}
		inserted = count == 0
		return nil
	})
	if err != nil {
		return false, err
	}
	o.touch(TableEvents)
	return inserted, nil
}

// ListEvents returns all events ordered by start time descending.
func (o *ops) ListEvents(ctx context.Context) ([]model.Event, error) {
	return o.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY start_time DESC`)
}

// ListPendingEvents returns all pending events ordered by start time descending.
func (o *ops) ListPendingEvents(ctx context.Context) ([]model.Event, error) {
	return o.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE state = ? ORDER BY start_time DESC`,
		string(model.StatePending))
}

func (o *ops) queryEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DeleteEvent removes one event by its key.
func (o *ops) DeleteEvent(ctx context.Context, startTime int64, acceptor string) error {
	res, err := o.q.ExecContext(ctx,
		`DELETE FROM events WHERE start_time = ? AND acceptor = ?`, startTime, acceptor)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		o.touch(TableEvents)
	}
	return nil
}

// ClearEvents removes all events.
func (o *ops) ClearEvents(ctx context.Context) error {
	res, err := o.q.ExecContext(ctx, `DELETE FROM events`)
	if err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		o.touch(TableEvents)
	}
	return nil
}

// MarkAllRead sets the read flag on every event.
func (o *ops) MarkAllRead(ctx context.Context, read bool) error {
	res, err := o.q.ExecContext(ctx,
		`UPDATE events SET is_read = ? WHERE is_read != ?`,
		boolToInt(read), boolToInt(read))
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		o.touch(TableEvents)
	}
	return nil
}

// UnreadCount returns the number of unread events.
func (o *ops) UnreadCount(ctx context.Context) (int, error) {
	var count int
	err := o.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE is_read = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

// GetList returns all values of a pattern list, sorted.
func (o *ops) GetList(ctx context.Context, name ListName) ([]string, error) {
	rows, err := o.q.QueryContext(ctx,
		fmt.Sprintf(`SELECT value FROM %s ORDER BY value`, name))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	var items []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

// ReplaceList atomically replaces the whole content of a pattern list.
func (o *ops) ReplaceList(ctx context.Context, name ListName, items []string) error {
	err := o.transact(ctx, func(q executor) error {
		if _, err := q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, name)); err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
		for _, item := range items {
			if _, err := q.ExecContext(ctx,
				fmt.Sprintf(`INSERT OR IGNORE INTO %s (value) VALUES (?)`, name), item,
			); err != nil {
				return fmt.Errorf("insert into %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	o.touch(string(name))
	return nil
}

// AddToList adds one value to a pattern list, ignoring duplicates.
func (o *ops) AddToList(ctx context.Context, name ListName, item string) error {
	res, err := o.q.ExecContext(ctx,
		fmt.Sprintf(`INSERT OR IGNORE INTO %s (value) VALUES (?)`, name), item)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		o.touch(string(name))
	}
	return nil
}

// RemoveFromList removes one value from a pattern list.
func (o *ops) RemoveFromList(ctx context.Context, name ListName, item string) error {
	res, err := o.q.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE value = ?`, name), item)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		o.touch(string(name))
	}
	return nil
}

// GetLastLocation returns the last known device location, or nil when
// none has been recorded yet.
func (o *ops) GetLastLocation(ctx context.Context) (*model.Location, error) {
	var loc model.Location
	err := o.q.QueryRowContext(ctx,
		`SELECT latitude, longitude FROM last_location WHERE id = 1`,
	).Scan(&loc.Latitude, &loc.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last location: %w", err)
	}
	return &loc, nil
}

// PutLastLocation stores the last known device location.
func (o *ops) PutLastLocation(ctx context.Context, loc model.Location) error {
	_, err := o.q.ExecContext(ctx,
		`INSERT INTO last_location (id, latitude, longitude) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET latitude = excluded.latitude, longitude = excluded.longitude`,
		loc.Latitude, loc.Longitude)
	if err != nil {
		return fmt.Errorf("put last location: %w", err)
	}
	o.touch(TableLastLocation)
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEvent(row scannable) (model.Event, error) {
	var ev model.Event
	var isIncoming, isMissed, isRead, status int
	var endTime, processTime sql.NullInt64
	var text, details sql.NullString
	var lat, lng sql.NullFloat64
	var state string

	err := row.Scan(&ev.StartTime, &ev.Acceptor, &ev.Phone, &isIncoming,
		&endTime, &isMissed, &text, &lat, &lng, &details, &isRead,
		&state, &status, &processTime)
	if err != nil {
		return ev, fmt.Errorf("scan event: %w", err)
	}

	ev.IsIncoming = isIncoming == 1
	ev.IsMissed = isMissed == 1
	ev.IsRead = isRead == 1
	ev.State = model.State(state)
	ev.Status = model.Status(status)
	if endTime.Valid {
		v := endTime.Int64
		ev.EndTime = &v
	}
	if processTime.Valid {
		v := processTime.Int64
		ev.ProcessTime = &v
	}
	if text.Valid {
		v := text.String
		ev.Text = &v
	}
	if details.Valid {
		ev.Details = details.String
	}
	if lat.Valid && lng.Valid {
		ev.Location = &model.Location{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	return ev, nil
}
