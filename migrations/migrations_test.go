package migrations

import (
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

func newVersionedDB(t *testing.T, version int64) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		t.Fatalf("set dialect: %v", err)
	}
	if err := goose.UpTo(db, ".", version); err != nil {
		t.Fatalf("migrate to version %d: %v", version, err)
	}
	return db
}

type eventRow struct {
	StartTime int64
	Acceptor  string
	Phone     string
	State     string
}

func TestUpgradePreservesEvents(t *testing.T) {
	db := newVersionedDB(t, 1)

	want := []eventRow{
		{StartTime: 100, Acceptor: "phone-1", Phone: "+111", State: "processed"},
		{StartTime: 200, Acceptor: "phone-1", Phone: "+222", State: "pending"},
	}
	for _, r := range want {
		if _, err := db.Exec(
			`INSERT INTO events (start_time, acceptor, phone, state) VALUES (?, ?, ?, ?)`,
			r.StartTime, r.Acceptor, r.Phone, r.State,
		); err != nil {
			t.Fatalf("insert row: %v", err)
		}
	}

	if err := goose.UpByOne(db, "."); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	version, err := goose.GetDBVersion(db)
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if version != 2 {
		t.Fatalf("version = %d, want 2", version)
	}

	rows, err := db.Query(
		`SELECT start_time, acceptor, phone, state, details, process_time
		 FROM events ORDER BY start_time`)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var got []eventRow
	for rows.Next() {
		var r eventRow
		var details sql.NullString
		var processTime sql.NullInt64
		if err := rows.Scan(&r.StartTime, &r.Acceptor, &r.Phone, &r.State,
			&details, &processTime); err != nil {
			t.Fatalf("scan row: %v", err)
		}
		// Columns absent from the old schema come back null.
		if details.Valid {
			t.Errorf("row %d: details = %q, want null", r.StartTime, details.String)
		}
		if processTime.Valid {
			t.Errorf("row %d: process_time = %d, want null", r.StartTime, processTime.Int64)
		}
		got = append(got, r)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows after upgrade mismatch (-want +got):\n%s", diff)
	}
}

func TestDowngradePreservesEvents(t *testing.T) {
	db := newVersionedDB(t, 2)

	if _, err := db.Exec(
		`INSERT INTO events (start_time, acceptor, phone, state, details, process_time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		300, "phone-1", "+333", "processed", "some context", 301,
	); err != nil {
		t.Fatalf("insert row: %v", err)
	}

	if err := goose.Down(db, "."); err != nil {
		t.Fatalf("migrate down: %v", err)
	}

	var got eventRow
	err := db.QueryRow(
		`SELECT start_time, acceptor, phone, state FROM events`,
	).Scan(&got.StartTime, &got.Acceptor, &got.Phone, &got.State)
	if err != nil {
		t.Fatalf("query row: %v", err)
	}
	want := eventRow{StartTime: 300, Acceptor: "phone-1", Phone: "+333", State: "processed"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("row after downgrade mismatch (-want +got):\n%s", diff)
	}
}
