package trace

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
)

const defaultBatchSize = 4096

// SQLiteWriter buffers events and writes them to a trace_events table in
// batches.
type SQLiteWriter struct {
	mu        sync.Mutex
	db        *sql.DB
	insert    *sql.Stmt
	path      string
	session   string
	batchSize int
	pending   []Event
	seq       uint64
	err       error
}

// NewSQLiteWriter opens (or creates) the database at path. An empty path
// picks a fresh "txtrace_<xid>.sqlite3" file in the working directory. The
// writer flushes itself when the process exits through atexit.
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	session := xid.New().String()
	if path == "" {
		path = "txtrace_" + session + ".sqlite3"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trace db %s: %w", path, err)
	}

	w := &SQLiteWriter{
		db:        db,
		path:      path,
		session:   session,
		batchSize: defaultBatchSize,
	}
	if err := w.createTable(); err != nil {
		db.Close()
		return nil, err
	}

	atexit.Register(func() {
		if err := w.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "trace flush: %v\n", err)
		}
	})

	log.WithFields(log.Fields{"path": path, "session": session}).Info("kernel trace enabled")
	return w, nil
}

func (w *SQLiteWriter) createTable() error {
	_, err := w.db.Exec(`
		CREATE TABLE IF NOT EXISTS trace_events (
			session TEXT NOT NULL,
			seq     INTEGER NOT NULL,
			tick    INTEGER NOT NULL,
			kind    TEXT NOT NULL,
			thread  TEXT NOT NULL,
			arg     INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create trace_events: %w", err)
	}

	w.insert, err = w.db.Prepare(
		`INSERT INTO trace_events (session, seq, tick, kind, thread, arg) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	return nil
}

// Path returns the database file.
func (w *SQLiteWriter) Path() string { return w.path }

// Session returns the id stamped on every row written by this writer.
func (w *SQLiteWriter) Session() string { return w.session }

// SetBatchSize changes how many events are buffered before a flush.
func (w *SQLiteWriter) SetBatchSize(n int) {
	if n < 1 {
		n = 1
	}
	w.mu.Lock()
	w.batchSize = n
	w.mu.Unlock()
}

// Record buffers e. A failed automatic flush is kept and reported by Err.
func (w *SQLiteWriter) Record(e Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	e.Seq = w.seq
	w.pending = append(w.pending, e)
	if len(w.pending) >= w.batchSize {
		if err := w.flushLocked(); err != nil && w.err == nil {
			w.err = err
		}
	}
}

// Err returns the first error hit while flushing from Record.
func (w *SQLiteWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Flush writes all buffered events in one transaction.
func (w *SQLiteWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *SQLiteWriter) flushLocked() error {
	if len(w.pending) == 0 || w.db == nil {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin trace batch: %w", err)
	}
	stmt := tx.Stmt(w.insert)
	for _, e := range w.pending {
		if _, err := stmt.Exec(w.session, e.Seq, e.Tick, e.Kind.String(), e.Thread, e.Arg); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert trace event %v: %w", e, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trace batch: %w", err)
	}

	w.pending = w.pending[:0]
	return nil
}

// Count returns the number of rows stored for this writer's session.
func (w *SQLiteWriter) Count() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var n int
	err := w.db.QueryRow(`SELECT COUNT(*) FROM trace_events WHERE session = ?`, w.session).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count trace events: %w", err)
	}
	return n, nil
}

// Close flushes and closes the database.
func (w *SQLiteWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return nil
	}
	err := w.flushLocked()
	w.insert.Close()
	if cerr := w.db.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close trace db: %w", cerr)
	}
	w.db = nil
	return err
}
