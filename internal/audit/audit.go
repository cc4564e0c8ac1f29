// Package audit appends a durable record of every RPC the gateway
// dispatches to an append-only SQLite table, off the hot path: callers hand
// a record to a buffered channel and a single writer goroutine drains it,
// matching the teacher's BandwidthMeter's background-sync shape.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/carabiner-tech/agentgateway/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS rpc_audit (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id        TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	operation       TEXT NOT NULL,
	ok              INTEGER NOT NULL,
	duration_ms     INTEGER NOT NULL,
	at              TEXT NOT NULL
);
`

// Record is one completed RPC call, as seen from the HTTP boundary.
type Record struct {
	AgentID        string
	ConversationID string
	Operation      string
	OK             bool
	DurationMS     int64
	At             time.Time
}

// Log owns the SQLite connection and the buffered channel background
// writer. A nil *Log is a valid no-op logger (audit disabled).
type Log struct {
	db   *sql.DB
	recs chan Record
	done chan struct{}
}

const bufferSize = 256

// Open creates (or reuses) the SQLite file at dsn, ensures the schema
// exists, and starts the background writer. An empty dsn is not valid here;
// callers should skip calling Open entirely when auditing is disabled.
func Open(dsn string) (*Log, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: set WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}

	l := &Log{
		db:   db,
		recs: make(chan Record, bufferSize),
		done: make(chan struct{}),
	}
	go l.run()
	return l, nil
}

func (l *Log) run() {
	defer close(l.done)
	for rec := range l.recs {
		if _, err := l.db.Exec(
			`INSERT INTO rpc_audit (agent_id, conversation_id, operation, ok, duration_ms, at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.AgentID, rec.ConversationID, rec.Operation, rec.OK, rec.DurationMS,
			rec.At.UTC().Format(time.RFC3339),
		); err != nil {
			logger.Warn("audit: write failed", "err", err)
		}
	}
}

// Append queues rec for the writer goroutine. Never blocks the RPC hot
// path: a full buffer drops the record with a logged warning rather than
// applying backpressure to send_rpc.
func (l *Log) Append(rec Record) {
	if l == nil {
		return
	}
	select {
	case l.recs <- rec:
	default:
		logger.Warn("audit: buffer full, dropping record", "operation", rec.Operation)
	}
}

// Close drains the buffer and closes the database. Safe to call on a nil
// *Log.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	close(l.recs)
	<-l.done
	return l.db.Close()
}
