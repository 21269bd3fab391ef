package audit

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(event_type);
CREATE INDEX IF NOT EXISTS idx_audit_events_created ON audit_events(created_at);
`

// SQLiteSink appends events to a sqlite table. Append failures are logged
// and dropped, keeping the best-effort contract.
type SQLiteSink struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteSink(path string, logger *zap.Logger) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteSink{db: db, logger: logger}, nil
}

func (s *SQLiteSink) Append(eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("audit payload not serializable",
			zap.String("event_type", eventType), zap.Error(err))
		return
	}
	_, err = s.db.Exec(`INSERT INTO audit_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		eventType, string(data), time.Now().UTC())
	if err != nil {
		s.logger.Warn("audit append failed",
			zap.String("event_type", eventType), zap.Error(err))
	}
}

// Recent returns the newest events of a type, for the CLI.
func (s *SQLiteSink) Recent(eventType string, limit int) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT event_type, payload, created_at FROM audit_events
		WHERE event_type = ? ORDER BY id DESC LIMIT ?`, eventType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.EventType, &r.Payload, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Record is one persisted audit row.
type Record struct {
	EventType string
	Payload   string
	CreatedAt time.Time
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
