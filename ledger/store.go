package ledger

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ulikunitz/xz"
)

var ErrStateNotFound = errors.New("ledger state not found")

const storeSchema = `
CREATE TABLE IF NOT EXISTS ledger_states (
	name TEXT PRIMARY KEY,
	blob BLOB NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// Store persists exported ledger blobs in sqlite, xz-compressed. One row per
// named ledger; Save overwrites.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Save(name string, blob []byte) error {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("compress ledger state: %w", err)
	}
	if _, err := w.Write(blob); err != nil {
		return fmt.Errorf("compress ledger state: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("compress ledger state: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO ledger_states (name, blob, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		name, buf.Bytes(), time.Now().UTC(),
	)
	return err
}

func (s *Store) Load(name string) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT blob FROM ledger_states WHERE name = ?`, name).Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrStateNotFound, name)
	}
	if err != nil {
		return nil, err
	}

	r, err := xz.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress ledger state: %w", err)
	}
	blob, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress ledger state: %w", err)
	}
	return blob, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
