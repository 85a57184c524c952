package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/player-project/playerd/pkg/wire"
)

// Record is one stored sample.
type Record struct {
	ID         int64
	Device     wire.DeviceAddr
	Type       wire.MsgType
	Subtype    uint8
	Timestamp  time.Time
	RecordedAt time.Time
	Data       []byte
}

// ErrStoreClosed is returned when a closed Store is closed again.
var ErrStoreClosed = errors.New("recorder: store already closed")

// Store keeps samples in SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// OpenStore opens or creates the database at path. Use ":memory:" for an
// in-memory database.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		port INTEGER NOT NULL,
		interface INTEGER NOT NULL,
		idx INTEGER NOT NULL,
		type INTEGER NOT NULL,
		subtype INTEGER NOT NULL,
		ts DATETIME NOT NULL,
		recorded_at DATETIME NOT NULL,
		data BLOB
	);

	CREATE INDEX IF NOT EXISTS idx_samples_device ON samples(port, interface, idx, ts);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.closed = true
	return s.db.Close()
}

// Insert stores r and returns its row id.
func (s *Store) Insert(r Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now()
	}
	res, err := s.db.Exec(`
		INSERT INTO samples (port, interface, idx, type, subtype, ts, recorded_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Device.Port, uint16(r.Device.Interface), r.Device.Index, uint8(r.Type), r.Subtype,
		r.Timestamp.UTC(), r.RecordedAt.UTC(), r.Data)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Count returns the number of stored samples.
func (s *Store) Count() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM samples`).Scan(&n)
	return n, err
}

// Samples returns up to limit samples of addr in timestamp order. A zero
// limit returns all of them.
func (s *Store) Samples(addr wire.DeviceAddr, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, type, subtype, ts, recorded_at, data
		FROM samples
		WHERE port = ? AND interface = ? AND idx = ?
		ORDER BY ts, id
		LIMIT ?
	`, addr.Port, uint16(addr.Interface), addr.Index, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r := Record{Device: addr}
		var typ uint8
		if err := rows.Scan(&r.ID, &typ, &r.Subtype, &r.Timestamp, &r.RecordedAt, &r.Data); err != nil {
			return nil, err
		}
		r.Type = wire.MsgType(typ)
		out = append(out, r)
	}
	return out, rows.Err()
}
