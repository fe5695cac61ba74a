package offchain

import (
	"bytes"
	"database/sql"

	"github.com/TEENet-io/btcrelay/database"
)

const offchainTable = `CREATE TABLE IF NOT EXISTS offchain (
	key BLOB PRIMARY KEY NOT NULL,
	value BLOB NOT NULL
);`

type SQLiteStorage struct {
	db        *sql.DB
	stmtCache *database.StmtCache
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLiteStorageFromDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStorageFromDB uses an already opened database, Close closes it.
func NewSQLiteStorageFromDB(db *sql.DB) (*SQLiteStorage, error) {
	if _, err := db.Exec(offchainTable); err != nil {
		return nil, err
	}
	return &SQLiteStorage{
		db:        db,
		stmtCache: database.NewStmtCache(db),
	}, nil
}

func (s *SQLiteStorage) Get(key []byte) ([]byte, bool, error) {
	stmt, err := s.stmtCache.Prepare(`SELECT value FROM offchain WHERE key = ?`)
	if err != nil {
		return nil, false, err
	}

	var value []byte
	if err := stmt.QueryRow(key).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (s *SQLiteStorage) Set(key, value []byte) error {
	stmt, err := s.stmtCache.Prepare(`INSERT OR REPLACE INTO offchain (key, value) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(key, value)
	return err
}

func (s *SQLiteStorage) CompareAndSet(key, old, new []byte) (bool, error) {
	var (
		query string
		args  []interface{}
	)
	switch {
	case old == nil && new == nil:
		_, found, err := s.Get(key)
		return !found, err
	case old == nil:
		query = `INSERT OR IGNORE INTO offchain (key, value) VALUES (?, ?)`
		args = []interface{}{key, new}
	case new == nil:
		query = `DELETE FROM offchain WHERE key = ? AND value = ?`
		args = []interface{}{key, old}
	default:
		if bytes.Equal(old, new) {
			value, found, err := s.Get(key)
			return found && bytes.Equal(value, old), err
		}
		query = `UPDATE offchain SET value = ? WHERE key = ? AND value = ?`
		args = []interface{}{new, key, old}
	}

	stmt, err := s.stmtCache.Prepare(query)
	if err != nil {
		return false, err
	}
	res, err := stmt.Exec(args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStorage) Close() error {
	s.stmtCache.Clear()
	return s.db.Close()
}
