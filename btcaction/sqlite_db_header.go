/*
SQLiteHeaderStorage is the "storage" implementation of relayed bitcoin headers.

It uses SQLite as the underlying storage engine and may share its *sql.DB
with the other journal tables and the offchain store.
*/
package btcaction

import (
	"database/sql"

	"github.com/TEENet-io/btcrelay/database"
	logger "github.com/sirupsen/logrus"
)

const headerColumns = `block_number, block_hash, relayed_at`

type SQLiteHeaderStorage struct {
	sc *database.StmtCache
}

func NewSQLiteHeaderStorage(db *sql.DB) (*SQLiteHeaderStorage, error) {
	storage := &SQLiteHeaderStorage{sc: database.NewStmtCache(db)}
	if err := storage.init(); err != nil {
		return nil, err
	}
	return storage, nil
}

func (s *SQLiteHeaderStorage) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS btc_action_header (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		block_number INTEGER,
		block_hash TEXT,
		relayed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_header_block_number ON btc_action_header(block_number);
	CREATE INDEX IF NOT EXISTS idx_header_block_hash ON btc_action_header(block_hash);
	`
	_, err := s.sc.DB().Exec(query)
	return err
}

func (s *SQLiteHeaderStorage) AddHeader(header HeaderAction) error {
	// Protection of double adding.
	if hits, err := s.GetHeaderByHash(header.BlockHash); err != nil {
		return err
	} else if len(hits) > 0 {
		logger.WithField("blockHash", header.BlockHash).Debug("relayed header already recorded, skip.")
		return nil
	}
	stmt, err := s.sc.Prepare(`INSERT INTO btc_action_header (` + headerColumns + `) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(header.BlockNumber, header.BlockHash, header.RelayedAt)
	return err
}

func (s *SQLiteHeaderStorage) GetHeaderByHeight(height int) ([]HeaderAction, error) {
	return s.query(`SELECT `+headerColumns+` FROM btc_action_header WHERE block_number = ? ORDER BY id`, height)
}

func (s *SQLiteHeaderStorage) GetHeaderByHash(blockHash string) ([]HeaderAction, error) {
	return s.query(`SELECT `+headerColumns+` FROM btc_action_header WHERE block_hash = ?`, blockHash)
}

func (s *SQLiteHeaderStorage) LatestHeader() (*HeaderAction, error) {
	headers, err := s.query(`SELECT ` + headerColumns + ` FROM btc_action_header ORDER BY block_number DESC, id DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return nil, nil
	}
	return &headers[0], nil
}

func (s *SQLiteHeaderStorage) query(query string, args ...interface{}) ([]HeaderAction, error) {
	stmt, err := s.sc.Prepare(query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var headers []HeaderAction
	for rows.Next() {
		var h HeaderAction
		if err := rows.Scan(&h.BlockNumber, &h.BlockHash, &h.RelayedAt); err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, rows.Err()
}
