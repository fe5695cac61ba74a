package btcaction

import (
	"database/sql"

	"github.com/TEENet-io/btcrelay/database"
	logger "github.com/sirupsen/logrus"
)

const relayedTxColumns = `block_hash, tx_hash, relayed_at`

type SQLiteRelayedTxStorage struct {
	sc *database.StmtCache
}

func NewSQLiteRelayedTxStorage(db *sql.DB) (*SQLiteRelayedTxStorage, error) {
	storage := &SQLiteRelayedTxStorage{sc: database.NewStmtCache(db)}
	if err := storage.init(); err != nil {
		return nil, err
	}
	return storage, nil
}

func (s *SQLiteRelayedTxStorage) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS btc_action_relayed_tx (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		block_hash TEXT,
		tx_hash TEXT,
		relayed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_relayed_tx_hash ON btc_action_relayed_tx(tx_hash);
	CREATE INDEX IF NOT EXISTS idx_relayed_block_hash ON btc_action_relayed_tx(block_hash);
	`
	_, err := s.sc.DB().Exec(query)
	return err
}

func (s *SQLiteRelayedTxStorage) AddRelayedTx(tx RelayedTxAction) error {
	if hits, err := s.GetRelayedTxByTxHash(tx.TxHash); err != nil {
		return err
	} else if len(hits) > 0 {
		logger.WithField("txHash", tx.TxHash).Debug("relayed tx already recorded, skip.")
		return nil
	}
	stmt, err := s.sc.Prepare(`INSERT INTO btc_action_relayed_tx (` + relayedTxColumns + `) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(tx.BlockHash, tx.TxHash, tx.RelayedAt)
	return err
}

// Fetch a list of relayed txs by btc transaction hash.
func (s *SQLiteRelayedTxStorage) GetRelayedTxByTxHash(txHash string) ([]RelayedTxAction, error) {
	return s.query(`SELECT `+relayedTxColumns+` FROM btc_action_relayed_tx WHERE tx_hash = ?`, txHash)
}

// Fetch a list of relayed txs proven against one block.
func (s *SQLiteRelayedTxStorage) GetRelayedTxByBlockHash(blockHash string) ([]RelayedTxAction, error) {
	return s.query(`SELECT `+relayedTxColumns+` FROM btc_action_relayed_tx WHERE block_hash = ? ORDER BY id`, blockHash)
}

func (s *SQLiteRelayedTxStorage) CountRelayedTx() (int, error) {
	stmt, err := s.sc.Prepare(`SELECT COUNT(*) FROM btc_action_relayed_tx`)
	if err != nil {
		return 0, err
	}
	var n int
	err = stmt.QueryRow().Scan(&n)
	return n, err
}

func (s *SQLiteRelayedTxStorage) query(query string, args ...interface{}) ([]RelayedTxAction, error) {
	stmt, err := s.sc.Prepare(query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []RelayedTxAction
	for rows.Next() {
		var tx RelayedTxAction
		if err := rows.Scan(&tx.BlockHash, &tx.TxHash, &tx.RelayedAt); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
