package btcaction

type Basic struct {
	BlockHash string
	RelayedAt int64 // unix seconds, local clock
}

// HeaderAction is a bitcoin header the ledger accepted from a relay.
// Competing forks may put several headers at one height.
type HeaderAction struct {
	Basic
	BlockNumber int
}

// RelayedTxAction is a bitcoin transaction the ledger accepted together
// with its merkle proof against BlockHash.
type RelayedTxAction struct {
	Basic
	TxHash string
}

// HeaderStorage is an interface for storing and querying HeaderAction.
type HeaderStorage interface {
	// AddHeader adds a new HeaderAction, a known block hash is skipped.
	AddHeader(header HeaderAction) error

	// GetHeaderByHeight queries HeaderAction by BlockNumber.
	GetHeaderByHeight(height int) ([]HeaderAction, error)

	// GetHeaderByHash queries HeaderAction by BlockHash.
	GetHeaderByHash(blockHash string) ([]HeaderAction, error)

	// LatestHeader returns the highest recorded HeaderAction, nil if none.
	LatestHeader() (*HeaderAction, error)
}

// RelayedTxStorage is an interface for storing and querying RelayedTxAction.
type RelayedTxStorage interface {
	// AddRelayedTx adds a new RelayedTxAction, a known tx hash is skipped.
	AddRelayedTx(tx RelayedTxAction) error

	// GetRelayedTxByTxHash queries RelayedTxAction by TxHash.
	GetRelayedTxByTxHash(txHash string) ([]RelayedTxAction, error)

	// GetRelayedTxByBlockHash queries RelayedTxAction by BlockHash.
	GetRelayedTxByBlockHash(blockHash string) ([]RelayedTxAction, error)

	// CountRelayedTx returns the number of recorded transactions.
	CountRelayedTx() (int, error)
}
