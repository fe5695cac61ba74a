package agreement

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// BtcLedger is the read side of the ledger's bitcoin bridge module.
// The relay consults it at the start of every stage and never caches
// its answers across invocations.
type BtcLedger interface {
	// Best header the ledger has recorded.
	BestIndex() (BtcHeaderIndex, error)

	// All recorded header hashes at the given height. More than one
	// hash is possible while a fork is unresolved.
	BlockHashFor(height uint32) ([]chainhash.Hash, error)

	// The header currently considered buried deep enough to act on.
	// nil when the ledger has not confirmed anything yet.
	ConfirmedIndex() (*BtcHeaderIndex, error)

	MinDeposit() (int64, error)

	// Bitcoin network name: "mainnet", "testnet3", "regtest" or "signet".
	NetworkID() (string, error)

	// nil when there is no proposal in flight.
	WithdrawalProposal() (*WithdrawalProposal, error)

	TrusteeSessionInfoLen() (uint32, error)
	TrusteeSessionInfoOf(session uint32) (*TrusteeSessionInfo, error)
}

// BtcLedgerApplier is the write side. Both calls apply atomically and fail
// fast, the ledger's checks are authoritative.
type BtcLedgerApplier interface {
	ApplyPushHeader(header *wire.BlockHeader) error
	ApplyPushTransaction(relayed *RelayedTx, prevTx *wire.MsgTx) error
}
