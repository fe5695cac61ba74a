// Global agreement on types shared between the relay and the ledger module.

package agreement

import (
	"fmt"

	"github.com/TEENet-io/btcrelay/btcman/merkle"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// BtcHeaderIndex points at a header recorded by the ledger.
type BtcHeaderIndex struct {
	Hash   chainhash.Hash
	Height uint32
}

func (idx BtcHeaderIndex) String() string {
	return fmt.Sprintf("%d:%s", idx.Height, idx.Hash)
}

// VoteResult is the signature collection state of a withdrawal proposal.
type VoteResult uint8

const (
	VoteUnfinished VoteResult = iota
	VoteFinished
)

func (v VoteResult) String() string {
	switch v {
	case VoteFinished:
		return "Finished"
	default:
		return "Unfinished"
	}
}

// WithdrawalProposal is the outgoing transaction the trustees are signing.
// Tx carries the collected witnesses once SigState is VoteFinished.
type WithdrawalProposal struct {
	Tx       *wire.MsgTx
	SigState VoteResult
}

// TrusteeSessionInfo holds the custody addresses of one trustee session,
// encoded for the ledger's bitcoin network.
type TrusteeSessionInfo struct {
	HotAddress  string
	ColdAddress string
}

// RelayedTxInfo is the evidence attached to a single relayed transaction.
type RelayedTxInfo struct {
	BlockHash   chainhash.Hash
	MerkleProof *merkle.PartialMerkleTree
}

// RelayedTx is a transaction together with the proof of its inclusion.
type RelayedTx struct {
	Tx   *wire.MsgTx
	Info RelayedTxInfo
}

func (r *RelayedTx) String() string {
	return fmt.Sprintf("{tx=%s, block=%s}", r.Tx.TxHash(), r.Info.BlockHash)
}
