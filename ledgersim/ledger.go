/*
Package ledgersim is an in-memory stand-in for the ledger's bitcoin bridge
module. It records a header chain starting from one trusted header, derives
the confirmed header from a confirmation depth and accepts relayed
transactions whose merkle proof matches a recorded header.

It is used by tests and by the relay binary's demo mode. Proof of work and
deposit accounting are not checked.
*/
package ledgersim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/TEENet-io/btcrelay/agreement"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

var (
	ErrUnknownPrevHeader  = errors.New("previous header unknown")
	ErrDuplicateHeader    = errors.New("header already recorded")
	ErrUnknownBlock       = errors.New("relayed block unknown")
	ErrBlockNotConfirmed  = errors.New("relayed block not confirmed")
	ErrMerkleRootMismatch = errors.New("merkle proof does not match block")
	ErrTxNotProven        = errors.New("transaction not in merkle proof")
	ErrTxAlreadyRelayed   = errors.New("transaction already relayed")
)

type Config struct {
	Params *chaincfg.Params
	// The trusted header the chain starts from and its height.
	Genesis       *wire.BlockHeader
	GenesisHeight uint32
	// Depth at which a header counts as confirmed, 1 means the best header.
	Confirmations uint32
	MinDeposit    int64
}

type headerEntry struct {
	header *wire.BlockHeader
	height uint32
}

type SimLedger struct {
	mu sync.RWMutex

	params        *chaincfg.Params
	genesisHeight uint32
	confirmations uint32
	minDeposit    int64

	headers  map[chainhash.Hash]*headerEntry
	byHeight map[uint32][]chainhash.Hash
	best     agreement.BtcHeaderIndex

	sessions []agreement.TrusteeSessionInfo
	proposal *agreement.WithdrawalProposal
	relayed  map[chainhash.Hash]chainhash.Hash // txid -> block hash
}

func NewSimLedger(cfg *Config) *SimLedger {
	params := cfg.Params
	if params == nil {
		params = &chaincfg.RegressionNetParams
	}
	confirmations := cfg.Confirmations
	if confirmations == 0 {
		confirmations = 1
	}

	hash := cfg.Genesis.BlockHash()
	return &SimLedger{
		params:        params,
		genesisHeight: cfg.GenesisHeight,
		confirmations: confirmations,
		minDeposit:    cfg.MinDeposit,
		headers: map[chainhash.Hash]*headerEntry{
			hash: {header: cfg.Genesis, height: cfg.GenesisHeight},
		},
		byHeight: map[uint32][]chainhash.Hash{cfg.GenesisHeight: {hash}},
		best:     agreement.BtcHeaderIndex{Hash: hash, Height: cfg.GenesisHeight},
		relayed:  make(map[chainhash.Hash]chainhash.Hash),
	}
}

func (l *SimLedger) BestIndex() (agreement.BtcHeaderIndex, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.best, nil
}

func (l *SimLedger) BlockHashFor(height uint32) ([]chainhash.Hash, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]chainhash.Hash{}, l.byHeight[height]...), nil
}

// ConfirmedIndex walks confirmations-1 headers back from the best one.
func (l *SimLedger) ConfirmedIndex() (*agreement.BtcHeaderIndex, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.best.Height < l.genesisHeight+l.confirmations-1 {
		return nil, nil
	}
	entry := l.headers[l.best.Hash]
	for i := uint32(1); i < l.confirmations; i++ {
		entry = l.headers[entry.header.PrevBlock]
	}
	return &agreement.BtcHeaderIndex{Hash: entry.header.BlockHash(), Height: entry.height}, nil
}

func (l *SimLedger) MinDeposit() (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.minDeposit, nil
}

func (l *SimLedger) NetworkID() (string, error) {
	return l.params.Name, nil
}

func (l *SimLedger) WithdrawalProposal() (*agreement.WithdrawalProposal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.proposal, nil
}

func (l *SimLedger) TrusteeSessionInfoLen() (uint32, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint32(len(l.sessions)), nil
}

func (l *SimLedger) TrusteeSessionInfoOf(session uint32) (*agreement.TrusteeSessionInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if int(session) >= len(l.sessions) {
		return nil, fmt.Errorf("trustee session %d not found", session)
	}
	info := l.sessions[session]
	return &info, nil
}

func (l *SimLedger) AddTrusteeSession(info agreement.TrusteeSessionInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions = append(l.sessions, info)
}

func (l *SimLedger) SetWithdrawalProposal(p *agreement.WithdrawalProposal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.proposal = p
}

func (l *SimLedger) SetMinDeposit(v int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minDeposit = v
}

// IsRelayed returns the block a transaction was relayed with.
func (l *SimLedger) IsRelayed(txid chainhash.Hash) (chainhash.Hash, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	block, ok := l.relayed[txid]
	return block, ok
}

// ApplyPushHeader records a header that extends any recorded header. The
// best index moves only when the new header is strictly higher.
func (l *SimLedger) ApplyPushHeader(header *wire.BlockHeader) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hash := header.BlockHash()
	if _, ok := l.headers[hash]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHeader, hash)
	}
	prev, ok := l.headers[header.PrevBlock]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPrevHeader, header.PrevBlock)
	}

	height := prev.height + 1
	l.headers[hash] = &headerEntry{header: header, height: height}
	l.byHeight[height] = append(l.byHeight[height], hash)
	if height > l.best.Height {
		l.best = agreement.BtcHeaderIndex{Hash: hash, Height: height}
	}
	return nil
}

func (l *SimLedger) confirmedHeightLocked() (uint32, bool) {
	if l.best.Height < l.genesisHeight+l.confirmations-1 {
		return 0, false
	}
	return l.best.Height - (l.confirmations - 1), true
}

// ApplyPushTransaction accepts a transaction proven against a confirmed
// header. Relaying the pending withdrawal clears the proposal.
func (l *SimLedger) ApplyPushTransaction(relayed *agreement.RelayedTx, prevTx *wire.MsgTx) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	txid := relayed.Tx.TxHash()
	if _, ok := l.relayed[txid]; ok {
		return fmt.Errorf("%w: %s", ErrTxAlreadyRelayed, txid)
	}

	entry, ok := l.headers[relayed.Info.BlockHash]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBlock, relayed.Info.BlockHash)
	}
	confirmed, ok := l.confirmedHeightLocked()
	if !ok || entry.height > confirmed {
		return fmt.Errorf("%w: %s", ErrBlockNotConfirmed, relayed.Info.BlockHash)
	}

	if relayed.Info.MerkleProof == nil {
		return ErrMerkleRootMismatch
	}
	root, matched, _, err := relayed.Info.MerkleProof.Extract()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMerkleRootMismatch, err)
	}
	if root != entry.header.MerkleRoot {
		return ErrMerkleRootMismatch
	}
	proven := false
	for i := range matched {
		if matched[i] == txid {
			proven = true
			break
		}
	}
	if !proven {
		return ErrTxNotProven
	}

	l.relayed[txid] = relayed.Info.BlockHash
	if l.proposal != nil && l.proposal.Tx != nil && l.proposal.Tx.TxHash() == txid {
		l.proposal = nil
	}
	return nil
}
