/*
Package gateway is the relay-facing surface of the ledger's bitcoin bridge
module: the authorised relay key set, the signed action calls and the
events emitted once an action has been applied.
*/
package gateway

import (
	"sync"

	"github.com/TEENet-io/btcrelay/agreement"
	"github.com/TEENet-io/btcrelay/common"
	"github.com/TEENet-io/btcrelay/signers"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/event"
	logger "github.com/sirupsen/logrus"
)

// NewBtcBlock is emitted after a header has been accepted.
type NewBtcBlock struct {
	Height uint32
	Hash   chainhash.Hash
}

// NewBtcTransaction is emitted after a relayed transaction has been accepted.
type NewBtcTransaction struct {
	Hash      chainhash.Hash
	BlockHash chainhash.Hash
}

type Module struct {
	mu   sync.RWMutex
	keys []signers.AuthorityID

	applier agreement.BtcLedgerApplier

	blockFeed event.Feed
	txFeed    event.Feed
}

func NewModule(applier agreement.BtcLedgerApplier) *Module {
	return &Module{applier: applier}
}

// Keys returns a copy of the authorised key set.
func (m *Module) Keys() []signers.AuthorityID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]signers.AuthorityID{}, m.keys...)
}

func (m *Module) IsAuthorized(id signers.AuthorityID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, k := range m.keys {
		if k == id {
			return true
		}
	}
	return false
}

func (m *Module) SubscribeNewBlock(ch chan<- NewBtcBlock) event.Subscription {
	return m.blockFeed.Subscribe(ch)
}

func (m *Module) SubscribeNewTransaction(ch chan<- NewBtcTransaction) event.Subscription {
	return m.txFeed.Subscribe(ch)
}

// Dispatch authenticates a signed action, validates it and hands it to the
// ledger. Events are sent only for applied actions.
func (m *Module) Dispatch(signed *SignedAction) error {
	if signed == nil || signed.Action == nil {
		return ErrUnknownAction
	}
	if !m.IsAuthorized(signed.Signer) {
		return ErrSignerNotAuthorized(signed.Signer)
	}
	hash, err := SigningHash(signed.Action)
	if err != nil {
		return err
	}
	if !signers.Verify(signed.Signer, hash[:], signed.Signature) {
		return ErrBadSignature
	}
	if err := ValidateAction(signed.Action); err != nil {
		return err
	}

	switch act := signed.Action.(type) {
	case *ActionPushHeader:
		if err := m.applier.ApplyPushHeader(act.Header); err != nil {
			return err
		}
		ev := NewBtcBlock{Height: act.Height, Hash: act.Header.BlockHash()}
		logger.WithFields(logger.Fields{
			"height": ev.Height,
			"hash":   ev.Hash.String(),
			"signer": common.Shorten(signed.Signer.String(), 8),
		}).Info("new btc block relayed")
		m.blockFeed.Send(ev)

	case *ActionPushTransaction:
		relayed := &agreement.RelayedTx{Tx: act.Tx, Info: act.RelayedInfo}
		if err := m.applier.ApplyPushTransaction(relayed, act.PrevTx); err != nil {
			return err
		}
		ev := NewBtcTransaction{Hash: act.Tx.TxHash(), BlockHash: act.RelayedInfo.BlockHash}
		logger.WithFields(logger.Fields{
			"hash":   ev.Hash.String(),
			"block":  ev.BlockHash.String(),
			"signer": common.Shorten(signed.Signer.String(), 8),
		}).Info("new btc transaction relayed")
		m.txFeed.Send(ev)

	default:
		return ErrUnknownAction
	}
	return nil
}
