package relay

import (
	"context"
	"fmt"

	"github.com/TEENet-io/btcrelay/agreement"
	"github.com/TEENet-io/btcrelay/btcman/classifier"
	"github.com/TEENet-io/btcrelay/btcman/merkle"
	"github.com/TEENet-io/btcrelay/common"
	"github.com/TEENet-io/btcrelay/gateway"
	"github.com/TEENet-io/btcrelay/offchain"
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/jellydator/ttlcache/v3"
	logger "github.com/sirupsen/logrus"
)

// detector builds the classifier for the latest trustee session. It is
// rebuilt on every pass, sessions rotate.
func (r *Relay) detector() (*classifier.Detector, error) {
	sessions, err := r.ledger.TrusteeSessionInfoLen()
	if err != nil {
		return nil, err
	}
	if sessions == 0 {
		return nil, ErrNoTrusteeSession
	}
	info, err := r.ledger.TrusteeSessionInfoOf(sessions - 1)
	if err != nil {
		return nil, err
	}

	network, err := r.ledger.NetworkID()
	if err != nil {
		return nil, err
	}
	params, err := common.BtcParamsByName(network)
	if err != nil {
		return nil, err
	}

	pair, err := classifier.NewTrusteePair(info, params)
	if err != nil {
		return nil, fmt.Errorf("trustee session %d: %w", sessions-1, err)
	}
	minDeposit, err := r.ledger.MinDeposit()
	if err != nil {
		return nil, err
	}
	return classifier.NewDetector(params, minDeposit, pair, nil), nil
}

// fetchPrevTx resolves the transaction spent by tx's first input.
func (r *Relay) fetchPrevTx(ctx context.Context, tx *wire.MsgTx) (*wire.MsgTx, error) {
	prevHash := tx.TxIn[0].PreviousOutPoint.Hash
	if item := r.prevTxCache.Get(prevHash); item != nil {
		return item.Value(), nil
	}

	var prev *wire.MsgTx
	err := attempt(r.cfg.PrevTxAttempts, func(n int) error {
		p, err := r.explorer.FetchTransaction(ctx, &prevHash)
		if err != nil {
			logger.WithFields(logger.Fields{
				"tx":      tx.TxHash().String(),
				"prev":    prevHash.String(),
				"attempt": n,
				"err":     err,
			}).Warn("filter: failed to fetch previous transaction")
			prometheusRelayFetchErrors.WithLabelValues("prev_tx").Inc()
			return err
		}
		prev = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.prevTxCache.Set(prevHash, prev, ttlcache.DefaultTTL)
	return prev, nil
}

type relevantTx struct {
	tx     *wire.MsgTx
	prevTx *wire.MsgTx
	meta   classifier.TxMeta
}

// keepLock renews the pass's lock once half of it is used, or always when
// force is set. An error means another worker may own the height now.
func keepLock(guard *offchain.Guard, force bool) error {
	if !force && !guard.Stale() {
		return nil
	}
	return guard.Renew()
}

// filterAndPush classifies every transaction of block and pushes the
// relevant ones with one shared proof. A failed fetch or a lost lock aborts
// the whole pass before anything is pushed.
func (r *Relay) filterAndPush(ctx context.Context, guard *offchain.Guard, blockHash chainhash.Hash, block *wire.MsgBlock) error {
	detector, err := r.detector()
	if err != nil {
		return err
	}
	r.prevTxCache.DeleteExpired()

	hashes := make([]chainhash.Hash, len(block.Transactions))
	mask := make([]bool, len(block.Transactions))
	var queue []relevantTx

	for i, tx := range block.Transactions {
		hashes[i] = tx.TxHash()
		if blockchain.IsCoinBaseTx(tx) || len(tx.TxIn) == 0 {
			continue
		}

		prev, err := r.fetchPrevTx(ctx, tx)
		if err != nil {
			return err
		}
		if err := keepLock(guard, false); err != nil {
			return err
		}
		meta := detector.Detect(tx, prev)
		if !meta.Type.Relayable() {
			continue
		}
		mask[i] = true
		queue = append(queue, relevantTx{tx: tx, prevTx: prev, meta: meta})
		logger.WithFields(logger.Fields{
			"tx":   hashes[i].String(),
			"type": meta.Type.String(),
		}).Debug("filter: relevant transaction")
	}

	if len(queue) == 0 {
		logger.WithField("block", blockHash.String()).Debug("filter: no relevant transaction")
		return nil
	}

	proof, err := merkle.Build(hashes, mask)
	if err != nil {
		return err
	}
	if err := keepLock(guard, true); err != nil {
		return err
	}
	info := agreement.RelayedTxInfo{BlockHash: blockHash, MerkleProof: proof}

	for _, q := range queue {
		fields := logger.Fields{
			"tx":    q.tx.TxHash().String(),
			"type":  q.meta.Type.String(),
			"block": blockHash.String(),
		}
		err := r.submitter.Submit(&gateway.ActionPushTransaction{
			Tx:          q.tx,
			RelayedInfo: info,
			PrevTx:      q.prevTx,
		})
		if err != nil {
			fields["err"] = err
			logger.WithFields(fields).Error("filter: push_transaction rejected")
			continue
		}
		prometheusRelayTxPushed.Inc()
		logger.WithFields(fields).Info("filter: push_transaction submitted")
	}
	return nil
}
