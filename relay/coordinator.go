package relay

import (
	"context"

	"github.com/TEENet-io/btcrelay/agreement"
	"github.com/btcsuite/btcd/wire"
	logger "github.com/sirupsen/logrus"
)

type PassOutcome int

const (
	PassNotRun PassOutcome = iota
	PassNoConfirmedIndex
	PassLocked
	PassAlreadyDone
	PassCompleted
	PassFailed
)

func (o PassOutcome) String() string {
	switch o {
	case PassNoConfirmedIndex:
		return "no_confirmed_index"
	case PassLocked:
		return "locked"
	case PassAlreadyDone:
		return "already_done"
	case PassCompleted:
		return "completed"
	case PassFailed:
		return "failed"
	default:
		return "not_run"
	}
}

// Proceed reports whether the header stage may run after this pass.
func (o PassOutcome) Proceed() bool {
	switch o {
	case PassNoConfirmedIndex, PassAlreadyDone, PassCompleted:
		return true
	default:
		return false
	}
}

// runPass relays the transactions of the ledger's confirmed block at most
// once per height. The storage lock is held for the whole pass and the
// checkpoint is only written under it.
func (r *Relay) runPass(ctx context.Context) PassOutcome {
	confirmed, err := r.ledger.ConfirmedIndex()
	if err != nil {
		logger.WithField("err", err).Error("filter: failed to read ledger confirmed index")
		return PassFailed
	}
	if confirmed == nil {
		logger.Debug("filter: ledger has no confirmed index")
		return PassNoConfirmedIndex
	}
	fields := logger.Fields{"height": confirmed.Height, "hash": confirmed.Hash.String()}

	guard, err := r.lock.TryLock()
	if err != nil {
		fields["err"] = err
		logger.WithFields(fields).Error("filter: failed to access storage lock")
		return PassFailed
	}
	if guard == nil {
		logger.WithFields(fields).Info("filter: another worker active")
		return PassLocked
	}
	defer func() {
		if err := guard.Release(); err != nil {
			logger.WithField("err", err).Warn("filter: storage lock release")
		}
	}()

	checkpoint, found, err := r.checkpoint.Get()
	if err != nil {
		fields["err"] = err
		logger.WithFields(fields).Error("filter: failed to read checkpoint")
		return PassFailed
	}
	if found && checkpoint >= confirmed.Height {
		if checkpoint > confirmed.Height {
			fields["checkpoint"] = checkpoint
			logger.WithFields(fields).Error("filter: checkpoint ahead of ledger confirmed height")
		}
		return PassAlreadyDone
	}

	block, err := r.fetchConfirmedBlock(ctx, confirmed)
	if err != nil {
		return PassFailed
	}

	if err := r.filterAndPush(ctx, guard, confirmed.Hash, block); err != nil {
		fields["err"] = err
		logger.WithFields(fields).Warn("filter: pass failed")
		return PassFailed
	}

	if err := keepLock(guard, true); err != nil {
		fields["err"] = err
		logger.WithFields(fields).Error("filter: storage lock lost, checkpoint not written")
		return PassFailed
	}
	if err := r.checkpoint.Advance(confirmed.Height); err != nil {
		fields["err"] = err
		logger.WithFields(fields).Error("filter: failed to advance checkpoint")
		return PassFailed
	}
	prometheusRelayCheckpoint.Set(float64(confirmed.Height))
	logger.WithFields(fields).Info("filter: confirmed block relayed")
	return PassCompleted
}

// fetchConfirmedBlock downloads the block the ledger confirmed. It asks by
// the ledger's hash, the proof has to match that header.
func (r *Relay) fetchConfirmedBlock(ctx context.Context, confirmed *agreement.BtcHeaderIndex) (*wire.MsgBlock, error) {
	var block *wire.MsgBlock
	err := attempt(r.cfg.ConfirmedBlockAttempts, func(n int) error {
		b, err := r.explorer.FetchBlock(ctx, &confirmed.Hash)
		if err != nil {
			logger.WithFields(logger.Fields{
				"height":  confirmed.Height,
				"hash":    confirmed.Hash.String(),
				"attempt": n,
				"err":     err,
			}).Warn("filter: failed to fetch confirmed block")
			prometheusRelayFetchErrors.WithLabelValues("confirmed_block").Inc()
			return err
		}
		block = b
		return nil
	})
	if err != nil {
		logger.WithField("height", confirmed.Height).Error("filter: confirmed block attempts exhausted")
		return nil, err
	}
	return block, nil
}
