package relay

import (
	"context"

	"github.com/TEENet-io/btcrelay/gateway"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	logger "github.com/sirupsen/logrus"
)

type HeaderOutcome int

const (
	HeaderNotRun HeaderOutcome = iota
	HeaderNotYetProduced
	HeaderSubmitted
	HeaderSubmitFailed
	HeaderAttemptsExhausted
	HeaderLedgerUnavailable
)

func (o HeaderOutcome) String() string {
	switch o {
	case HeaderNotYetProduced:
		return "not_yet_produced"
	case HeaderSubmitted:
		return "submitted"
	case HeaderSubmitFailed:
		return "submit_failed"
	case HeaderAttemptsExhausted:
		return "attempts_exhausted"
	case HeaderLedgerUnavailable:
		return "ledger_unavailable"
	default:
		return "not_run"
	}
}

func containsHash(hashes []chainhash.Hash, h chainhash.Hash) bool {
	for i := range hashes {
		if hashes[i] == h {
			return true
		}
	}
	return false
}

// relayNextHeader pushes the header following the ledger's best one. A
// header whose parent the ledger has not recorded makes it step one height
// back, a height the explorer does not know yet ends the stage at once.
func (r *Relay) relayNextHeader(ctx context.Context) HeaderOutcome {
	best, err := r.ledger.BestIndex()
	if err != nil {
		logger.WithField("err", err).Error("header: failed to read ledger best index")
		return HeaderLedgerUnavailable
	}

	next := best.Height + 1
	outcome := HeaderAttemptsExhausted
	_ = attempt(r.cfg.HeaderAttempts, func(n int) error {
		fields := logger.Fields{"height": next, "attempt": n}

		hash, found, err := r.explorer.FetchBlockHash(ctx, next)
		if err != nil {
			fields["err"] = err
			logger.WithFields(fields).Warn("header: failed to fetch block hash")
			prometheusRelayFetchErrors.WithLabelValues("header").Inc()
			return err
		}
		if !found {
			logger.WithFields(fields).Debug("header: block not produced yet")
			outcome = HeaderNotYetProduced
			return nil
		}
		fields["hash"] = hash.String()

		block, err := r.explorer.FetchBlock(ctx, hash)
		if err != nil {
			fields["err"] = err
			logger.WithFields(fields).Warn("header: failed to fetch block")
			prometheusRelayFetchErrors.WithLabelValues("header").Inc()
			return err
		}

		recorded, err := r.ledger.BlockHashFor(next - 1)
		if err != nil {
			fields["err"] = err
			logger.WithFields(fields).Error("header: failed to read ledger hashes")
			return err
		}
		if !containsHash(recorded, block.Header.PrevBlock) {
			fields["prev"] = block.Header.PrevBlock.String()
			logger.WithFields(fields).Warn("header: parent not recorded by ledger, stepping back")
			err := errHeaderMismatch(next, block.Header.PrevBlock)
			if next > 1 {
				next--
			}
			return err
		}

		if err := r.submitter.Submit(&gateway.ActionPushHeader{Height: next, Header: &block.Header}); err != nil {
			fields["err"] = err
			logger.WithFields(fields).Error("header: push_header rejected")
			outcome = HeaderSubmitFailed
			return nil
		}
		logger.WithFields(fields).Info("header: push_header submitted")
		outcome = HeaderSubmitted
		return nil
	})

	if outcome == HeaderAttemptsExhausted {
		logger.WithFields(logger.Fields{
			"best":     best.Height,
			"attempts": r.cfg.HeaderAttempts,
		}).Warn("header: attempts exhausted")
	}
	return outcome
}
