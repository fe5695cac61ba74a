/*
Package relay is the bitcoin relay worker.

One invocation, run on every Interval-th host block, does in order:

 1. broadcast the ledger's finished withdrawal proposal;
 2. relay the relevant transactions of the ledger's confirmed block, at most
    once per height across workers sharing the offchain store;
 3. relay the next bitcoin header, if step 2 allows it.

Everything runs synchronously. Failures are logged and left to the next
invocation, which re-reads the ledger and the explorer from scratch.
*/
package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TEENet-io/btcrelay/agreement"
	"github.com/TEENet-io/btcrelay/offchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/jellydator/ttlcache/v3"
	logger "github.com/sirupsen/logrus"
)

// Report summarises one invocation.
type Report struct {
	HostBlock uint64
	Ran       bool

	Broadcast     BroadcastOutcome
	BroadcastTxID string
	Pass          PassOutcome
	Header        HeaderOutcome

	Started  time.Time
	Duration time.Duration
}

func (r *Report) String() string {
	return fmt.Sprintf("{block=%d, broadcast=%s, pass=%s, header=%s}",
		r.HostBlock, r.Broadcast, r.Pass, r.Header)
}

type Relay struct {
	cfg        *Config
	ledger     agreement.BtcLedger
	explorer   Explorer
	submitter  Submitter
	lock       *offchain.StorageLock
	checkpoint *offchain.Checkpoint

	prevTxCache *ttlcache.Cache[chainhash.Hash, *wire.MsgTx]

	mu   sync.RWMutex
	last *Report
}

func New(
	cfg *Config,
	ledger agreement.BtcLedger,
	explorer Explorer,
	submitter Submitter,
	store offchain.Storage,
) *Relay {
	initPrometheusMetrics()

	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Relay{
		cfg:        cfg,
		ledger:     ledger,
		explorer:   explorer,
		submitter:  submitter,
		lock:       offchain.NewStorageLock(store, offchain.LockKey, cfg.LockExpiry),
		checkpoint: offchain.NewCheckpoint(store),
		prevTxCache: ttlcache.New[chainhash.Hash, *wire.MsgTx](
			ttlcache.WithTTL[chainhash.Hash, *wire.MsgTx](cfg.PrevTxCacheTTL),
			ttlcache.WithDisableTouchOnHit[chainhash.Hash, *wire.MsgTx](),
		),
	}
}

// Checkpoint returns the last relayed confirmed height.
func (r *Relay) Checkpoint() (uint32, bool, error) {
	return r.checkpoint.Get()
}

// LastReport returns the report of the latest invocation that ran, or nil.
func (r *Relay) LastReport() *Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return nil
	}
	cp := *r.last
	return &cp
}

// OnBlock is called for every imported host block. It never returns an
// error and never panics, the host pipeline must not be disturbed.
func (r *Relay) OnBlock(ctx context.Context, number uint64) (report *Report) {
	report = &Report{HostBlock: number}
	if r.cfg.Interval > 1 && number%r.cfg.Interval != 0 {
		return report
	}

	report.Ran = true
	report.Started = time.Now()
	prometheusRelayInvocations.Inc()

	defer func() {
		if rec := recover(); rec != nil {
			logger.WithFields(logger.Fields{
				"block": number,
				"panic": rec,
			}).Error("relay: invocation panicked")
		}
		report.Duration = time.Since(report.Started)
		r.mu.Lock()
		r.last = report
		r.mu.Unlock()
	}()

	report.BroadcastTxID, report.Broadcast = r.broadcastWithdrawal(ctx)
	prometheusRelayBroadcast.WithLabelValues(report.Broadcast.String()).Inc()

	report.Pass = r.runPass(ctx)
	prometheusRelayPassOutcome.WithLabelValues(report.Pass.String()).Inc()

	if report.Pass.Proceed() {
		report.Header = r.relayNextHeader(ctx)
		prometheusRelayHeaderOutcome.WithLabelValues(report.Header.String()).Inc()
	}

	logger.WithFields(logger.Fields{
		"block":     number,
		"broadcast": report.Broadcast.String(),
		"pass":      report.Pass.String(),
		"header":    report.Header.String(),
	}).Debug("relay: invocation done")
	return report
}
