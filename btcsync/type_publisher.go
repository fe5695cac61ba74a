package btcsync

import (
	"context"
	"sync"
	"time"

	"github.com/TEENet-io/btcrelay/btcaction"
	"github.com/TEENet-io/btcrelay/gateway"
	"github.com/ethereum/go-ethereum/event"
	logger "github.com/sirupsen/logrus"
)

const eventBufferSize = 64

// EventSource is the event side of the ledger's bridge module.
// *gateway.Module implements it.
type EventSource interface {
	SubscribeNewBlock(ch chan<- gateway.NewBtcBlock) event.Subscription
	SubscribeNewTransaction(ch chan<- gateway.NewBtcTransaction) event.Subscription
}

// PublisherService is a concurrent-safe service that
// could "Notify" channels of observers.
// Please "Register" observers via RegisterXXXObserver before Notify.
type PublisherService struct {
	HeaderObservers    []chan btcaction.HeaderAction
	RelayedTxObservers []chan btcaction.RelayedTxAction
	mu                 sync.Mutex
	now                func() time.Time
}

// NewPublisherService creates a new PublisherService
// Currently the observers are empty.
// Add some observers via register.
func NewPublisherService() *PublisherService {
	return &PublisherService{
		HeaderObservers:    make([]chan btcaction.HeaderAction, 0),
		RelayedTxObservers: make([]chan btcaction.RelayedTxAction, 0),
		now:                time.Now,
	}
}

func (m *PublisherService) RegisterHeaderObserver(observer chan btcaction.HeaderAction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.HeaderObservers = append(m.HeaderObservers, observer)
}

func (m *PublisherService) RegisterRelayedTxObserver(observer chan btcaction.RelayedTxAction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RelayedTxObservers = append(m.RelayedTxObservers, observer)
}

func (m *PublisherService) NotifyHeader(ha btcaction.HeaderAction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, observer := range m.HeaderObservers {
		select {
		case observer <- ha:
		default:
			// Handle the case where the observer's channel is full
			go func(obs chan btcaction.HeaderAction) {
				obs <- ha
			}(observer)
		}
	}
}

func (m *PublisherService) NotifyRelayedTx(ra btcaction.RelayedTxAction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, observer := range m.RelayedTxObservers {
		select {
		case observer <- ra:
		default:
			go func(obs chan btcaction.RelayedTxAction) {
				obs <- ra
			}(observer)
		}
	}
}

// Start subscribes to the source's feeds before returning and forwards
// every event to the observers until ctx is done. The returned channel
// receives the reason the forwarding stopped.
func (m *PublisherService) Start(ctx context.Context, source EventSource) <-chan error {
	blocks := make(chan gateway.NewBtcBlock, eventBufferSize)
	txs := make(chan gateway.NewBtcTransaction, eventBufferSize)
	blockSub := source.SubscribeNewBlock(blocks)
	txSub := source.SubscribeNewTransaction(txs)

	errc := make(chan error, 1)
	go func() {
		defer blockSub.Unsubscribe()
		defer txSub.Unsubscribe()
		errc <- m.forward(ctx, blocks, txs, blockSub, txSub)
	}()
	return errc
}

func (m *PublisherService) forward(
	ctx context.Context,
	blocks <-chan gateway.NewBtcBlock,
	txs <-chan gateway.NewBtcTransaction,
	blockSub, txSub event.Subscription,
) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-blockSub.Err():
			logger.WithField("err", err).Warn("block feed subscription ended")
			return err

		case err := <-txSub.Err():
			logger.WithField("err", err).Warn("transaction feed subscription ended")
			return err

		case ev := <-blocks:
			m.NotifyHeader(btcaction.HeaderAction{
				Basic:       btcaction.Basic{BlockHash: ev.Hash.String(), RelayedAt: m.now().Unix()},
				BlockNumber: int(ev.Height),
			})

		case ev := <-txs:
			m.NotifyRelayedTx(btcaction.RelayedTxAction{
				Basic:  btcaction.Basic{BlockHash: ev.BlockHash.String(), RelayedAt: m.now().Unix()},
				TxHash: ev.Hash.String(),
			})
		}
	}
}
