package btcsync

import (
	"github.com/TEENet-io/btcrelay/btcaction"
	logger "github.com/sirupsen/logrus"
)

type ObserverRelayedTxAction struct {
	backend btcaction.RelayedTxStorage
	Ch      chan btcaction.RelayedTxAction // communication channel
}

func NewObserverRelayedTxAction(backend btcaction.RelayedTxStorage, bufferSize int) *ObserverRelayedTxAction {
	return &ObserverRelayedTxAction{
		backend: backend,
		Ch:      make(chan btcaction.RelayedTxAction, bufferSize),
	}
}

// GetNotifiedRelayedTx implements the RelayedTxObserver interface
// You should init it as a separate goroutine (with go)
func (s *ObserverRelayedTxAction) GetNotifiedRelayedTx() {
	for data := range s.Ch {
		if err := s.backend.AddRelayedTx(data); err != nil {
			logger.WithFields(logger.Fields{
				"tx":    data.TxHash,
				"block": data.BlockHash,
				"err":   err,
			}).Error("failed to journal relayed transaction")
		}
	}
}
