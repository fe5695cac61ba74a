package btcsync

/*
This file implements the HeaderAction observer.
It stores the HeaderAction into backend.
*/

import (
	"github.com/TEENet-io/btcrelay/btcaction"
	logger "github.com/sirupsen/logrus"
)

type ObserverHeaderAction struct {
	backend btcaction.HeaderStorage
	Ch      chan btcaction.HeaderAction // communication channel
}

func NewObserverHeaderAction(backend btcaction.HeaderStorage, bufferSize int) *ObserverHeaderAction {
	return &ObserverHeaderAction{
		backend: backend,
		Ch:      make(chan btcaction.HeaderAction, bufferSize),
	}
}

// GetNotifiedHeader implements the HeaderObserver interface
// You should init it as a separate goroutine (with go)
func (s *ObserverHeaderAction) GetNotifiedHeader() {
	for data := range s.Ch {
		if err := s.backend.AddHeader(data); err != nil {
			logger.WithFields(logger.Fields{
				"height": data.BlockNumber,
				"hash":   data.BlockHash,
				"err":    err,
			}).Error("failed to journal relayed header")
		}
	}
}
