package gateway

import (
	"github.com/TEENet-io/btcrelay/signers"
	logger "github.com/sirupsen/logrus"
)

// Dispatcher accepts signed actions. *Module implements it.
type Dispatcher interface {
	IsAuthorized(id signers.AuthorityID) bool
	Dispatch(signed *SignedAction) error
}

// Submitter signs relay actions with a local key and dispatches them.
// It never retries, a rejected action is re-derived by a later invocation.
type Submitter struct {
	keystore   *signers.Keystore
	keyType    signers.KeyTypeID
	dispatcher Dispatcher
}

func NewSubmitter(keystore *signers.Keystore, dispatcher Dispatcher) *Submitter {
	return &Submitter{
		keystore:   keystore,
		keyType:    signers.RelayKeyType,
		dispatcher: dispatcher,
	}
}

// account picks the lowest local identity that the module accepts.
func (s *Submitter) account() (*signers.LocalSigner, error) {
	for _, id := range s.keystore.Public(s.keyType) {
		if !s.dispatcher.IsAuthorized(id) {
			continue
		}
		if signer, ok := s.keystore.Signer(s.keyType, id); ok {
			return signer, nil
		}
	}
	return nil, ErrNoLocalAccount
}

func (s *Submitter) Submit(action Action) error {
	signer, err := s.account()
	if err != nil {
		return err
	}

	hash, err := SigningHash(action)
	if err != nil {
		return err
	}
	sig, err := signer.Sign(hash[:])
	if err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"kind":   action.Kind().String(),
		"signer": signer.ID().String()[:8],
	}).Debug("submitting relay action")

	return s.dispatcher.Dispatch(&SignedAction{
		Action:    action,
		Signer:    signer.ID(),
		Signature: sig,
	})
}
