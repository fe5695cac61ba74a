package gateway

import (
	"errors"
	"fmt"

	"github.com/TEENet-io/btcrelay/signers"
)

var (
	ErrEmptyHeader            = errors.New("empty header")
	ErrInvalidHeight          = errors.New("header height must be positive")
	ErrEmptyTransaction       = errors.New("empty transaction")
	ErrEmptyProof             = errors.New("empty merkle proof")
	ErrTxNotInProof           = errors.New("transaction not proven by merkle proof")
	ErrCoinbaseTx             = errors.New("coinbase transactions are never relayed")
	ErrPrevTxMismatch         = errors.New("previous transaction is not spent by the first input")
	ErrUnknownAction          = errors.New("unknown action")
	ErrBadSignature           = errors.New("bad signature")
	ErrNotAuthorized          = errors.New("signer not in relay key set")
	ErrKeysAlreadyInitialized = errors.New("keys already initialized")
	ErrNoLocalAccount         = errors.New("no local account in relay key set")
)

func ErrSignerNotAuthorized(id signers.AuthorityID) error {
	return fmt.Errorf("%w: %s", ErrNotAuthorized, id)
}

func ErrProofInvalid(err error) error {
	return fmt.Errorf("%w: %v", ErrTxNotInProof, err)
}
