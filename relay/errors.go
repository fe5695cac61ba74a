package relay

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var (
	ErrNoTrusteeSession = errors.New("no trustee session")
	ErrHeaderMismatch   = errors.New("header does not chain onto ledger")
)

func errHeaderMismatch(height uint32, prev chainhash.Hash) error {
	return fmt.Errorf("%w: height=%d, prev=%s", ErrHeaderMismatch, height, prev)
}
