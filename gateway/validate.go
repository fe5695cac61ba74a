package gateway

import (
	"github.com/btcsuite/btcd/blockchain"
)

// ValidateAction checks what can be checked without ledger state. The
// ledger's own acceptance rules run afterwards in the applier.
func ValidateAction(a Action) error {
	switch act := a.(type) {
	case *ActionPushHeader:
		if act.Header == nil {
			return ErrEmptyHeader
		}
		if act.Height == 0 {
			return ErrInvalidHeight
		}
		return nil

	case *ActionPushTransaction:
		if act.Tx == nil {
			return ErrEmptyTransaction
		}
		proof := act.RelayedInfo.MerkleProof
		if proof == nil {
			return ErrEmptyProof
		}
		_, matched, _, err := proof.Extract()
		if err != nil {
			return ErrProofInvalid(err)
		}
		txHash := act.Tx.TxHash()
		found := false
		for i := range matched {
			if matched[i] == txHash {
				found = true
				break
			}
		}
		if !found {
			return ErrTxNotInProof
		}
		if blockchain.IsCoinBaseTx(act.Tx) {
			return ErrCoinbaseTx
		}
		if act.PrevTx != nil {
			if len(act.Tx.TxIn) == 0 || act.Tx.TxIn[0].PreviousOutPoint.Hash != act.PrevTx.TxHash() {
				return ErrPrevTxMismatch
			}
		}
		return nil

	default:
		return ErrUnknownAction
	}
}
