package relay

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"

	"github.com/TEENet-io/btcrelay/agreement"
	logger "github.com/sirupsen/logrus"
)

type BroadcastOutcome int

const (
	BroadcastNone BroadcastOutcome = iota
	BroadcastSent
	BroadcastFailed
)

func (o BroadcastOutcome) String() string {
	switch o {
	case BroadcastSent:
		return "sent"
	case BroadcastFailed:
		return "failed"
	default:
		return "none"
	}
}

// broadcastWithdrawal posts the ledger's withdrawal once its signatures are
// complete. Nothing is remembered on failure, the proposal is read again on
// the next invocation.
func (r *Relay) broadcastWithdrawal(ctx context.Context) (string, BroadcastOutcome) {
	proposal, err := r.ledger.WithdrawalProposal()
	if err != nil {
		logger.WithField("err", err).Error("broadcast: failed to read withdrawal proposal")
		return "", BroadcastFailed
	}
	if proposal == nil || proposal.Tx == nil || proposal.SigState != agreement.VoteFinished {
		return "", BroadcastNone
	}

	var buf bytes.Buffer
	if err := proposal.Tx.Serialize(&buf); err != nil {
		logger.WithField("err", err).Error("broadcast: failed to serialize withdrawal")
		return "", BroadcastFailed
	}
	fields := logger.Fields{"tx": proposal.Tx.TxHash().String()}

	txid, err := r.explorer.SendRawTransaction(ctx, hex.EncodeToString(buf.Bytes()))
	if err != nil {
		fields["err"] = err
		var sendErr *agreement.SendRawTxError
		if errors.As(err, &sendErr) {
			fields["code"] = sendErr.Code
			fields["message"] = sendErr.Message
		}
		logger.WithFields(fields).Warn("broadcast: withdrawal not accepted")
		return "", BroadcastFailed
	}

	fields["txid"] = txid
	logger.WithFields(fields).Info("broadcast: withdrawal sent")
	return txid, BroadcastSent
}
