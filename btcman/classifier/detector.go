/*
Package classifier decides whether a bitcoin transaction concerns the bridge.

Detection is a pure function of the transaction, the transaction spent by
its first input, the trustee addresses and the minimum deposit. It performs
no I/O so the relay can call it inline.
*/
package classifier

import (
	"fmt"

	"github.com/TEENet-io/btcrelay/agreement"
	"github.com/TEENet-io/btcrelay/common"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

type TxType uint8

const (
	Irrelevance TxType = iota
	Deposit
	Withdrawal
	HotAndCold
	TrusteeTransition
)

func (t TxType) String() string {
	switch t {
	case Deposit:
		return "Deposit"
	case Withdrawal:
		return "Withdrawal"
	case HotAndCold:
		return "HotAndCold"
	case TrusteeTransition:
		return "TrusteeTransition"
	default:
		return "Irrelevance"
	}
}

// Relayable reports whether the ledger needs to see transactions of this type.
func (t TxType) Relayable() bool {
	return t == Deposit || t == Withdrawal
}

// TrusteePair is the custody address pair of one trustee session.
type TrusteePair struct {
	Hot  btcutil.Address
	Cold btcutil.Address
}

func NewTrusteePair(info *agreement.TrusteeSessionInfo, params *chaincfg.Params) (*TrusteePair, error) {
	hot, err := common.DecodeBtcAddress(info.HotAddress, params)
	if err != nil {
		return nil, fmt.Errorf("invalid trustee hot address: %w", err)
	}
	cold, err := common.DecodeBtcAddress(info.ColdAddress, params)
	if err != nil {
		return nil, fmt.Errorf("invalid trustee cold address: %w", err)
	}
	return &TrusteePair{Hot: hot, Cold: cold}, nil
}

func (p *TrusteePair) contains(addr string) bool {
	return addr == p.Hot.EncodeAddress() || addr == p.Cold.EncodeAddress()
}

// DepositInfo is filled for Deposit transactions.
type DepositInfo struct {
	Value int64
	// Empty when the transaction carries no valid OP_RETURN account.
	Account  string
	Referral string
	// Address that paid the deposit, empty if it could not be derived.
	InputAddress string
}

type TxMeta struct {
	Type    TxType
	Deposit *DepositInfo
}

type Detector struct {
	Params     *chaincfg.Params
	MinDeposit int64
	Current    *TrusteePair
	// Set only while a trustee transition is in progress.
	Previous *TrusteePair
}

func NewDetector(params *chaincfg.Params, minDeposit int64, current, previous *TrusteePair) *Detector {
	return &Detector{
		Params:     params,
		MinDeposit: minDeposit,
		Current:    current,
		Previous:   previous,
	}
}

func (d *Detector) outputAddress(out *wire.TxOut) string {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(out.PkScript, d.Params)
	if err != nil || len(addrs) != 1 {
		return ""
	}
	return addrs[0].EncodeAddress()
}

// inputAddress resolves the address spent by tx's first input. prevTx must
// be the transaction that created that output.
func (d *Detector) inputAddress(tx, prevTx *wire.MsgTx) string {
	if prevTx == nil || len(tx.TxIn) == 0 {
		return ""
	}
	outPoint := tx.TxIn[0].PreviousOutPoint
	if prevTx.TxHash() != outPoint.Hash || int(outPoint.Index) >= len(prevTx.TxOut) {
		return ""
	}
	return d.outputAddress(prevTx.TxOut[outPoint.Index])
}

// allOutputsTo reports whether every non OP_RETURN output pays pair.
func (d *Detector) allOutputsTo(tx *wire.MsgTx, pair *TrusteePair) bool {
	paid := false
	for _, out := range tx.TxOut {
		if txscript.IsNullData(out.PkScript) {
			continue
		}
		if !pair.contains(d.outputAddress(out)) {
			return false
		}
		paid = true
	}
	return paid
}

// Detect classifies tx. Coinbase transactions should be filtered out by the
// caller, they have no spent predecessor.
func (d *Detector) Detect(tx *wire.MsgTx, prevTx *wire.MsgTx) TxMeta {
	if d.Current == nil {
		return TxMeta{Type: Irrelevance}
	}

	input := d.inputAddress(tx, prevTx)
	if input != "" {
		if d.Current.contains(input) {
			if d.allOutputsTo(tx, d.Current) {
				return TxMeta{Type: HotAndCold}
			}
			return TxMeta{Type: Withdrawal}
		}
		if d.Previous != nil && d.Previous.contains(input) && d.allOutputsTo(tx, d.Current) {
			return TxMeta{Type: TrusteeTransition}
		}
	}

	return d.detectDeposit(tx, input)
}

func (d *Detector) detectDeposit(tx *wire.MsgTx, input string) TxMeta {
	hot := d.Current.Hot.EncodeAddress()

	var value int64
	var account *common.DepositAccount
	for _, out := range tx.TxOut {
		if txscript.IsNullData(out.PkScript) {
			if account == nil {
				if acc, err := common.DecodeAccountOpReturn(out.PkScript); err == nil {
					account = acc
				}
			}
			continue
		}
		if d.outputAddress(out) == hot {
			value += out.Value
		}
	}

	if value <= 0 || value < d.MinDeposit {
		return TxMeta{Type: Irrelevance}
	}

	info := &DepositInfo{Value: value, InputAddress: input}
	if account != nil {
		info.Account = account.Account
		info.Referral = account.Referral
	}
	return TxMeta{Type: Deposit, Deposit: info}
}
