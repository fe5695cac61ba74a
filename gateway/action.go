package gateway

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/TEENet-io/btcrelay/agreement"
	"github.com/TEENet-io/btcrelay/signers"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/crypto/blake2b"
)

type ActionKind uint8

const (
	KindPushHeader ActionKind = iota + 1
	KindPushTransaction
)

func (k ActionKind) String() string {
	switch k {
	case KindPushHeader:
		return "push_header"
	case KindPushTransaction:
		return "push_transaction"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Action is a relay call to the bridge module.
type Action interface {
	Kind() ActionKind
	// Encode is the canonical byte form that gets signed.
	Encode() ([]byte, error)
}

type ActionPushHeader struct {
	Height uint32
	Header *wire.BlockHeader
}

func (a *ActionPushHeader) Kind() ActionKind { return KindPushHeader }

func (a *ActionPushHeader) Encode() ([]byte, error) {
	if a.Header == nil {
		return nil, ErrEmptyHeader
	}
	var buf bytes.Buffer
	buf.WriteByte(byte(KindPushHeader))
	if err := binary.Write(&buf, binary.BigEndian, a.Height); err != nil {
		return nil, err
	}
	if err := a.Header.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *ActionPushHeader) String() string {
	if a.Header == nil {
		return fmt.Sprintf("push_header{height=%d}", a.Height)
	}
	return fmt.Sprintf("push_header{height=%d, hash=%s}", a.Height, a.Header.BlockHash())
}

type ActionPushTransaction struct {
	Tx          *wire.MsgTx
	RelayedInfo agreement.RelayedTxInfo
	// nil is allowed, the ledger then cannot resolve the input address.
	PrevTx *wire.MsgTx
}

func (a *ActionPushTransaction) Kind() ActionKind { return KindPushTransaction }

func (a *ActionPushTransaction) Encode() ([]byte, error) {
	if a.Tx == nil {
		return nil, ErrEmptyTransaction
	}
	proof := a.RelayedInfo.MerkleProof
	if proof == nil {
		return nil, ErrEmptyProof
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(KindPushTransaction))
	if err := a.Tx.Serialize(&buf); err != nil {
		return nil, err
	}
	buf.Write(a.RelayedInfo.BlockHash[:])

	if err := binary.Write(&buf, binary.BigEndian, proof.TxCount); err != nil {
		return nil, err
	}
	if err := wire.WriteVarInt(&buf, 0, uint64(len(proof.Hashes))); err != nil {
		return nil, err
	}
	for i := range proof.Hashes {
		buf.Write(proof.Hashes[i][:])
	}
	if err := wire.WriteVarInt(&buf, 0, uint64(len(proof.Flags))); err != nil {
		return nil, err
	}
	if err := wire.WriteVarBytes(&buf, 0, proof.FlagBytes()); err != nil {
		return nil, err
	}

	if a.PrevTx == nil {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		if err := a.PrevTx.Serialize(&buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (a *ActionPushTransaction) String() string {
	if a.Tx == nil {
		return "push_transaction{}"
	}
	return fmt.Sprintf("push_transaction{tx=%s, block=%s}", a.Tx.TxHash(), a.RelayedInfo.BlockHash)
}

// SigningHash is blake2b-256 over the action's encoding.
func SigningHash(a Action) ([32]byte, error) {
	enc, err := a.Encode()
	if err != nil {
		return [32]byte{}, err
	}
	return blake2b.Sum256(enc), nil
}

// SignedAction is what a relay submits to the module.
type SignedAction struct {
	Action    Action
	Signer    signers.AuthorityID
	Signature signers.Signature
}
