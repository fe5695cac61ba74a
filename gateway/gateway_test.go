package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/TEENet-io/btcrelay/agreement"
	"github.com/TEENet-io/btcrelay/btcman/merkle"
	"github.com/TEENet-io/btcrelay/signers"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeApplier struct {
	headers []*wire.BlockHeader
	txs     []*agreement.RelayedTx
	err     error
}

func (f *fakeApplier) ApplyPushHeader(h *wire.BlockHeader) error {
	if f.err != nil {
		return f.err
	}
	f.headers = append(f.headers, h)
	return nil
}

func (f *fakeApplier) ApplyPushTransaction(r *agreement.RelayedTx, _ *wire.MsgTx) error {
	if f.err != nil {
		return f.err
	}
	f.txs = append(f.txs, r)
	return nil
}

func newSigner(t *testing.T) *signers.LocalSigner {
	s, err := signers.NewRandomLocalSigner()
	require.NoError(t, err)
	return s
}

func coinbase() *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex), []byte{0x01, 0x02}, nil))
	tx.AddTxOut(wire.NewTxOut(50_0000_0000, []byte{0x51}))
	return tx
}

func spending(prev *wire.MsgTx) *wire.MsgTx {
	h := prev.TxHash()
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&h, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))
	return tx
}

func pushTxAction(t *testing.T) *ActionPushTransaction {
	prev := spending(coinbase())
	tx := spending(prev)
	cb := coinbase()
	proof, err := merkle.Build([]chainhash.Hash{cb.TxHash(), tx.TxHash()}, []bool{false, true})
	require.NoError(t, err)
	return &ActionPushTransaction{
		Tx:          tx,
		RelayedInfo: agreement.RelayedTxInfo{BlockHash: chainhash.Hash{7}, MerkleProof: proof},
		PrevTx:      prev,
	}
}

func headerAction() *ActionPushHeader {
	header := wire.NewBlockHeader(1, &chainhash.Hash{1}, &chainhash.Hash{2}, 0x1d00ffff, 7)
	header.Timestamp = time.Unix(1_700_000_000, 0)
	return &ActionPushHeader{Height: 10, Header: header}
}

func TestKeyLifecycle(t *testing.T) {
	m := NewModule(&fakeApplier{})
	a, b, c := newSigner(t).ID(), newSigner(t).ID(), newSigner(t).ID()

	require.NoError(t, m.OnGenesis(nil))
	assert.Empty(t, m.Keys())

	require.NoError(t, m.OnGenesis([]signers.AuthorityID{a, b, a}))
	assert.ElementsMatch(t, []signers.AuthorityID{a, b}, m.Keys())

	assert.ErrorIs(t, m.OnGenesis([]signers.AuthorityID{c}), ErrKeysAlreadyInitialized)
	assert.False(t, m.IsAuthorized(c))

	m.OnRotate(false, []signers.AuthorityID{c}, nil)
	assert.ElementsMatch(t, []signers.AuthorityID{a, b}, m.Keys())

	m.OnRotate(true, []signers.AuthorityID{b, c}, []signers.AuthorityID{c, a})
	keys := m.Keys()
	assert.ElementsMatch(t, []signers.AuthorityID{a, b, c}, keys)
	for i := 1; i < len(keys); i++ {
		assert.True(t, keys[i-1].Less(keys[i]), "sorted and unique")
	}

	m.OnRotate(true, []signers.AuthorityID{c}, nil)
	assert.Equal(t, []signers.AuthorityID{c}, m.Keys())
}

func TestValidateAction(t *testing.T) {
	assert.NoError(t, ValidateAction(headerAction()))
	assert.ErrorIs(t, ValidateAction(&ActionPushHeader{Height: 1}), ErrEmptyHeader)
	h := headerAction()
	h.Height = 0
	assert.ErrorIs(t, ValidateAction(h), ErrInvalidHeight)

	good := pushTxAction(t)
	assert.NoError(t, ValidateAction(good))

	noPrev := *good
	noPrev.PrevTx = nil
	assert.NoError(t, ValidateAction(&noPrev))

	wrongPrev := *good
	wrongPrev.PrevTx = coinbase()
	assert.ErrorIs(t, ValidateAction(&wrongPrev), ErrPrevTxMismatch)

	noProof := *good
	noProof.RelayedInfo.MerkleProof = nil
	assert.ErrorIs(t, ValidateAction(&noProof), ErrEmptyProof)

	other := *good
	other.Tx = spending(good.Tx)
	assert.ErrorIs(t, ValidateAction(&other), ErrTxNotInProof)

	cb := coinbase()
	proof, err := merkle.Build([]chainhash.Hash{cb.TxHash()}, []bool{true})
	require.NoError(t, err)
	assert.ErrorIs(t, ValidateAction(&ActionPushTransaction{
		Tx:          cb,
		RelayedInfo: agreement.RelayedTxInfo{MerkleProof: proof},
	}), ErrCoinbaseTx)
}

func TestSigningHashBindsContent(t *testing.T) {
	a := headerAction()
	h1, err := SigningHash(a)
	require.NoError(t, err)
	h2, err := SigningHash(headerAction())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	a.Height++
	h3, err := SigningHash(a)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	tx := pushTxAction(t)
	h4, err := SigningHash(tx)
	require.NoError(t, err)
	tx.PrevTx = nil
	h5, err := SigningHash(tx)
	require.NoError(t, err)
	assert.NotEqual(t, h4, h5)
}

func TestSubmitAndDispatch(t *testing.T) {
	applier := &fakeApplier{}
	m := NewModule(applier)

	ks := signers.NewKeystore()
	local := newSigner(t)
	ks.Insert(signers.RelayKeyType, local)

	submitter := NewSubmitter(ks, m)
	assert.ErrorIs(t, submitter.Submit(headerAction()), ErrNoLocalAccount)

	require.NoError(t, m.OnGenesis([]signers.AuthorityID{local.ID(), newSigner(t).ID()}))

	blocks := make(chan NewBtcBlock, 1)
	txs := make(chan NewBtcTransaction, 1)
	sub1 := m.SubscribeNewBlock(blocks)
	defer sub1.Unsubscribe()
	sub2 := m.SubscribeNewTransaction(txs)
	defer sub2.Unsubscribe()

	hdr := headerAction()
	require.NoError(t, submitter.Submit(hdr))
	require.Len(t, applier.headers, 1)
	select {
	case ev := <-blocks:
		assert.Equal(t, uint32(10), ev.Height)
		assert.Equal(t, hdr.Header.BlockHash(), ev.Hash)
	case <-time.After(time.Second):
		t.Fatal("no block event")
	}

	act := pushTxAction(t)
	require.NoError(t, submitter.Submit(act))
	require.Len(t, applier.txs, 1)
	select {
	case ev := <-txs:
		assert.Equal(t, act.Tx.TxHash(), ev.Hash)
	case <-time.After(time.Second):
		t.Fatal("no tx event")
	}

	// rejected by the ledger: error surfaces, no event
	applier.err = errors.New("stale header")
	assert.EqualError(t, submitter.Submit(headerAction()), "stale header")
	select {
	case <-blocks:
		t.Fatal("event for rejected action")
	default:
	}
}

func TestDispatchRejectsForgedActions(t *testing.T) {
	applier := &fakeApplier{}
	m := NewModule(applier)
	authorized, outsider := newSigner(t), newSigner(t)
	require.NoError(t, m.OnGenesis([]signers.AuthorityID{authorized.ID()}))

	act := headerAction()
	hash, err := SigningHash(act)
	require.NoError(t, err)

	sig, err := outsider.Sign(hash[:])
	require.NoError(t, err)
	err = m.Dispatch(&SignedAction{Action: act, Signer: outsider.ID(), Signature: sig})
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// authorised signer, signature from someone else
	err = m.Dispatch(&SignedAction{Action: act, Signer: authorized.ID(), Signature: sig})
	assert.ErrorIs(t, err, ErrBadSignature)

	sig, err = authorized.Sign(hash[:])
	require.NoError(t, err)
	act.Height = 11
	err = m.Dispatch(&SignedAction{Action: act, Signer: authorized.ID(), Signature: sig})
	assert.ErrorIs(t, err, ErrBadSignature, "signature over a different height")

	assert.Empty(t, applier.headers)
}
