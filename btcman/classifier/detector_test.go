package classifier

import (
	"testing"

	"github.com/TEENet-io/btcrelay/agreement"
	"github.com/TEENet-io/btcrelay/common"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var params = &chaincfg.RegressionNetParams

func addr(t *testing.T, seed byte) btcutil.Address {
	var h [20]byte
	for i := range h {
		h[i] = seed
	}
	a, err := btcutil.NewAddressWitnessPubKeyHash(h[:], params)
	require.NoError(t, err)
	return a
}

func pay(t *testing.T, a btcutil.Address, value int64) *wire.TxOut {
	script, err := txscript.PayToAddrScript(a)
	require.NoError(t, err)
	return wire.NewTxOut(value, script)
}

// fund returns a transaction paying from to a fresh tx spending it.
func fund(t *testing.T, from btcutil.Address, outs ...*wire.TxOut) (*wire.MsgTx, *wire.MsgTx) {
	prev := wire.NewMsgTx(wire.TxVersion)
	prev.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{0x42}, 1), nil, nil))
	prev.AddTxOut(pay(t, addr(t, 0xee), 1))
	prev.AddTxOut(pay(t, from, 1_000_000))

	prevHash := prev.TxHash()
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 1), nil, nil))
	for _, out := range outs {
		tx.AddTxOut(out)
	}
	return tx, prev
}

type fixture struct {
	hot, cold, oldHot, oldCold, user, other btcutil.Address
	detector                                *Detector
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		hot:     addr(t, 1),
		cold:    addr(t, 2),
		oldHot:  addr(t, 3),
		oldCold: addr(t, 4),
		user:    addr(t, 5),
		other:   addr(t, 6),
	}
	f.detector = NewDetector(params, 10_000,
		&TrusteePair{Hot: f.hot, Cold: f.cold},
		&TrusteePair{Hot: f.oldHot, Cold: f.oldCold})
	return f
}

func TestDetectDeposit(t *testing.T) {
	f := newFixture(t)
	opReturn, err := common.MakeAccountOpReturn("alice", "bob")
	require.NoError(t, err)

	tx, prev := fund(t, f.user, pay(t, f.hot, 50_000), wire.NewTxOut(0, opReturn), pay(t, f.user, 10))
	meta := f.detector.Detect(tx, prev)

	assert.Equal(t, Deposit, meta.Type)
	assert.True(t, meta.Type.Relayable())
	require.NotNil(t, meta.Deposit)
	assert.Equal(t, int64(50_000), meta.Deposit.Value)
	assert.Equal(t, "alice", meta.Deposit.Account)
	assert.Equal(t, "bob", meta.Deposit.Referral)
	assert.Equal(t, f.user.EncodeAddress(), meta.Deposit.InputAddress)
}

func TestDetectDepositSumsHotOutputs(t *testing.T) {
	f := newFixture(t)
	tx, prev := fund(t, f.user, pay(t, f.hot, 6_000), pay(t, f.hot, 4_000))
	meta := f.detector.Detect(tx, prev)
	assert.Equal(t, Deposit, meta.Type)
	assert.Equal(t, int64(10_000), meta.Deposit.Value)
	assert.Empty(t, meta.Deposit.Account)
}

func TestDetectBelowMinimum(t *testing.T) {
	f := newFixture(t)
	tx, prev := fund(t, f.user, pay(t, f.hot, 9_999))
	assert.Equal(t, Irrelevance, f.detector.Detect(tx, prev).Type)

	f.detector.MinDeposit = 0
	tx, prev = fund(t, f.user, wire.NewTxOut(0, mustNullData(t)), pay(t, f.hot, 0))
	assert.Equal(t, Irrelevance, f.detector.Detect(tx, prev).Type)
}

func mustNullData(t *testing.T) []byte {
	script, err := common.MakeAccountOpReturn("alice", "")
	require.NoError(t, err)
	return script
}

func TestDetectWithdrawalAndHotAndCold(t *testing.T) {
	f := newFixture(t)

	tx, prev := fund(t, f.hot, pay(t, f.user, 100_000), pay(t, f.hot, 5_000))
	assert.Equal(t, Withdrawal, f.detector.Detect(tx, prev).Type)

	tx, prev = fund(t, f.cold, pay(t, f.user, 100_000))
	assert.Equal(t, Withdrawal, f.detector.Detect(tx, prev).Type)

	tx, prev = fund(t, f.hot, pay(t, f.cold, 100_000), pay(t, f.hot, 5_000))
	assert.Equal(t, HotAndCold, f.detector.Detect(tx, prev).Type)
	assert.False(t, HotAndCold.Relayable())
}

func TestDetectTrusteeTransition(t *testing.T) {
	f := newFixture(t)

	tx, prev := fund(t, f.oldHot, pay(t, f.hot, 100_000), pay(t, f.cold, 100_000))
	assert.Equal(t, TrusteeTransition, f.detector.Detect(tx, prev).Type)

	// without a previous session the same move is a deposit into the hot address
	f.detector.Previous = nil
	assert.Equal(t, Deposit, f.detector.Detect(tx, prev).Type)
}

func TestDetectIrrelevant(t *testing.T) {
	f := newFixture(t)
	tx, prev := fund(t, f.user, pay(t, f.other, 100_000))
	assert.Equal(t, Irrelevance, f.detector.Detect(tx, prev).Type)

	// prevTx that does not match the outpoint yields no input address
	meta := f.detector.Detect(fund(t, f.user, pay(t, f.hot, 20_000)))
	assert.Equal(t, Deposit, meta.Type)
	wrongPrev, _ := fund(t, f.hot)
	meta = f.detector.Detect(tx, wrongPrev)
	assert.Equal(t, Irrelevance, meta.Type)
}

func TestDetectIsDeterministic(t *testing.T) {
	f := newFixture(t)
	opReturn, err := common.MakeAccountOpReturn("alice", "")
	require.NoError(t, err)
	tx, prev := fund(t, f.user, pay(t, f.hot, 50_000), wire.NewTxOut(0, opReturn))

	first := f.detector.Detect(tx, prev)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, f.detector.Detect(tx, prev))
	}
}

func TestNewTrusteePair(t *testing.T) {
	f := newFixture(t)
	pair, err := NewTrusteePair(&agreement.TrusteeSessionInfo{
		HotAddress:  f.hot.EncodeAddress(),
		ColdAddress: f.cold.EncodeAddress(),
	}, params)
	require.NoError(t, err)
	assert.Equal(t, f.hot.EncodeAddress(), pair.Hot.EncodeAddress())

	_, err = NewTrusteePair(&agreement.TrusteeSessionInfo{
		HotAddress:  f.hot.EncodeAddress(),
		ColdAddress: "bogus",
	}, params)
	assert.Error(t, err)

	_, err = NewTrusteePair(&agreement.TrusteeSessionInfo{
		HotAddress:  f.hot.EncodeAddress(),
		ColdAddress: f.cold.EncodeAddress(),
	}, &chaincfg.MainNetParams)
	assert.Error(t, err)
}
