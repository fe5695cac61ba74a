package relay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/TEENet-io/btcrelay/agreement"
	"github.com/TEENet-io/btcrelay/common"
	"github.com/TEENet-io/btcrelay/gateway"
	"github.com/TEENet-io/btcrelay/ledgersim"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky explorer")

type fakeExplorer struct {
	mu sync.Mutex

	byHeight map[uint32]*wire.MsgBlock
	byHash   map[chainhash.Hash]*wire.MsgBlock
	txs      map[chainhash.Hash]*wire.MsgTx

	// fail the next n FetchBlockHash calls
	hashFailures int
	txErr        error
	sendResp     string
	sendErr      error

	calls   int
	txCalls int
	sent    []string

	// when set, FetchBlock signals entered and waits for gate
	entered chan struct{}
	gate    chan struct{}
}

func newFakeExplorer() *fakeExplorer {
	return &fakeExplorer{
		byHeight: make(map[uint32]*wire.MsgBlock),
		byHash:   make(map[chainhash.Hash]*wire.MsgBlock),
		txs:      make(map[chainhash.Hash]*wire.MsgTx),
	}
}

func (f *fakeExplorer) addBlock(height uint32, b *wire.MsgBlock) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byHeight[height] = b
	f.byHash[b.BlockHash()] = b
}

func (f *fakeExplorer) addTx(txs ...*wire.MsgTx) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range txs {
		f.txs[tx.TxHash()] = tx
	}
}

func (f *fakeExplorer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeExplorer) FetchBlockHash(_ context.Context, height uint32) (*chainhash.Hash, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.hashFailures > 0 {
		f.hashFailures--
		return nil, false, errFlaky
	}
	b, ok := f.byHeight[height]
	if !ok {
		return nil, false, nil
	}
	h := b.BlockHash()
	return &h, true, nil
}

func (f *fakeExplorer) FetchBlock(_ context.Context, hash *chainhash.Hash) (*wire.MsgBlock, error) {
	f.mu.Lock()
	f.calls++
	entered, gate := f.entered, f.gate
	b, ok := f.byHash[*hash]
	f.mu.Unlock()

	if entered != nil {
		close(entered)
		<-gate
	}
	if !ok {
		return nil, agreement.ErrHttpIoError
	}
	return b, nil
}

func (f *fakeExplorer) FetchTransaction(_ context.Context, hash *chainhash.Hash) (*wire.MsgTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.txCalls++
	if f.txErr != nil {
		return nil, f.txErr
	}
	tx, ok := f.txs[*hash]
	if !ok {
		return nil, agreement.ErrHttpIoError
	}
	return tx, nil
}

func (f *fakeExplorer) SendRawTransaction(_ context.Context, hexTx string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.sent = append(f.sent, hexTx)
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return f.sendResp, nil
}

type fakeSubmitter struct {
	mu      sync.Mutex
	actions []gateway.Action
	err     error
}

func (f *fakeSubmitter) Submit(a gateway.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, a)
	return f.err
}

func (f *fakeSubmitter) pushTxs() []*gateway.ActionPushTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*gateway.ActionPushTransaction
	for _, a := range f.actions {
		if p, ok := a.(*gateway.ActionPushTransaction); ok {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeSubmitter) pushHeaders() []*gateway.ActionPushHeader {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*gateway.ActionPushHeader
	for _, a := range f.actions {
		if p, ok := a.(*gateway.ActionPushHeader); ok {
			out = append(out, p)
		}
	}
	return out
}

var params = &chaincfg.RegressionNetParams

func testAddr(t *testing.T, seed byte) btcutil.Address {
	var h [20]byte
	for i := range h {
		h[i] = seed
	}
	a, err := btcutil.NewAddressWitnessPubKeyHash(h[:], params)
	require.NoError(t, err)
	return a
}

func payTo(t *testing.T, a btcutil.Address, value int64) *wire.TxOut {
	script, err := txscript.PayToAddrScript(a)
	require.NoError(t, err)
	return wire.NewTxOut(value, script)
}

func spendTx(prev *wire.MsgTx, outs ...*wire.TxOut) *wire.MsgTx {
	h := prev.TxHash()
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&h, 0), nil, nil))
	for _, out := range outs {
		tx.AddTxOut(out)
	}
	return tx
}

// scenario is a ledger whose confirmed block 101 holds
// [coinbase, deposit, irrelevant].
type scenario struct {
	ledger   *ledgersim.SimLedger
	explorer *fakeExplorer
	genesis  *wire.MsgBlock
	block    *wire.MsgBlock

	hot, cold, user, other btcutil.Address
	deposit, irrelevant    *wire.MsgTx
	fundings               []*wire.MsgTx
}

func newScenario(t *testing.T) *scenario {
	s := &scenario{
		explorer: newFakeExplorer(),
		hot:      testAddr(t, 1),
		cold:     testAddr(t, 2),
		user:     testAddr(t, 5),
		other:    testAddr(t, 6),
	}

	s.genesis = ledgersim.NewBlock(nil, 0, ledgersim.Coinbase(100))
	s.ledger = ledgersim.NewSimLedger(&ledgersim.Config{
		Params:        params,
		Genesis:       &s.genesis.Header,
		GenesisHeight: 100,
		Confirmations: 1,
		MinDeposit:    10_000,
	})
	s.ledger.AddTrusteeSession(agreement.TrusteeSessionInfo{
		HotAddress:  s.hot.EncodeAddress(),
		ColdAddress: s.cold.EncodeAddress(),
	})

	fund1 := spendTx(ledgersim.Coinbase(1), payTo(t, s.user, 1_000_000))
	fund2 := spendTx(ledgersim.Coinbase(2), payTo(t, s.user, 1_000_000))
	s.fundings = []*wire.MsgTx{fund1, fund2}

	opReturn, err := common.MakeAccountOpReturn("alice", "")
	require.NoError(t, err)
	s.deposit = spendTx(fund1, payTo(t, s.hot, 500_000), wire.NewTxOut(0, opReturn))
	s.irrelevant = spendTx(fund2, payTo(t, s.other, 500_000))

	s.block = ledgersim.NewBlock(&s.genesis.Header, 1, ledgersim.Coinbase(101), s.deposit, s.irrelevant)
	s.explorer.addBlock(100, s.genesis)
	s.explorer.addBlock(101, s.block)
	s.explorer.addTx(fund1, fund2)

	require.NoError(t, s.ledger.ApplyPushHeader(&s.block.Header))
	return s
}
