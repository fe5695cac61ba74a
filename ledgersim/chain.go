package ledgersim

import (
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Coinbase builds a minimal coinbase transaction. tag keeps coinbases of
// different blocks distinct.
func Coinbase(tag uint32) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	script := []byte{0x04, byte(tag), byte(tag >> 8), byte(tag >> 16), byte(tag >> 24)}
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex), script, nil))
	tx.AddTxOut(wire.NewTxOut(50_0000_0000, []byte{0x51}))
	return tx
}

// NewBlock builds a block on top of prev with a correct merkle root. No
// proof of work is done.
func NewBlock(prev *wire.BlockHeader, nonce uint32, txs ...*wire.MsgTx) *wire.MsgBlock {
	utxs := make([]*btcutil.Tx, 0, len(txs))
	for _, tx := range txs {
		utxs = append(utxs, btcutil.NewTx(tx))
	}
	root := blockchain.CalcMerkleRoot(utxs, false)

	var prevHash chainhash.Hash
	ts := time.Unix(1_700_000_000, 0)
	if prev != nil {
		prevHash = prev.BlockHash()
		ts = prev.Timestamp.Add(10 * time.Minute)
	}
	header := wire.NewBlockHeader(0x20000000, &prevHash, &root, 0x207fffff, nonce)
	header.Timestamp = ts

	block := wire.NewMsgBlock(header)
	for _, tx := range txs {
		_ = block.AddTransaction(tx)
	}
	return block
}

// NewChain builds n blocks on top of prev, each holding only a coinbase.
func NewChain(prev *wire.BlockHeader, n int, nonce uint32) []*wire.MsgBlock {
	blocks := make([]*wire.MsgBlock, 0, n)
	for i := 0; i < n; i++ {
		b := NewBlock(prev, nonce, Coinbase(nonce+uint32(i)))
		blocks = append(blocks, b)
		prev = &b.Header
	}
	return blocks
}
