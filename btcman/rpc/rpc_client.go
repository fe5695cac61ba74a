/*
Package rpc reads the bitcoin chain from a bitcoin core node over JSON-RPC.

RpcClient serves the same four calls as the public explorer client, so a
relay on regtest or signet, or one that trusts its own node, can use a node
instead. Enable -txindex on the node, previous transactions are looked up
by txid.
*/
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"

	"github.com/TEENet-io/btcrelay/agreement"
)

const DefaultDeadline = 2000 * time.Millisecond

type RpcClientConfig struct {
	ServerAddr string // ip address of server
	Port       string // port of server
	Username   string
	Pwd        string
	Deadline   time.Duration // per call, 0 = DefaultDeadline
}

// Wrapper of btc rpc client.
type RpcClient struct {
	client   *rpcclient.Client
	deadline time.Duration
}

// Create a new RPC client. Nothing is sent until the first call.
func NewRpcClient(rcc *RpcClientConfig) (*RpcClient, error) {
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         rcc.ServerAddr + ":" + rcc.Port,
		User:         rcc.Username,
		Pass:         rcc.Pwd,
		HTTPPostMode: true, // original bitcoin only supports HTTP POST mode
		DisableTLS:   true, // original bitcoin does not support TLS
	}, nil)
	if err != nil {
		return nil, err
	}

	deadline := rcc.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &RpcClient{client: client, deadline: deadline}, nil
}

// Close the rpc client
func (r *RpcClient) Close() {
	r.client.Shutdown()
}

type result[T any] struct {
	v   T
	err error
}

// call bounds a blocking rpcclient call by the deadline. rpcclient takes
// no context, a call that overruns keeps its goroutine until it returns.
func call[T any](ctx context.Context, deadline time.Duration, fn func() (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ch := make(chan result[T], 1)
	go func() {
		v, err := fn()
		ch <- result[T]{v, err}
	}()

	select {
	case res := <-ch:
		return res.v, classify(res.err)
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %v", agreement.ErrHttpDeadlineReached, ctx.Err())
	}
}

// classify keeps node side rejections as *btcjson.RPCError and maps
// everything else onto the transport taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) {
		return err
	}
	return fmt.Errorf("%w: %v", agreement.ErrHttpIoError, err)
}

// FetchBlockHash returns false when the node has no block at height yet.
func (r *RpcClient) FetchBlockHash(ctx context.Context, height uint32) (*chainhash.Hash, bool, error) {
	hash, err := call(ctx, r.deadline, func() (*chainhash.Hash, error) {
		return r.client.GetBlockHash(int64(height))
	})
	if err != nil {
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCInvalidParameter {
			return nil, false, nil
		}
		return nil, false, err
	}
	return hash, true, nil
}

func (r *RpcClient) FetchBlock(ctx context.Context, hash *chainhash.Hash) (*wire.MsgBlock, error) {
	block, err := call(ctx, r.deadline, func() (*wire.MsgBlock, error) {
		return r.client.GetBlock(hash)
	})
	if err != nil {
		return nil, err
	}
	if got := block.BlockHash(); !got.IsEqual(hash) {
		return nil, agreement.ErrSerialization("block", fmt.Errorf("hash mismatch, want %s got %s", hash, got))
	}
	return block, nil
}

// Fetch a raw tx with a given TxID.
func (r *RpcClient) FetchTransaction(ctx context.Context, hash *chainhash.Hash) (*wire.MsgTx, error) {
	tx, err := call(ctx, r.deadline, func() (*wire.MsgTx, error) {
		t, err := r.client.GetRawTransaction(hash)
		if err != nil {
			return nil, err
		}
		return t.MsgTx(), nil
	})
	if err != nil {
		return nil, err
	}
	if got := tx.TxHash(); !got.IsEqual(hash) {
		return nil, agreement.ErrSerialization("transaction", fmt.Errorf("txid mismatch, want %s got %s", hash, got))
	}
	return tx, nil
}

// SendRawTransaction posts a hex encoded transaction. The raw request
// skips rpcclient's backend version probe. Node rejections come back as
// *agreement.SendRawTxError, like the explorer's.
func (r *RpcClient) SendRawTransaction(ctx context.Context, hexTx string) (string, error) {
	param, err := json.Marshal(hexTx)
	if err != nil {
		return "", err
	}
	raw, err := call(ctx, r.deadline, func() (json.RawMessage, error) {
		return r.client.RawRequest("sendrawtransaction", []json.RawMessage{param})
	})
	if err != nil {
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) {
			return "", &agreement.SendRawTxError{Code: int64(rpcErr.Code), Message: rpcErr.Message}
		}
		return "", err
	}

	var txid string
	if err := json.Unmarshal(raw, &txid); err != nil {
		return "", agreement.ErrSerialization("txid", err)
	}
	return txid, nil
}
