package relay

import (
	"context"

	"github.com/TEENet-io/btcrelay/gateway"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Explorer is the bitcoin data source. *explorer.Client implements it.
type Explorer interface {
	// found is false when the height has not been produced yet.
	FetchBlockHash(ctx context.Context, height uint32) (hash *chainhash.Hash, found bool, err error)
	FetchBlock(ctx context.Context, hash *chainhash.Hash) (*wire.MsgBlock, error)
	FetchTransaction(ctx context.Context, hash *chainhash.Hash) (*wire.MsgTx, error)
	SendRawTransaction(ctx context.Context, hexTx string) (string, error)
}

// Submitter signs and submits relay actions. *gateway.Submitter implements it.
type Submitter interface {
	Submit(action gateway.Action) error
}
