package explorer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/TEENet-io/btcrelay/agreement"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	logger "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	blockNotFound  = "Block not found"
	rpcErrorPrefix = "send raw transaction RPC error: "
)

// Client talks to a blockstream style explorer (esplora API).
type Client struct {
	baseURL string
	fetcher *Fetcher
}

func NewClient(baseURL string, fetcher *Fetcher) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
	}
}

func NewClientFromConfig(cfg *Config) *Client {
	return NewClient(cfg.BaseURL, NewFetcher(cfg.Deadline))
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func asText(body []byte) (string, error) {
	if !utf8.Valid(body) {
		return "", agreement.ErrHttpBodyNotUTF8
	}
	return strings.TrimSpace(string(body)), nil
}

func isBlockNotFound(body string) bool {
	return strings.TrimSpace(body) == blockNotFound
}

// FetchBlockHash returns the hash of the block at height. The bool is false
// when the explorer does not know the height yet.
func (c *Client) FetchBlockHash(ctx context.Context, height uint32) (*chainhash.Hash, bool, error) {
	body, err := c.fetcher.Get(ctx, fmt.Sprintf("%s/block-height/%d", c.baseURL, height))
	if err != nil {
		var statusErr *agreement.StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound && isBlockNotFound(statusErr.Body) {
			return nil, false, nil
		}
		return nil, false, err
	}

	text, err := asText(body)
	if err != nil {
		return nil, false, err
	}
	if isBlockNotFound(text) {
		return nil, false, nil
	}
	if len(text) != chainhash.MaxHashStringSize {
		return nil, false, agreement.ErrSerialization("block hash", fmt.Errorf("unexpected length %d", len(text)))
	}
	hash, err := chainhash.NewHashFromStr(text)
	if err != nil {
		return nil, false, agreement.ErrSerialization("block hash", err)
	}
	return hash, true, nil
}

// FetchBlock downloads the raw block and checks it hashes to the request.
func (c *Client) FetchBlock(ctx context.Context, hash *chainhash.Hash) (*wire.MsgBlock, error) {
	body, err := c.fetcher.Get(ctx, fmt.Sprintf("%s/block/%s/raw", c.baseURL, hash))
	if err != nil {
		return nil, err
	}

	block := &wire.MsgBlock{}
	if err := block.Deserialize(bytes.NewReader(body)); err != nil {
		return nil, agreement.ErrSerialization("block", err)
	}
	if got := block.BlockHash(); !got.IsEqual(hash) {
		return nil, agreement.ErrSerialization("block", fmt.Errorf("hash mismatch, want %s got %s", hash, got))
	}
	return block, nil
}

// FetchTransaction downloads the raw transaction and checks its txid.
func (c *Client) FetchTransaction(ctx context.Context, hash *chainhash.Hash) (*wire.MsgTx, error) {
	body, err := c.fetcher.Get(ctx, fmt.Sprintf("%s/tx/%s/raw", c.baseURL, hash))
	if err != nil {
		return nil, err
	}

	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(body)); err != nil {
		return nil, agreement.ErrSerialization("transaction", err)
	}
	if got := tx.TxHash(); !got.IsEqual(hash) {
		return nil, agreement.ErrSerialization("transaction", fmt.Errorf("txid mismatch, want %s got %s", hash, got))
	}
	return tx, nil
}

// SendRawTransaction posts a hex encoded transaction and returns its txid.
// Rejections by the explorer's node come back as *agreement.SendRawTxError.
func (c *Client) SendRawTransaction(ctx context.Context, hexTx string) (string, error) {
	body, err := c.fetcher.Post(ctx, c.baseURL+"/tx", []byte(hexTx))
	if err != nil {
		var statusErr *agreement.StatusError
		if errors.As(err, &statusErr) && strings.HasPrefix(strings.TrimSpace(statusErr.Body), rpcErrorPrefix) {
			return "", parseBroadcastResponse(statusErr.Body)
		}
		return "", err
	}

	text, err := asText(body)
	if err != nil {
		return "", err
	}
	if err := parseBroadcastResponse(text); err != nil {
		return "", err
	}
	return text, nil
}

func isTxID(s string) bool {
	if len(s) != chainhash.MaxHashStringSize {
		return false
	}
	_, err := chainhash.NewHashFromStr(s)
	return err == nil
}

func parseBroadcastResponse(body string) error {
	body = strings.TrimSpace(body)
	if isTxID(body) {
		return nil
	}

	if !strings.HasPrefix(body, rpcErrorPrefix) {
		return agreement.ErrUnknownBroadcastResponse(body)
	}
	payload := strings.TrimPrefix(body, rpcErrorPrefix)
	if !gjson.Valid(payload) {
		return agreement.ErrUnknownBroadcastResponse(body)
	}

	res := gjson.Parse(payload)
	sendErr := &agreement.SendRawTxError{
		Code:    res.Get("code").Int(),
		Message: res.Get("message").String(),
	}
	logger.WithFields(logger.Fields{
		"code":    sendErr.Code,
		"message": sendErr.Message,
	}).Debug("explorer rejected raw transaction")
	return sendErr
}
