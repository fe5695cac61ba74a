package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/btcrelay/ledgersim"
	"github.com/TEENet-io/btcrelay/signers"
)

// explorerStub serves one block at height 100 in the explorer's url scheme.
func explorerStub(t *testing.T) (*httptest.Server, *wire.MsgBlock) {
	block := ledgersim.NewBlock(nil, 0, ledgersim.Coinbase(100))
	var raw bytes.Buffer
	require.NoError(t, block.Serialize(&raw))
	hash := block.BlockHash().String()

	mux := http.NewServeMux()
	mux.HandleFunc("/block-height/", func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimPrefix(r.URL.Path, "/block-height/") == "100" {
			fmt.Fprint(w, hash)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "Block not found")
	})
	mux.HandleFunc("/block/"+hash+"/raw", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(raw.Bytes())
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, block
}

func regtestAddr(t *testing.T, seed byte) string {
	a, err := btcutil.NewAddressWitnessPubKeyHash(bytes.Repeat([]byte{seed}, 20), &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	return a.EncodeAddress()
}

func TestUtils(t *testing.T) {
	assert.Equal(t, &chaincfg.MainNetParams, ParseBtcParams("mainnet"))
	assert.Equal(t, &chaincfg.TestNet3Params, ParseBtcParams("testnet"))
	assert.Equal(t, &chaincfg.RegressionNetParams, ParseBtcParams("whatever"))

	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b,"))
	assert.Empty(t, SplitList(""))

	assert.False(t, FileExists(filepath.Join(t.TempDir(), "missing")))
}

func TestGenerateRelayKey(t *testing.T) {
	priv, id, err := GenerateRelayKey()
	require.NoError(t, err)
	s, err := signers.NewLocalSignerFromHex(priv)
	require.NoError(t, err)
	assert.Equal(t, id, s.ID())
}

func TestRelayServer(t *testing.T) {
	for _, backend := range []string{"sqlite", "bolt"} {
		t.Run(backend, func(t *testing.T) {
			testRelayServer(t, backend)
		})
	}
}

func testRelayServer(t *testing.T, backend string) {
	srv, block := explorerStub(t)
	priv, id, err := GenerateRelayKey()
	require.NoError(t, err)

	rsc := &RelayServerConfig{
		BtcChainConfig:   &chaincfg.RegressionNetParams,
		ExplorerUrl:      srv.URL,
		DbFilePath:       filepath.Join(t.TempDir(), "relay.db"),
		StorageBackend:   backend,
		RelayPrivKeys:    []string{priv},
		HostBlockTime:    10 * time.Millisecond,
		HttpIp:           "127.0.0.1",
		HttpPort:         "0",
		SimStartHeight:   100,
		SimConfirmations: 1,
		SimTrusteeHot:    regtestAddr(t, 1),
		SimTrusteeCold:   regtestAddr(t, 2),
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	server, err := NewRelayServer(rsc, ctx, &wg)
	require.NoError(t, err)

	assert.Equal(t, []signers.AuthorityID{id}, server.Module.Keys())
	best, err := server.Ledger.BestIndex()
	require.NoError(t, err)
	assert.Equal(t, block.BlockHash(), best.Hash)

	// the genesis block is the confirmed one, it holds only a coinbase
	assert.Eventually(t, func() bool {
		cp, found, err := server.Relay.Checkpoint()
		return err == nil && found && cp == 100
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()
	server.Close()
}

func TestRelayServerRejectsBadKeys(t *testing.T) {
	srv, _ := explorerStub(t)
	rsc := &RelayServerConfig{
		BtcChainConfig: &chaincfg.RegressionNetParams,
		ExplorerUrl:    srv.URL,
		DbFilePath:     filepath.Join(t.TempDir(), "relay.db"),
		RelayPrivKeys:  []string{"zz"},
		SimStartHeight: 100,
	}
	var wg sync.WaitGroup
	_, err := NewRelayServer(rsc, context.Background(), &wg)
	assert.Error(t, err)

	rsc.RelayPrivKeys = nil
	rsc.SimStartHeight = 101
	_, err = NewRelayServer(rsc, context.Background(), &wg)
	assert.ErrorContains(t, err, "not produced")
}
