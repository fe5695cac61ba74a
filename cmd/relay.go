// RelayServer = explorer client + ledger + relay worker + journal + http reporter.
// All components are configured via environment variables (strings!).
//
// The ledger here is the in-memory ledgersim, bootstrapped from the
// explorer's header at SimStartHeight, so a single process can run the
// whole relay loop against a real bitcoin network.

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/btcrelay/agreement"
	"github.com/TEENet-io/btcrelay/btcaction"
	"github.com/TEENet-io/btcrelay/btcman/explorer"
	btcrpc "github.com/TEENet-io/btcrelay/btcman/rpc"
	"github.com/TEENet-io/btcrelay/btcsync"
	"github.com/TEENet-io/btcrelay/common"
	"github.com/TEENet-io/btcrelay/database"
	"github.com/TEENet-io/btcrelay/gateway"
	"github.com/TEENet-io/btcrelay/ledgersim"
	"github.com/TEENet-io/btcrelay/offchain"
	"github.com/TEENet-io/btcrelay/relay"
	"github.com/TEENet-io/btcrelay/reporter"
	"github.com/TEENet-io/btcrelay/signers"
)

const (
	// btc publisher-observer config
	CHANNEL_BUFFER_SIZE = 10

	defaultHostBlockTime = 6 * time.Second
	bootstrapAttempts    = 5
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type RelayServerConfig struct {
	// btc side
	BtcChainConfig *chaincfg.Params // regtest, testnet, mainnet
	ExplorerUrl    string           // empty = node rpc if set, else public explorer of the chain
	BtcRpcServer   string           // btc rpc server info
	BtcRpcPort     string           // btc rpc server info
	BtcRpcUsername string           // btc rpc server info
	BtcRpcPwd      string           // btc rpc server info

	// local state
	DbFilePath     string // journal, and offchain store when sqlite
	StorageBackend string // sqlite | bolt

	// relay identities, hex private keys
	RelayPrivKeys []string

	// worker
	HostBlockTime time.Duration // pace of the simulated host chain
	LockExpiry    time.Duration

	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080

	// simulated ledger
	SimStartHeight   uint32
	SimConfirmations uint32
	SimMinDeposit    int64
	SimTrusteeHot    string
	SimTrusteeCold   string
}

// RelayServer holds the objects that consist the relay server.
type RelayServer struct {
	Explorer  relay.Explorer
	Ledger    *ledgersim.SimLedger
	Module    *gateway.Module
	Keystore  *signers.Keystore
	Store     offchain.Storage
	Relay     *relay.Relay
	Publisher *btcsync.PublisherService

	MyHeaderStorage    btcaction.HeaderStorage
	MyRelayedTxStorage btcaction.RelayedTxStorage

	db          *sql.DB
	closeSource func()
}

// Close releases the local storage. Call it after the goroutines are done.
func (s *RelayServer) Close() {
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			logger.WithField("err", err).Warn("failed to close offchain store")
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.closeSource != nil {
		s.closeSource()
	}
}

// setupChainSource picks the explorer url, then the node rpc, then the
// public explorer of the chain.
func setupChainSource(rsc *RelayServerConfig) (relay.Explorer, func(), error) {
	if rsc.ExplorerUrl == "" && rsc.BtcRpcServer != "" {
		r, err := btcrpc.NewRpcClient(&btcrpc.RpcClientConfig{
			ServerAddr: rsc.BtcRpcServer,
			Port:       rsc.BtcRpcPort,
			Username:   rsc.BtcRpcUsername,
			Pwd:        rsc.BtcRpcPwd,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create btc rpc client: %w", err)
		}
		logger.WithField("server", rsc.BtcRpcServer+":"+rsc.BtcRpcPort).Info("Using bitcoin node rpc")
		return r, r.Close, nil
	}

	baseURL := rsc.ExplorerUrl
	if baseURL == "" {
		u, err := explorer.BaseURLFor(rsc.BtcChainConfig)
		if err != nil {
			return nil, nil, err
		}
		baseURL = u
	}
	logger.WithField("url", baseURL).Info("Using bitcoin explorer")
	return explorer.NewClient(baseURL, explorer.NewFetcher(explorer.DefaultDeadline)), func() {}, nil
}

// openOffchainStore shares the journal's database for sqlite, bolt gets a
// file next to it.
func openOffchainStore(rsc *RelayServerConfig, sqldb *sql.DB) (offchain.Storage, error) {
	if rsc.StorageBackend == offchain.BackendBolt {
		return offchain.Open(&offchain.Config{Backend: offchain.BackendBolt, Path: rsc.DbFilePath + ".offchain"})
	}
	return offchain.NewSQLiteStorageFromDB(sqldb)
}

// bootstrapLedger builds the simulated ledger on top of the explorer's
// header at the configured start height.
func bootstrapLedger(ctx context.Context, rsc *RelayServerConfig, client relay.Explorer) (*ledgersim.SimLedger, error) {
	var genesis *ledgersim.Config
	var lastErr error
	for i := 0; i < bootstrapAttempts && genesis == nil; i++ {
		hash, found, err := client.FetchBlockHash(ctx, rsc.SimStartHeight)
		if err != nil {
			lastErr = err
			continue
		}
		if !found {
			return nil, fmt.Errorf("start height %d not produced yet", rsc.SimStartHeight)
		}
		block, err := client.FetchBlock(ctx, hash)
		if err != nil {
			lastErr = err
			continue
		}
		genesis = &ledgersim.Config{
			Params:        rsc.BtcChainConfig,
			Genesis:       &block.Header,
			GenesisHeight: rsc.SimStartHeight,
			Confirmations: rsc.SimConfirmations,
			MinDeposit:    rsc.SimMinDeposit,
		}
	}
	if genesis == nil {
		return nil, fmt.Errorf("failed to fetch start header: %w", lastErr)
	}

	ledger := ledgersim.NewSimLedger(genesis)
	if rsc.SimTrusteeHot != "" && rsc.SimTrusteeCold != "" {
		for _, addr := range []string{rsc.SimTrusteeHot, rsc.SimTrusteeCold} {
			if !common.IsValidBtcAddress(addr, rsc.BtcChainConfig) {
				return nil, fmt.Errorf("trustee address %s is not valid on %s", addr, rsc.BtcChainConfig.Name)
			}
		}
		ledger.AddTrusteeSession(agreement.TrusteeSessionInfo{
			HotAddress:  rsc.SimTrusteeHot,
			ColdAddress: rsc.SimTrusteeCold,
		})
	} else {
		logger.Warn("no trustee session configured, transaction passes will fail")
	}
	return ledger, nil
}

// NewRelayServer creates a new relay server.
// ctx is used for parental context to cancel the operation of relay server.
// wg is used to wait for all the goroutines inside the server (scheduler, publisher, reporter) to finish.
func NewRelayServer(rsc *RelayServerConfig, ctx context.Context, wg *sync.WaitGroup) (*RelayServer, error) {
	// 0) chain source
	client, closeClient, err := setupChainSource(rsc)
	if err != nil {
		return nil, err
	}

	// 1) ledger
	ledger, err := bootstrapLedger(ctx, rsc, client)
	if err != nil {
		closeClient()
		return nil, err
	}

	// 2) relay identities, authorised at genesis
	ks := signers.NewKeystore()
	if err := ks.InsertHex(signers.RelayKeyType, rsc.RelayPrivKeys); err != nil {
		closeClient()
		return nil, fmt.Errorf("relay keys: %w", err)
	}
	module := gateway.NewModule(ledger)
	if err := module.OnGenesis(ks.Public(signers.RelayKeyType)); err != nil {
		closeClient()
		return nil, err
	}
	for _, id := range module.Keys() {
		logger.WithField("id", id.String()).Info("Relay identity authorised")
	}

	// 3) local storage: journal and offchain store
	sqldb, err := database.OpenSQLite(rsc.DbFilePath)
	if err != nil {
		closeClient()
		return nil, fmt.Errorf("failed to open db file: %w", err)
	}
	server := &RelayServer{
		Explorer:    client,
		Ledger:      ledger,
		Module:      module,
		Keystore:    ks,
		db:          sqldb,
		closeSource: closeClient,
	}

	store, err := openOffchainStore(rsc, sqldb)
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("failed to open offchain store: %w", err)
	}
	server.Store = store

	headerStorage, err := btcaction.NewSQLiteHeaderStorage(sqldb)
	if err != nil {
		server.Close()
		return nil, err
	}
	txStorage, err := btcaction.NewSQLiteRelayedTxStorage(sqldb)
	if err != nil {
		server.Close()
		return nil, err
	}
	server.MyHeaderStorage = headerStorage
	server.MyRelayedTxStorage = txStorage

	// 4) journal observers over the module's events
	publisher := btcsync.NewPublisherService()
	headerObserver := btcsync.NewObserverHeaderAction(headerStorage, CHANNEL_BUFFER_SIZE)
	txObserver := btcsync.NewObserverRelayedTxAction(txStorage, CHANNEL_BUFFER_SIZE)
	go headerObserver.GetNotifiedHeader()
	go txObserver.GetNotifiedRelayedTx()
	publisher.RegisterHeaderObserver(headerObserver.Ch)
	publisher.RegisterRelayedTxObserver(txObserver.Ch)
	server.Publisher = publisher

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := <-publisher.Start(ctx, module); err != nil && ctx.Err() == nil {
			logger.WithField("err", err).Error("journal publisher stopped")
		}
	}()

	// 5) the worker, fed by a ticking host chain
	cfg := relay.DefaultConfig()
	if rsc.LockExpiry > 0 {
		cfg.LockExpiry = rsc.LockExpiry
	}
	server.Relay = relay.New(cfg, ledger, client, gateway.NewSubmitter(ks, module), server.Store)

	blockTime := rsc.HostBlockTime
	if blockTime <= 0 {
		blockTime = defaultHostBlockTime
	}
	scheduler := relay.NewScheduler(server.Relay, relay.NewTickerBlockSource(ctx, blockTime, 1))
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := scheduler.Loop(ctx); err != nil && ctx.Err() == nil {
			logger.WithField("err", err).Error("relay scheduler stopped")
		}
	}()

	// *** Setup a http server to report status ***
	httpServer := reporter.NewHttpReporter(
		rsc.HttpIp,
		rsc.HttpPort,
		server.Relay,
		ledger,
		headerStorage,
		txStorage,
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.Run(ctx); err != nil {
			logger.WithField("err", err).Error("http reporter stopped")
		}
	}()

	return server, nil
}

// Create, then start the relay server and wait.
// Press Ctrl-C to kill the server.
func StartRelayServerAndWait(rsc *RelayServerConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		fmt.Printf("Received signal: %v, cancelling context...\n", sig)
		cancel()
	}()

	var wg sync.WaitGroup

	server, err := NewRelayServer(rsc, ctx, &wg)
	if err != nil {
		return err
	}

	// wait for all routines to finish
	wg.Wait()
	server.Close()
	return nil
}

// GenerateRelayKey creates a fresh relay identity.
func GenerateRelayKey() (privHex string, id signers.AuthorityID, err error) {
	s, err := signers.NewRandomLocalSigner()
	if err != nil {
		return "", id, err
	}
	return s.PrivateKeyHex(), s.ID(), nil
}
