package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"github.com/urfave/cli"

	"github.com/TEENet-io/btcrelay/cmd"
	"github.com/TEENet-io/btcrelay/logconfig"
	"github.com/TEENet-io/btcrelay/reporter"
)

const (
	ENV_CONFIG_FILE_PATH = "RELAY_CONFIG"
)

func main() {
	app := cli.NewApp()
	app.Name = "btcrelay"
	app.Usage = "Relay bitcoin headers and bridge transactions to the ledger"
	app.Compiled = time.Now()

	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "start the relay worker, configuration file from $" + ENV_CONFIG_FILE_PATH,
			Action: runRelay,
		},
		{
			Name:   "keygen",
			Usage:  "generate a relay identity",
			Action: keygen,
		},
		{
			Name:  "status",
			Usage: "query a running relay's status",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "url",
					Usage: "reporter base url",
					Value: "http://127.0.0.1:8080",
				},
			},
			Action: status,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runRelay(_ *cli.Context) error {
	// Tool to read environment variables
	viper.AutomaticEnv()

	// Accessing an environment variable of configuration file location.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	fmt.Printf("Relay configuration file = %s\n", _config_file)

	if !cmd.FileExists(_config_file) {
		return fmt.Errorf("relay configuration file not found: %s", _config_file)
	}

	viper.SetConfigFile(_config_file)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading configuration file: %w", err)
	}

	if err := logconfig.ConfigLoggerFromLevel(viper.GetString("LOG_LEVEL")); err != nil {
		return err
	}

	rsc := PrepareRelayServerConfig()

	fmt.Println("Starting relay... press Ctrl+C to stop")
	return cmd.StartRelayServerAndWait(rsc)
}

// PrepareRelayServerConfig reads configuration variables and returns a RelayServerConfig.
func PrepareRelayServerConfig() *cmd.RelayServerConfig {
	viper.SetDefault("STORAGE_BACKEND", "sqlite")
	viper.SetDefault("DB_FILE_PATH", "btcrelay.db")
	viper.SetDefault("HOST_BLOCK_TIME", "6s")
	viper.SetDefault("HTTP_IP", "0.0.0.0")
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("SIM_CONFIRMATIONS", 6)

	return &cmd.RelayServerConfig{
		// btc side
		BtcChainConfig: cmd.ParseBtcParams(viper.GetString("BTC_CHAIN_CONFIG")),
		ExplorerUrl:    viper.GetString("EXPLORER_URL"),
		BtcRpcServer:   viper.GetString("BTC_RPC_SERVER"),
		BtcRpcPort:     viper.GetString("BTC_RPC_PORT"),
		BtcRpcUsername: viper.GetString("BTC_RPC_USERNAME"),
		BtcRpcPwd:      viper.GetString("BTC_RPC_PWD"),
		// local state
		DbFilePath:     viper.GetString("DB_FILE_PATH"),
		StorageBackend: viper.GetString("STORAGE_BACKEND"),
		RelayPrivKeys:  cmd.SplitList(viper.GetString("RELAY_PRIV_KEYS")),
		// worker
		HostBlockTime: viper.GetDuration("HOST_BLOCK_TIME"),
		LockExpiry:    viper.GetDuration("LOCK_EXPIRY"),
		// Http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),
		// simulated ledger
		SimStartHeight:   viper.GetUint32("SIM_START_HEIGHT"),
		SimConfirmations: viper.GetUint32("SIM_CONFIRMATIONS"),
		SimMinDeposit:    viper.GetInt64("SIM_MIN_DEPOSIT"),
		SimTrusteeHot:    viper.GetString("SIM_TRUSTEE_HOT"),
		SimTrusteeCold:   viper.GetString("SIM_TRUSTEE_COLD"),
	}
}

func keygen(_ *cli.Context) error {
	priv, id, err := cmd.GenerateRelayKey()
	if err != nil {
		return err
	}
	fmt.Printf("private key: %s\n", priv)
	fmt.Printf("relay id:    %s\n", id)
	return nil
}

func status(c *cli.Context) error {
	st, err := reporter.NewHttpReaderFromURL(c.String("url")).GetStatus()
	if err != nil {
		return err
	}

	if st.Checkpoint != nil {
		fmt.Printf("checkpoint:       %d\n", *st.Checkpoint)
	} else {
		fmt.Println("checkpoint:       none")
	}
	if st.LedgerBest != nil {
		fmt.Printf("ledger best:      %d %s\n", st.LedgerBest.Height, st.LedgerBest.Hash)
	}
	if st.LedgerConfirmed != nil {
		fmt.Printf("ledger confirmed: %d %s\n", st.LedgerConfirmed.Height, st.LedgerConfirmed.Hash)
	}
	fmt.Printf("relayed txs:      %d\n", st.RelayedTxCount)
	if r := st.LastReport; r != nil {
		fmt.Printf("last invocation:  block=%d broadcast=%s pass=%s header=%s (%dms)\n",
			r.HostBlock, r.Broadcast, r.Pass, r.Header, r.DurationMs)
	}
	return nil
}
