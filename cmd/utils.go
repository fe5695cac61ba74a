package cmd

import (
	"os"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/btcrelay/common"
)

// fileExists checks if a file exists and is readable
func FileExists(filePath string) bool {
	file, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer file.Close()
	return true
}

// ParseBtcParams maps "mainnet", "testnet", "regtest" or "signet" to chain
// params. Anything else falls back to regtest.
func ParseBtcParams(name string) *chaincfg.Params {
	params, err := common.BtcParamsByName(name)
	if err != nil {
		logger.WithField("chain", name).Warn("unknown btc chain config, using regtest")
		return &chaincfg.RegressionNetParams
	}
	return params
}

// SplitList splits a comma separated config value, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
