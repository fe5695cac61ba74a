package explorer

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
)

const (
	MainnetURL = "https://blockstream.info/api"
	TestnetURL = "https://blockstream.info/testnet/api"
)

type Config struct {
	// Empty means the public blockstream endpoint for the network.
	BaseURL  string
	Deadline time.Duration
}

func DefaultConfig() *Config {
	return &Config{Deadline: DefaultDeadline}
}

// BaseURLFor picks the public explorer for a network. Regtest and signet
// have no public endpoint and need an explicit url.
func BaseURLFor(params *chaincfg.Params) (string, error) {
	switch params.Net {
	case chaincfg.MainNetParams.Net:
		return MainnetURL, nil
	case chaincfg.TestNet3Params.Net:
		return TestnetURL, nil
	default:
		return "", fmt.Errorf("no public explorer for network %s, set EXPLORER_URL", params.Name)
	}
}
