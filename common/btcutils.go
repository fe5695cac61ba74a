package common

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

func IsValidBtcAddress(address string, cfg *chaincfg.Params) bool {
	if _, err := DecodeBtcAddress(address, cfg); err != nil {
		return false
	}

	return true
}

// DecodeBtcAddress decodes the address and makes sure it belongs to cfg's network.
// btcutil.DecodeAddress alone accepts legacy addresses of any network.
func DecodeBtcAddress(address string, cfg *chaincfg.Params) (btcutil.Address, error) {
	addr, err := btcutil.DecodeAddress(address, cfg)
	if err != nil {
		return nil, err
	}
	if !addr.IsForNet(cfg) {
		return nil, fmt.Errorf("address %s is not for network %s", address, cfg.Name)
	}
	return addr, nil
}

// BtcParamsByName accepts the network names reported by the ledger and the
// short forms used in config files.
func BtcParamsByName(name string) (*chaincfg.Params, error) {
	switch name {
	case "mainnet", chaincfg.MainNetParams.Name:
		return &chaincfg.MainNetParams, nil
	case "testnet", chaincfg.TestNet3Params.Name:
		return &chaincfg.TestNet3Params, nil
	case "regtest", chaincfg.RegressionNetParams.Name:
		return &chaincfg.RegressionNetParams, nil
	case chaincfg.SigNetParams.Name:
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown bitcoin network %q", name)
	}
}
