package testing

import (
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/0xmhha/fundme-harness/internal/artifact"
	"github.com/0xmhha/fundme-harness/internal/config"
	"github.com/0xmhha/fundme-harness/internal/fundme"
	"github.com/0xmhha/fundme-harness/internal/network"
	"github.com/0xmhha/fundme-harness/internal/wallet"
)

// SimNetworkName is a non-development network, so gated suites run on it
const SimNetworkName = "simnet"

// SimNetwork returns the network SimChain stands in for. It has no live
// price feed, so deploy fixtures include the mock aggregator.
func SimNetwork() *network.Network {
	return &network.Network{
		Name:               SimNetworkName,
		ChainID:            TestChainID.Uint64(),
		URL:                "http://127.0.0.1:8545",
		BlockConfirmations: 1,
	}
}

// SimArtifacts is an artifact source whose bytecode SimChain executes
type SimArtifacts struct{}

// Artifact returns the FundMe or MockV3Aggregator artifact
func (SimArtifacts) Artifact(name string) (*artifact.Artifact, error) {
	switch name {
	case fundme.FundMeName:
		return &artifact.Artifact{
			ContractName: name,
			SourceName:   "contracts/FundMe.sol",
			ABI:          fundme.ParsedFundMeABI(),
			RawABI:       fundme.FundMeABI,
			Bytecode:     FundMeCode,
		}, nil
	case fundme.AggregatorName:
		return &artifact.Artifact{
			ContractName: name,
			SourceName:   "contracts/test/MockV3Aggregator.sol",
			ABI:          fundme.ParsedAggregatorABI(),
			RawABI:       fundme.AggregatorABI,
			Bytecode:     AggregatorCode,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", artifact.ErrNotFound, name)
}

// DevWallet derives count accounts from the development mnemonic
func DevWallet(t *testing.T, count int) *wallet.Wallet {
	t.Helper()
	w, err := wallet.NewFromMnemonic(wallet.DefaultMnemonic, count)
	if err != nil {
		t.Fatalf("failed to derive dev wallet: %v", err)
	}
	return w
}

// NewFundedSimChain creates a SimChain where every account of w holds 10000 ETH
func NewFundedSimChain(w *wallet.Wallet) *SimChain {
	return NewSimChain(TestChainID, w.Addresses()...)
}

// TestConfig creates a valid test configuration
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Network:        SimNetworkName,
		URL:            "http://localhost:8545",
		Mnemonic:       wallet.DefaultMnemonic,
		Variant:        string(config.VariantUnit),
		SendValue:      "1",
		Funders:        5,
		Accounts:       6,
		Confirmations:  1,
		ArtifactsDir:   "./artifacts",
		DeploymentsDir: "./deployments",
		Timeout:        time.Minute,
	}
}

// TestConfigStaging creates a staging test configuration
func TestConfigStaging(t *testing.T) *config.Config {
	t.Helper()
	cfg := TestConfig(t)
	cfg.Variant = string(config.VariantStaging)
	return cfg
}

// InvalidConfigs returns a set of invalid configurations for testing validation
func InvalidConfigs(t *testing.T) map[string]*config.Config {
	t.Helper()
	valid := func(mutate func(c *config.Config)) *config.Config {
		c := TestConfig(t)
		mutate(c)
		return c
	}
	return map[string]*config.Config{
		"missing_network":     valid(func(c *config.Config) { c.Network = "" }),
		"invalid_url":         valid(func(c *config.Config) { c.URL = "invalid-url" }),
		"missing_credentials": valid(func(c *config.Config) { c.Mnemonic = "" }),
		"invalid_private_key": valid(func(c *config.Config) { c.Mnemonic = ""; c.PrivateKeys = []string{"invalid-key"} }),
		"invalid_variant":     valid(func(c *config.Config) { c.Variant = "INTEGRATION" }),
		"invalid_send_value":  valid(func(c *config.Config) { c.SendValue = "one" }),
		"zero_send_value":     valid(func(c *config.Config) { c.SendValue = "0" }),
		"too_few_accounts":    valid(func(c *config.Config) { c.Accounts = 3 }),
		"negative_rate_limit": valid(func(c *config.Config) { c.RateLimit = -1 }),
	}
}

// SendValue is the fixed funding amount used by the suites (1 ETH)
func SendValue() *big.Int {
	return Ether(1)
}
