package config

import (
	"errors"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/params"
)

// Variant selects which FundMe suite is run
type Variant string

const (
	VariantUnit    Variant = "UNIT"
	VariantStaging Variant = "STAGING"
)

// Config holds all configuration for a harness run
type Config struct {
	// Network selection
	Network      string
	NetworksFile string
	URL          string

	// Account configuration
	Mnemonic    string
	PrivateKeys []string
	Accounts    uint64

	// Suite configuration
	Variant        string
	ArtifactsDir   string
	DeploymentsDir string
	SendValue      string
	Funders        uint64
	Confirmations  uint64

	// Output
	OutputDir string
	Export    bool
	Verbose   bool

	// Advanced
	Timeout   time.Duration
	RateLimit float64

	// Prometheus metrics
	MetricsEnabled bool
	MetricsPort    int
}

var (
	httpRegex   = regexp.MustCompile(`^https?://`)
	wsRegex     = regexp.MustCompile(`^wss?://`)
	hexKeyRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	etherRegex  = regexp.MustCompile(`^[0-9]+(\.[0-9]{1,18})?$`)
)

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	if c.Network == "" {
		return errors.New("network is required")
	}

	// URL is optional here; the network registry supplies one when empty
	if c.URL != "" && !httpRegex.MatchString(c.URL) && !wsRegex.MatchString(c.URL) {
		return errors.New("url must be a valid HTTP or WebSocket URL")
	}

	if c.Mnemonic == "" && len(c.PrivateKeys) == 0 {
		return errors.New("either mnemonic or private-key is required")
	}
	for _, key := range c.PrivateKeys {
		if !hexKeyRegex.MatchString(key) {
			return errors.New("private-key must be a valid 64-character hex string with 0x prefix")
		}
	}

	if c.Variant == "" {
		c.Variant = string(VariantUnit)
	}
	switch c.GetVariant() {
	case VariantUnit, VariantStaging:
		// Valid variants
	default:
		return errors.New("invalid variant: must be UNIT or STAGING")
	}

	if c.SendValue == "" {
		c.SendValue = "1"
	}
	if !etherRegex.MatchString(c.SendValue) {
		return errors.New("send-value must be a decimal ether amount")
	}
	if c.SendValueWei().Sign() == 0 {
		return errors.New("send-value must be greater than 0")
	}

	if c.Funders == 0 {
		c.Funders = 5
	}
	// deployer plus every extra funder must be addressable
	if c.Accounts == 0 {
		c.Accounts = c.Funders + 1
	}
	if c.Accounts < c.Funders+1 {
		return errors.New("accounts must cover the deployer and every funder")
	}
	if len(c.PrivateKeys) > 0 && c.Mnemonic == "" && uint64(len(c.PrivateKeys)) < c.Funders+1 && c.GetVariant() == VariantUnit {
		return errors.New("unit variant needs one private key per funder plus the deployer")
	}

	if c.ArtifactsDir == "" {
		c.ArtifactsDir = "./artifacts"
	}
	if c.DeploymentsDir == "" {
		c.DeploymentsDir = "./deployments"
	}

	if c.Timeout == 0 {
		c.Timeout = 5 * time.Minute
	}

	if c.RateLimit < 0 {
		return errors.New("rate-limit must not be negative")
	}

	if c.MetricsEnabled && c.MetricsPort == 0 {
		c.MetricsPort = 9090
	}

	return nil
}

// GetVariant returns the parsed variant
func (c *Config) GetVariant() Variant {
	return Variant(strings.ToUpper(c.Variant))
}

// SendValueWei returns the funding amount in wei, or zero if unparsable
func (c *Config) SendValueWei() *big.Int {
	wei, err := ParseEther(c.SendValue)
	if err != nil {
		return new(big.Int)
	}
	return wei
}

// ParseEther converts a decimal ether string such as "0.05" to wei
func ParseEther(s string) (*big.Int, error) {
	if !etherRegex.MatchString(s) {
		return nil, errors.New("invalid ether amount: " + s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	frac += strings.Repeat("0", 18-len(frac))

	wei, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, errors.New("invalid ether amount: " + s)
	}
	return wei, nil
}

// Ether returns n ether in wei
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(params.Ether))
}
