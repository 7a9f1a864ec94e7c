// Package network classifies target chains and resolves their connection settings.
package network

import (
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

var ErrUnknownNetwork = errors.New("unknown network")

// DevelopmentChains lists the networks treated as local/simulated.
// Suites gated on this set are not registered there.
var DevelopmentChains = []string{"hardhat", "localhost"}

// Mock price feed parameters used when deploying on development chains
const (
	Decimals = 8
)

// InitialAnswer is the mock ETH/USD answer (2000 USD with 8 decimals)
var InitialAnswer = big.NewInt(200000000000)

// Class is the network classification used by suite gates
type Class int

const (
	ClassDevelopment Class = iota
	ClassPublic
)

func (c Class) String() string {
	switch c {
	case ClassDevelopment:
		return "DEVELOPMENT"
	case ClassPublic:
		return "PUBLIC"
	default:
		return "UNKNOWN"
	}
}

// Network describes a target chain
type Network struct {
	Name               string
	ChainID            uint64
	URL                string
	PriceFeed          common.Address
	BlockConfirmations uint64
}

// IsDevelopment reports whether name belongs to DevelopmentChains
func IsDevelopment(name string) bool {
	return slices.Contains(DevelopmentChains, strings.ToLower(name))
}

// Classify returns the class of the named network
func Classify(name string) Class {
	if IsDevelopment(name) {
		return ClassDevelopment
	}
	return ClassPublic
}

// Class returns the classification of n
func (n *Network) Class() Class {
	return Classify(n.Name)
}

// HasPriceFeed reports whether a live price feed is configured
func (n *Network) HasPriceFeed() bool {
	return n.PriceFeed != (common.Address{})
}

// Registry holds the known networks keyed by lower-case name
type Registry struct {
	networks map[string]*Network
}

// NewRegistry creates a registry with the given networks
func NewRegistry(networks ...*Network) *Registry {
	r := &Registry{networks: make(map[string]*Network)}
	for _, n := range networks {
		r.Add(n)
	}
	return r
}

// DefaultRegistry returns the built-in network table
func DefaultRegistry() *Registry {
	return NewRegistry(
		&Network{Name: "hardhat", ChainID: 31337, URL: "http://127.0.0.1:8545", BlockConfirmations: 1},
		&Network{Name: "localhost", ChainID: 31337, URL: "http://127.0.0.1:8545", BlockConfirmations: 1},
		&Network{
			Name:               "sepolia",
			ChainID:            11155111,
			PriceFeed:          common.HexToAddress("0x694AA1769357215DE4FAC081bf1f309aDC325306"),
			BlockConfirmations: 6,
		},
		&Network{
			Name:               "goerli",
			ChainID:            5,
			PriceFeed:          common.HexToAddress("0xD4a33860578De61DBAbDc8BFdb98FD742fA7028e"),
			BlockConfirmations: 6,
		},
	)
}

// Add registers or replaces a network
func (r *Registry) Add(n *Network) {
	n.Name = strings.ToLower(n.Name)
	r.networks[n.Name] = n
}

// Get returns the named network
func (r *Registry) Get(name string) (*Network, error) {
	n, ok := r.networks[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
	}
	return n, nil
}

// ByChainID returns the first network with the given chain ID
func (r *Registry) ByChainID(chainID uint64) (*Network, error) {
	for _, name := range r.Names() {
		if n := r.networks[name]; n.ChainID == chainID {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: chain id %d", ErrUnknownNetwork, chainID)
}

// Names returns the registered network names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.networks))
	for name := range r.networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// fileNetwork is the on-disk shape of a network entry
type fileNetwork struct {
	ChainID            uint64 `mapstructure:"chain_id"`
	URL                string `mapstructure:"url"`
	PriceFeed          string `mapstructure:"eth_usd_price_feed"`
	BlockConfirmations uint64 `mapstructure:"block_confirmations"`
}

// LoadRegistry reads a networks file (yaml, json or toml) on top of the
// defaults. FUNDME_NETWORKS_<NAME>_URL overrides the URL of any network.
func LoadRegistry(path string) (*Registry, error) {
	r := DefaultRegistry()

	v := viper.New()
	v.SetEnvPrefix("FUNDME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read networks file: %w", err)
		}

		var file struct {
			Networks map[string]fileNetwork `mapstructure:"networks"`
		}
		if err := v.Unmarshal(&file); err != nil {
			return nil, fmt.Errorf("failed to parse networks file: %w", err)
		}

		for name, fn := range file.Networks {
			n := &Network{
				Name:               name,
				ChainID:            fn.ChainID,
				URL:                fn.URL,
				BlockConfirmations: fn.BlockConfirmations,
			}
			if fn.PriceFeed != "" {
				if !common.IsHexAddress(fn.PriceFeed) {
					return nil, fmt.Errorf("network %s: invalid eth_usd_price_feed %q", name, fn.PriceFeed)
				}
				n.PriceFeed = common.HexToAddress(fn.PriceFeed)
			}
			// keep built-in values the file leaves empty
			if prev, err := r.Get(name); err == nil {
				if n.ChainID == 0 {
					n.ChainID = prev.ChainID
				}
				if n.URL == "" {
					n.URL = prev.URL
				}
				if !n.HasPriceFeed() {
					n.PriceFeed = prev.PriceFeed
				}
				if n.BlockConfirmations == 0 {
					n.BlockConfirmations = prev.BlockConfirmations
				}
			}
			r.Add(n)
		}
	}

	for _, name := range r.Names() {
		if url := v.GetString("networks." + name + ".url"); url != "" {
			r.networks[name].URL = url
		}
	}

	return r, nil
}
