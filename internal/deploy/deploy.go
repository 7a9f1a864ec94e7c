package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/0xmhha/fundme-harness/internal/artifact"
	"github.com/0xmhha/fundme-harness/internal/contract"
	"github.com/0xmhha/fundme-harness/internal/network"
	"github.com/0xmhha/fundme-harness/internal/wallet"
)

// Deploy tags
const (
	TagAll    = "all"
	TagMocks  = "mocks"
	TagFundMe = "fundme"
)

// ErrNotDeployed is returned when a fixture did not produce a contract
var ErrNotDeployed = errors.New("contract not deployed")

// Waiter waits for a transaction to settle
type Waiter interface {
	WaitMethod(ctx context.Context, tx *types.Transaction, method string, confirmations uint64) (*types.Receipt, error)
}

// Deployed is one contract produced by a fixture
type Deployed struct {
	Name     string
	Address  common.Address
	Tx       *types.Transaction
	Receipt  *types.Receipt
	Args     []interface{}
	Contract *contract.BoundContract
}

// Deployments maps contract names to deployed contracts
type Deployments map[string]*Deployed

// Get returns the deployment of name
func (d Deployments) Get(name string) (*Deployed, error) {
	dep, ok := d[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotDeployed, name)
	}
	return dep, nil
}

// Names returns the deployed contract names, sorted
func (d Deployments) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Config holds deployer configuration
type Config struct {
	Network *network.Network

	// Confirmations to wait for each deployment; 0 uses the network's
	Confirmations uint64

	// DeploymentsDir, when set, receives a record per deployed contract
	DeploymentsDir string

	Out     io.Writer
	Verbose bool
}

// Deployer runs tagged deploy scripts from the deployer account
type Deployer struct {
	backend   contract.Backend
	waiter    Waiter
	signer    *wallet.Signer
	artifacts artifact.Source
	config    *Config
	scripts   []Script
}

// New creates a deployer running DefaultScripts
func New(backend contract.Backend, waiter Waiter, signer *wallet.Signer, artifacts artifact.Source, config *Config) *Deployer {
	if config.Out == nil {
		config.Out = io.Discard
	}
	return &Deployer{
		backend:   backend,
		waiter:    waiter,
		signer:    signer,
		artifacts: artifacts,
		config:    config,
		scripts:   DefaultScripts(),
	}
}

// WithScripts replaces the deploy scripts
func (d *Deployer) WithScripts(scripts ...Script) *Deployer {
	d.scripts = scripts
	return d
}

// Network returns the target network
func (d *Deployer) Network() *network.Network {
	return d.config.Network
}

// Fixture runs, in order, every script carrying one of tags and returns
// what they deployed. Each call deploys fresh contracts.
func (d *Deployer) Fixture(ctx context.Context, tags ...string) (Deployments, error) {
	if len(tags) == 0 {
		tags = []string{TagAll}
	}

	deployments := make(Deployments)
	for _, script := range d.scripts {
		if !script.Matches(tags) {
			continue
		}
		if err := script.Run(ctx, d, deployments); err != nil {
			return nil, fmt.Errorf("deploy script %s failed: %w", script.Name, err)
		}
	}
	return deployments, nil
}

// DeployContract deploys the artifact name with constructor args and
// records it in deployments
func (d *Deployer) DeployContract(ctx context.Context, deployments Deployments, name string, args ...interface{}) (*Deployed, error) {
	art, err := d.artifacts.Artifact(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s artifact: %w", name, err)
	}

	bound, tx, err := contract.Deploy(ctx, d.backend, d.signer, name, art.ABI, art.Bytecode, args...)
	if err != nil {
		return nil, err
	}
	d.logf("deploying %q (tx: %s)...", name, tx.Hash().Hex())

	receipt, err := d.waiter.WaitMethod(ctx, tx, "deploy "+name, d.confirmations())
	if err != nil {
		return nil, fmt.Errorf("failed to confirm %s deployment: %w", name, err)
	}
	if receipt.ContractAddress != (common.Address{}) && receipt.ContractAddress != bound.Address() {
		return nil, fmt.Errorf("%s deployed at %s, expected %s", name, receipt.ContractAddress.Hex(), bound.Address().Hex())
	}
	d.logf(": deployed at %s with %d gas\n", bound.Address().Hex(), receipt.GasUsed)

	dep := &Deployed{
		Name:     name,
		Address:  bound.Address(),
		Tx:       tx,
		Receipt:  receipt,
		Args:     args,
		Contract: bound,
	}
	deployments[name] = dep

	if d.config.DeploymentsDir != "" {
		if err := d.save(art, dep); err != nil {
			return nil, err
		}
	}
	return dep, nil
}

func (d *Deployer) save(art *artifact.Artifact, dep *Deployed) error {
	args := make([]string, len(dep.Args))
	for i, a := range dep.Args {
		args[i] = formatArg(a)
	}

	var block uint64
	if dep.Receipt.BlockNumber != nil {
		block = dep.Receipt.BlockNumber.Uint64()
	}

	path, err := artifact.SaveDeployment(d.config.DeploymentsDir, d.config.Network.ChainID, &artifact.Deployment{
		Name:            dep.Name,
		Network:         d.config.Network.Name,
		Address:         dep.Address,
		RawABI:          art.RawABI,
		TransactionHash: dep.Tx.Hash(),
		BlockNumber:     block,
		Deployer:        d.signer.Address,
		Args:            args,
	})
	if err != nil {
		return fmt.Errorf("failed to save %s deployment: %w", dep.Name, err)
	}
	if d.config.Verbose {
		fmt.Fprintf(d.config.Out, "  saved %s\n", path)
	}
	return nil
}

func (d *Deployer) confirmations() uint64 {
	if d.config.Confirmations > 0 {
		return d.config.Confirmations
	}
	if d.config.Network != nil && d.config.Network.BlockConfirmations > 0 {
		return d.config.Network.BlockConfirmations
	}
	return 1
}

func (d *Deployer) logf(format string, args ...interface{}) {
	if d.config.Verbose {
		fmt.Fprintf(d.config.Out, format, args...)
	}
}

func formatArg(a interface{}) string {
	switch v := a.(type) {
	case common.Address:
		return v.Hex()
	case *big.Int:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
