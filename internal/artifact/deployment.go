package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Deployment is a deployed contract record, one file per contract under
// <deployments>/<network>/<Name>.json
type Deployment struct {
	Name            string
	Network         string
	Address         common.Address
	ABI             *abi.ABI
	RawABI          string
	TransactionHash common.Hash
	BlockNumber     uint64
	Deployer        common.Address
	Args            []string
}

// DeploymentPath returns the record path for name on network
func DeploymentPath(dir, network, name string) string {
	return filepath.Join(dir, network, name+".json")
}

// LoadDeployment reads the record of name on network
func LoadDeployment(dir, network, name string) (*Deployment, error) {
	path := DeploymentPath(dir, network, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s has no deployment on %s", ErrNotFound, name, network)
		}
		return nil, fmt.Errorf("failed to read deployment: %w", err)
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("deployment %s is not valid JSON", path)
	}

	address := gjson.GetBytes(data, "address").String()
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("deployment %s has invalid address %q", path, address)
	}

	d := &Deployment{
		Name:            name,
		Network:         network,
		Address:         common.HexToAddress(address),
		TransactionHash: common.HexToHash(gjson.GetBytes(data, "transactionHash").String()),
		BlockNumber:     gjson.GetBytes(data, "receipt.blockNumber").Uint(),
		Deployer:        common.HexToAddress(gjson.GetBytes(data, "receipt.from").String()),
	}

	for _, arg := range gjson.GetBytes(data, "args").Array() {
		d.Args = append(d.Args, arg.String())
	}

	if raw := gjson.GetBytes(data, "abi"); raw.IsArray() {
		parsed, err := abi.JSON(strings.NewReader(raw.Raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse deployment abi: %w", err)
		}
		d.ABI = &parsed
		d.RawABI = raw.Raw
	}

	return d, nil
}

// SaveDeployment writes d as <dir>/<network>/<name>.json together with
// the network's .chainId marker
func SaveDeployment(dir string, chainID uint64, d *Deployment) (string, error) {
	netDir := filepath.Join(dir, d.Network)
	if err := os.MkdirAll(netDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create deployments directory: %w", err)
	}

	doc, err := encodeDeployment(d)
	if err != nil {
		return "", err
	}

	path := DeploymentPath(dir, d.Network, d.Name)
	if err := os.WriteFile(path, doc, 0644); err != nil {
		return "", fmt.Errorf("failed to write deployment: %w", err)
	}

	chainIDPath := filepath.Join(netDir, ".chainId")
	if err := os.WriteFile(chainIDPath, []byte(strconv.FormatUint(chainID, 10)), 0644); err != nil {
		return "", fmt.Errorf("failed to write chain id: %w", err)
	}

	return path, nil
}

func encodeDeployment(d *Deployment) ([]byte, error) {
	doc := []byte(`{}`)
	var err error

	set := func(path string, value interface{}) {
		if err != nil {
			return
		}
		doc, err = sjson.SetBytes(doc, path, value)
	}

	set("address", d.Address.Hex())
	if d.RawABI != "" {
		if err == nil {
			doc, err = sjson.SetRawBytes(doc, "abi", []byte(d.RawABI))
		}
	}
	set("transactionHash", d.TransactionHash.Hex())
	set("receipt.from", d.Deployer.Hex())
	set("receipt.contractAddress", d.Address.Hex())
	set("receipt.blockNumber", d.BlockNumber)
	set("args", argsOrEmpty(d.Args))

	if err != nil {
		return nil, fmt.Errorf("failed to encode deployment: %w", err)
	}
	return doc, nil
}

func argsOrEmpty(args []string) []string {
	if args == nil {
		return []string{}
	}
	return args
}

// ReadChainID returns the chain ID recorded for network, or 0 if none
func ReadChainID(dir, network string) (uint64, error) {
	data, err := os.ReadFile(filepath.Join(dir, network, ".chainId"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read chain id: %w", err)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id file: %w", err)
	}
	return id, nil
}
