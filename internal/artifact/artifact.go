package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tidwall/gjson"
)

// ErrNotFound is returned when no artifact or deployment exists for a name
var ErrNotFound = errors.New("artifact not found")

// Artifact is a compiled contract as written by hardhat
type Artifact struct {
	ContractName string
	SourceName   string
	ABI          *abi.ABI
	RawABI       string
	Bytecode     []byte
}

// LoadArtifact finds <name>.json below dir and parses it
func LoadArtifact(dir, name string) (*Artifact, error) {
	path, err := findArtifact(dir, name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return ParseArtifact(data)
}

// ParseArtifact parses hardhat artifact JSON
func ParseArtifact(data []byte) (*Artifact, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("artifact is not valid JSON")
	}

	result := gjson.GetManyBytes(data, "contractName", "sourceName", "abi", "bytecode")
	if !result[2].IsArray() {
		return nil, errors.New("artifact has no abi")
	}

	parsed, err := abi.JSON(strings.NewReader(result[2].Raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse abi: %w", err)
	}

	bytecode, err := decodeBytecode(result[3].String())
	if err != nil {
		return nil, err
	}

	return &Artifact{
		ContractName: result[0].String(),
		SourceName:   result[1].String(),
		ABI:          &parsed,
		RawABI:       result[2].Raw,
		Bytecode:     bytecode,
	}, nil
}

func decodeBytecode(hex string) ([]byte, error) {
	if hex == "" || hex == "0x" {
		return nil, errors.New("artifact has no bytecode (abstract contract or interface)")
	}
	if !strings.HasPrefix(hex, "0x") {
		hex = "0x" + hex
	}
	// unlinked library placeholders look like __$...$__
	if strings.Contains(hex, "__") {
		return nil, errors.New("artifact bytecode has unlinked libraries")
	}
	code, err := hexutil.Decode(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode: %w", err)
	}
	return code, nil
}

func findArtifact(dir, name string) (string, error) {
	want := name + ".json"
	var found string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// build-info holds compiler input, not artifacts
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == want {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to search artifacts in %s: %w", dir, err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s in %s", ErrNotFound, name, dir)
	}
	return found, nil
}
