package contract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]
	panicSelector  = crypto.Keccak256([]byte("Panic(uint256)"))[:4]
)

// RevertError is a call or transaction rejected by the EVM
type RevertError struct {
	Method    string
	Reason    string // decoded Error(string) message, if any
	ErrorName string // decoded custom error name, if any
	Data      []byte
	Message   string // node error message
}

func (e *RevertError) Error() string {
	var detail string
	switch {
	case e.Reason != "":
		detail = e.Reason
	case e.ErrorName != "":
		detail = e.ErrorName + "()"
	case len(e.Data) > 0:
		detail = hexutil.Encode(e.Data)
	default:
		detail = e.Message
	}
	if e.Method == "" {
		return fmt.Sprintf("execution reverted: %s", detail)
	}
	return fmt.Sprintf("%s reverted: %s", e.Method, detail)
}

// AsRevert returns the revert carried by err, if any
func AsRevert(err error) (*RevertError, bool) {
	var revert *RevertError
	if errors.As(err, &revert) {
		return revert, true
	}
	return nil, false
}

// DecodeRevert converts a node error into a *RevertError. It returns
// nil when err does not describe a revert.
func DecodeRevert(parsed *abi.ABI, method string, err error) *RevertError {
	if err == nil {
		return nil
	}

	revert := &RevertError{Method: method, Message: err.Error()}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			decoded, decodeErr := hexutil.Decode(hexData)
			if decodeErr == nil {
				revert.Data = decoded
				decodeRevertData(parsed, revert)
				return revert
			}
		}
	}

	msg := err.Error()
	if !strings.Contains(msg, "revert") {
		return nil
	}
	revert.Reason, revert.ErrorName = parseRevertMessage(msg)
	return revert
}

func decodeRevertData(parsed *abi.ABI, revert *RevertError) {
	data := revert.Data
	if len(data) < 4 {
		return
	}

	if bytes.Equal(data[:4], revertSelector) {
		if reason, err := abi.UnpackRevert(data); err == nil {
			revert.Reason = reason
		}
		return
	}

	// out-of-bounds reads, overflows and similar compiler checks
	if bytes.Equal(data[:4], panicSelector) {
		revert.ErrorName = "Panic"
		return
	}

	if parsed == nil {
		return
	}
	var id [4]byte
	copy(id[:], data[:4])
	if abiErr, err := parsed.ErrorByID(id); err == nil {
		revert.ErrorName = abiErr.Name
	}
}

// parseRevertMessage extracts the reason or custom error name from node
// messages such as "execution reverted: X" or
// "reverted with custom error 'Name()'"
func parseRevertMessage(msg string) (reason, errorName string) {
	const quoted = "reverted with reason string '"
	if i := strings.Index(msg, quoted); i >= 0 {
		rest := msg[i+len(quoted):]
		if j := strings.LastIndex(rest, "'"); j >= 0 {
			rest = rest[:j]
		}
		return rest, ""
	}

	const custom = "reverted with custom error '"
	if i := strings.Index(msg, custom); i >= 0 {
		rest := msg[i+len(custom):]
		if j := strings.Index(rest, "("); j >= 0 {
			rest = rest[:j]
		}
		return "", rest
	}

	const plain = "execution reverted: "
	if i := strings.Index(msg, plain); i >= 0 {
		return msg[i+len(plain):], ""
	}
	return "", ""
}
