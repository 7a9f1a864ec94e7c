package harness

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/fundme-harness/internal/contract"
)

// AssertionError is a failed expectation
type AssertionError struct {
	What     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.What, e.Expected, e.Actual)
}

func describeErr(err error) string {
	if err == nil {
		return "success"
	}
	return err.Error()
}

// ExpectReverted requires err to be a contract revert of any kind
func ExpectReverted(err error) error {
	if _, ok := contract.AsRevert(err); ok {
		return nil
	}
	return &AssertionError{What: "revert", Expected: "transaction to be reverted", Actual: describeErr(err)}
}

// ExpectRevertedWith requires err to be a revert with exactly reason
func ExpectRevertedWith(err error, reason string) error {
	revert, ok := contract.AsRevert(err)
	if !ok {
		return &AssertionError{
			What:     "revert reason",
			Expected: fmt.Sprintf("reverted with %q", reason),
			Actual:   describeErr(err),
		}
	}
	if revert.Reason != reason {
		return &AssertionError{
			What:     "revert reason",
			Expected: fmt.Sprintf("%q", reason),
			Actual:   fmt.Sprintf("%q", revert.Reason),
		}
	}
	return nil
}

// ExpectRevertedWithCustomError requires err to be a revert with the named custom error
func ExpectRevertedWithCustomError(err error, name string) error {
	revert, ok := contract.AsRevert(err)
	if !ok {
		return &AssertionError{
			What:     "custom error",
			Expected: fmt.Sprintf("reverted with %s()", name),
			Actual:   describeErr(err),
		}
	}
	if revert.ErrorName != name {
		return &AssertionError{What: "custom error", Expected: name + "()", Actual: revert.Error()}
	}
	return nil
}

// ExpectEqualBig compares two integers by value
func ExpectEqualBig(what string, expected, actual *big.Int) error {
	if expected == nil || actual == nil {
		if expected == actual {
			return nil
		}
		return &AssertionError{What: what, Expected: fmt.Sprint(expected), Actual: fmt.Sprint(actual)}
	}
	if expected.Cmp(actual) != 0 {
		return &AssertionError{What: what, Expected: expected.String(), Actual: actual.String()}
	}
	return nil
}

// ExpectZero requires v to be zero
func ExpectZero(what string, v *big.Int) error {
	return ExpectEqualBig(what, new(big.Int), v)
}

// ExpectEqualString compares two strings
func ExpectEqualString(what, expected, actual string) error {
	if expected != actual {
		return &AssertionError{What: what, Expected: fmt.Sprintf("%q", expected), Actual: fmt.Sprintf("%q", actual)}
	}
	return nil
}

// ExpectEqualAddress compares two addresses
func ExpectEqualAddress(what string, expected, actual common.Address) error {
	if expected != actual {
		return &AssertionError{What: what, Expected: expected.Hex(), Actual: actual.Hex()}
	}
	return nil
}
