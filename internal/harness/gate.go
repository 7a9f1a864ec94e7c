// Package harness registers and runs network-gated integration cases.
package harness

import (
	"fmt"

	"github.com/0xmhha/fundme-harness/internal/network"
)

// Gate decides at build time whether a suite registers its cases
type Gate struct {
	Network string
	Enabled bool
	Reason  string
}

// SkipOnDevelopment enables the suite everywhere except development chains
func SkipOnDevelopment(networkName string) Gate {
	if network.IsDevelopment(networkName) {
		return Gate{
			Network: networkName,
			Reason:  fmt.Sprintf("%s is a development chain", networkName),
		}
	}
	return Gate{Network: networkName, Enabled: true}
}

// Always returns an open gate
func Always() Gate {
	return Gate{Enabled: true}
}
