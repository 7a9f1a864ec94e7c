package deploy

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/fundme-harness/internal/fundme"
	"github.com/0xmhha/fundme-harness/internal/network"
)

// Script is a named deploy step selected by tags
type Script struct {
	Name string
	Tags []string
	Run  func(ctx context.Context, d *Deployer, deployments Deployments) error
}

// Matches reports whether the script carries any of tags
func (s Script) Matches(tags []string) bool {
	for _, want := range tags {
		for _, have := range s.Tags {
			if want == have {
				return true
			}
		}
	}
	return false
}

// DefaultScripts returns the mock feed and FundMe scripts, in run order
func DefaultScripts() []Script {
	return []Script{MocksScript(), FundMeScript()}
}

// NeedsMockFeed reports whether FundMe on n must use a mock price feed
func NeedsMockFeed(n *network.Network) bool {
	return n.Class() == network.ClassDevelopment || !n.HasPriceFeed()
}

// MocksScript deploys MockV3Aggregator where no real feed exists
func MocksScript() Script {
	return Script{
		Name: "00-deploy-mocks",
		Tags: []string{TagAll, TagMocks},
		Run: func(ctx context.Context, d *Deployer, deployments Deployments) error {
			if !NeedsMockFeed(d.Network()) {
				return nil
			}
			d.logf("Local network detected! Deploying mocks...\n")
			_, err := d.DeployContract(ctx, deployments, fundme.AggregatorName,
				uint8(network.Decimals), new(big.Int).Set(network.InitialAnswer))
			if err != nil {
				return err
			}
			d.logf("Mocks deployed!\n")
			return nil
		},
	}
}

// FundMeScript deploys FundMe against the network feed or the mock
func FundMeScript() Script {
	return Script{
		Name: "01-deploy-fund-me",
		Tags: []string{TagAll, TagFundMe},
		Run: func(ctx context.Context, d *Deployer, deployments Deployments) error {
			feed, err := priceFeedFor(d.Network(), deployments)
			if err != nil {
				return err
			}
			_, err = d.DeployContract(ctx, deployments, fundme.FundMeName, feed)
			return err
		},
	}
}

func priceFeedFor(n *network.Network, deployments Deployments) (common.Address, error) {
	if !NeedsMockFeed(n) {
		return n.PriceFeed, nil
	}
	mock, err := deployments.Get(fundme.AggregatorName)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s needs a mock price feed: %w", n.Name, err)
	}
	return mock.Address, nil
}
