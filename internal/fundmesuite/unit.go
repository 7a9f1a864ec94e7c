package fundmesuite

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/fundme-harness/internal/deploy"
	"github.com/0xmhha/fundme-harness/internal/fundme"
	"github.com/0xmhha/fundme-harness/internal/harness"
	"github.com/0xmhha/fundme-harness/internal/wallet"
)

// unitState is rebuilt by the BeforeEach hook for every case
type unitState struct {
	fundMe   *fundme.FundMe
	deployer *wallet.Signer
	feed     common.Address
}

// Unit builds the per-case redeploy suite. It registers nothing on
// development chains.
func Unit(env *Env) *harness.Suite {
	name := ""
	if env.Network != nil {
		name = env.Network.Name
	}

	return harness.New(UnitSuiteName, harness.SkipOnDevelopment(name), func(g *harness.Group) {
		s := &unitState{}

		g.BeforeEach(func(ctx context.Context) error {
			if env.Deployer == nil {
				return errors.New("unit suite needs a deployer")
			}
			s.deployer = env.Wallet.Deployer()

			deployments, err := env.Deployer.Fixture(ctx, deploy.TagAll)
			if err != nil {
				return err
			}
			dep, err := deployments.Get(fundme.FundMeName)
			if err != nil {
				return err
			}
			s.fundMe = fundme.WrapFundMe(dep.Contract).Connect(s.deployer)

			if mock, err := deployments.Get(fundme.AggregatorName); err == nil {
				s.feed = mock.Address
			} else {
				s.feed = env.Network.PriceFeed
			}
			return nil
		})

		g.Describe("constructor", func(g *harness.Group) {
			g.It("sets the aggregator addresses correctly", func(ctx context.Context) error {
				feed, err := s.fundMe.GetPriceFeed(ctx)
				if err != nil {
					return err
				}
				return harness.ExpectEqualAddress("price feed", s.feed, feed)
			})
		})

		g.Describe("fund", func(g *harness.Group) {
			g.It("Fails if you don't send enough ETH", func(ctx context.Context) error {
				_, err := s.fundMe.Fund(ctx, nil)
				return harness.ExpectRevertedWith(err, fundme.ReasonNotEnoughETH)
			})

			g.It("Updates the amount funded data structure", func(ctx context.Context) error {
				if err := env.fund(ctx, s.fundMe); err != nil {
					return err
				}
				amount, err := s.fundMe.GetAddressToAmountFunded(ctx, s.deployer.Address)
				if err != nil {
					return err
				}
				return harness.ExpectEqualBig("amount funded", env.SendValue, amount)
			})

			g.It("Adds funder to array of funders", func(ctx context.Context) error {
				if err := env.fund(ctx, s.fundMe); err != nil {
					return err
				}
				funder, err := s.fundMe.GetFunder(ctx, 0)
				if err != nil {
					return err
				}
				return harness.ExpectEqualAddress("funder 0", s.deployer.Address, funder)
			})
		})

		g.Describe("withdraw", func(g *harness.Group) {
			g.BeforeEach(func(ctx context.Context) error {
				return env.fund(ctx, s.fundMe)
			})

			g.It("withdraws ETH from a single funder", func(ctx context.Context) error {
				_, err := env.withdrawAndReconcile(ctx, s.fundMe, "withdraw", s.fundMe.Withdraw)
				return err
			})

			g.It("cheaperWithdraw ETH from a single funder", func(ctx context.Context) error {
				_, err := env.withdrawAndReconcile(ctx, s.fundMe, "cheaperWithdraw", s.fundMe.CheaperWithdraw)
				return err
			})

			g.It("allows us to cheaperWithdraw with multiple funders", func(ctx context.Context) error {
				return env.multiFunderWithdraw(ctx, s.fundMe, "cheaperWithdraw", s.fundMe.CheaperWithdraw)
			})

			g.It("allows us to withdraw with multiple funders", func(ctx context.Context) error {
				return env.multiFunderWithdraw(ctx, s.fundMe, "withdraw", s.fundMe.Withdraw)
			})

			g.It("Only allows the owner to withdraw", func(ctx context.Context) error {
				attacker, err := env.Wallet.Signer(1)
				if err != nil {
					return err
				}
				_, err = s.fundMe.Connect(attacker).Withdraw(ctx)
				return harness.ExpectReverted(err)
			})

			g.It("Only allows the owner to cheaperWithdraw", func(ctx context.Context) error {
				attacker, err := env.Wallet.Signer(1)
				if err != nil {
					return err
				}
				_, err = s.fundMe.Connect(attacker).CheaperWithdraw(ctx)
				return harness.ExpectReverted(err)
			})
		})
	})
}

// multiFunderWithdraw funds from every extra account, withdraws as the
// owner and checks that the funder registry was cleared
func (e *Env) multiFunderWithdraw(ctx context.Context, fm *fundme.FundMe, method string, withdraw withdrawFunc) error {
	funders, err := e.funders()
	if err != nil {
		return err
	}
	for _, funder := range funders {
		if err := e.fund(ctx, fm.Connect(funder)); err != nil {
			return fmt.Errorf("funder %s: %w", funder.Address.Hex(), err)
		}
	}

	if _, err := e.withdrawAndReconcile(ctx, fm, method, withdraw); err != nil {
		return err
	}

	_, err = fm.GetFunder(ctx, 0)
	if err := harness.ExpectReverted(err); err != nil {
		return fmt.Errorf("funders not reset: %w", err)
	}

	for _, funder := range funders {
		amount, err := fm.GetAddressToAmountFunded(ctx, funder.Address)
		if err != nil {
			return err
		}
		if err := harness.ExpectZero("amount funded by "+funder.Address.Hex(), amount); err != nil {
			return err
		}
	}
	return nil
}
