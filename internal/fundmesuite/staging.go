package fundmesuite

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/fundme-harness/internal/artifact"
	"github.com/0xmhha/fundme-harness/internal/fundme"
	"github.com/0xmhha/fundme-harness/internal/harness"
)

// Staging builds the suite that runs against the FundMe already deployed
// on the network. Cases share that one instance, so their order matters.
func Staging(env *Env) *harness.Suite {
	name := ""
	if env.Network != nil {
		name = env.Network.Name
	}

	return harness.New(StagingSuiteName, harness.SkipOnDevelopment(name), func(g *harness.Group) {
		var fm *fundme.FundMe

		g.BeforeEach(func(ctx context.Context) error {
			addr, err := env.stagingAddress()
			if err != nil {
				return err
			}
			fm = fundme.NewFundMe(addr, env.Backend, env.Wallet.Deployer())
			return nil
		})

		g.It("allows people to fund and withdraw", func(ctx context.Context) error {
			if err := env.fund(ctx, fm); err != nil {
				return err
			}

			tx, err := fm.Withdraw(ctx)
			if err != nil {
				return err
			}
			if _, err := env.settle(ctx, tx, "withdraw"); err != nil {
				return err
			}

			balance, err := env.Backend.BalanceAt(ctx, fm.Address(), nil)
			if err != nil {
				return fmt.Errorf("failed to get contract balance: %w", err)
			}
			return harness.ExpectEqualString("ending balance", "0", balance.String())
		})
	})
}

func (e *Env) stagingAddress() (common.Address, error) {
	if e.FundMeAddress != (common.Address{}) {
		return e.FundMeAddress, nil
	}
	rec, err := artifact.LoadDeployment(e.DeploymentsDir, e.Network.Name, fundme.FundMeName)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to resolve deployed %s: %w", fundme.FundMeName, err)
	}
	return rec.Address, nil
}
