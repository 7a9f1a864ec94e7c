package harness

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/fundme-harness/internal/contract"
)

func TestSkipOnDevelopment(t *testing.T) {
	tests := []struct {
		network string
		enabled bool
	}{
		{"hardhat", false},
		{"localhost", false},
		{"Hardhat", false},
		{"sepolia", true},
		{"simnet", true},
	}

	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			gate := SkipOnDevelopment(tt.network)
			assert.Equal(t, tt.enabled, gate.Enabled)
			if !tt.enabled {
				assert.NotEmpty(t, gate.Reason)
			}
		})
	}
}

func TestNew_ClosedGateRegistersNothing(t *testing.T) {
	built := false
	s := New("FundMe", SkipOnDevelopment("hardhat"), func(g *Group) {
		built = true
		g.It("never", func(ctx context.Context) error { return nil })
	})

	assert.False(t, built)
	assert.True(t, s.Skipped())
	assert.Empty(t, s.Cases())

	out := &bytes.Buffer{}
	report := NewRunner(&RunnerConfig{Out: out}).Run(context.Background(), s)
	assert.True(t, report.Skipped)
	assert.Empty(t, report.Results)
	assert.Contains(t, out.String(), "[SKIP] FundMe")
}

func TestSuite_CasesAndHookOrder(t *testing.T) {
	var calls []string
	hook := func(name string) Hook {
		return func(ctx context.Context) error {
			calls = append(calls, name)
			return nil
		}
	}

	s := New("FundMe", Always(), func(g *Group) {
		g.BeforeEach(hook("outer"))
		g.Describe("fund", func(g *Group) {
			g.BeforeEach(hook("inner"))
			g.It("records the amount", func(ctx context.Context) error {
				calls = append(calls, "case")
				return nil
			})
		})
		g.It("top level", func(ctx context.Context) error { return nil })
	})

	cases := s.Cases()
	require.Len(t, cases, 2)
	assert.Equal(t, "FundMe fund records the amount", cases[0].Name)
	assert.Equal(t, "FundMe top level", cases[1].Name)
	assert.Len(t, cases[0].Hooks, 2)
	assert.Len(t, cases[1].Hooks, 1)

	report := NewRunner(&RunnerConfig{}).Run(context.Background(), s)
	assert.Equal(t, 2, report.Passed())
	assert.Equal(t, []string{"outer", "inner", "case", "outer"}, calls)
}

func TestRunner_FailureIsolation(t *testing.T) {
	var ran []string
	s := New("suite", Always(), func(g *Group) {
		g.It("fails", func(ctx context.Context) error {
			ran = append(ran, "fails")
			return errors.New("boom")
		})
		g.It("panics", func(ctx context.Context) error {
			ran = append(ran, "panics")
			panic("unexpected")
		})
		g.It("passes", func(ctx context.Context) error {
			ran = append(ran, "passes")
			return nil
		})
	})

	out := &bytes.Buffer{}
	var ended []string
	runner := NewRunner(&RunnerConfig{
		Out:       out,
		OnCaseEnd: func(r *Result) { ended = append(ended, r.Status.String()) },
	})
	report := runner.Run(context.Background(), s)

	assert.Equal(t, []string{"fails", "panics", "passes"}, ran)
	assert.Equal(t, []string{"FAIL", "FAIL", "PASS"}, ended)
	assert.Equal(t, 1, report.Passed())
	assert.Equal(t, 2, report.Failed())
	assert.False(t, report.OK())
	assert.True(t, report.Results[1].Panicked)
	assert.Contains(t, out.String(), "[FAIL] suite fails")
	assert.Contains(t, out.String(), "[OK] suite passes")
}

func TestRunner_HookFailureSkipsBody(t *testing.T) {
	bodyRan := false
	s := New("suite", Always(), func(g *Group) {
		g.BeforeEach(func(ctx context.Context) error { return errors.New("deploy failed") })
		g.It("case", func(ctx context.Context) error {
			bodyRan = true
			return nil
		})
	})

	report := NewRunner(&RunnerConfig{}).Run(context.Background(), s)
	assert.False(t, bodyRan)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusFailed, report.Results[0].Status)
	assert.Contains(t, report.Results[0].Err.Error(), "deploy failed")
}

func TestRunner_CaseTimeout(t *testing.T) {
	s := New("suite", Always(), func(g *Group) {
		g.It("hangs", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
	})

	report := NewRunner(&RunnerConfig{CaseTimeout: 10 * time.Millisecond}).Run(context.Background(), s)
	require.Len(t, report.Results, 1)
	assert.ErrorIs(t, report.Results[0].Err, context.DeadlineExceeded)
}

func TestRunner_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New("suite", Always(), func(g *Group) {
		g.It("cancels", func(context.Context) error {
			cancel()
			return nil
		})
		g.It("after", func(context.Context) error { return nil })
	})

	report := NewRunner(&RunnerConfig{}).Run(ctx, s)
	require.Len(t, report.Results, 2)
	assert.Equal(t, StatusPassed, report.Results[0].Status)
	assert.Equal(t, StatusSkipped, report.Results[1].Status)
}

func TestExpectations(t *testing.T) {
	reason := &contract.RevertError{Method: "fund", Reason: "You need to spend more ETH!"}
	custom := &contract.RevertError{Method: "withdraw", ErrorName: "FundMe__NotOwner"}
	plain := errors.New("connection refused")

	assert.NoError(t, ExpectReverted(reason))
	assert.NoError(t, ExpectReverted(custom))
	assert.Error(t, ExpectReverted(nil))
	assert.Error(t, ExpectReverted(plain))

	assert.NoError(t, ExpectRevertedWith(reason, "You need to spend more ETH!"))
	assert.Error(t, ExpectRevertedWith(reason, "other"))
	assert.Error(t, ExpectRevertedWith(nil, "You need to spend more ETH!"))

	assert.NoError(t, ExpectRevertedWithCustomError(custom, "FundMe__NotOwner"))
	assert.Error(t, ExpectRevertedWithCustomError(reason, "FundMe__NotOwner"))

	assert.NoError(t, ExpectEqualBig("amount", big.NewInt(5), big.NewInt(5)))
	assert.NoError(t, ExpectZero("balance", new(big.Int)))
	assert.NoError(t, ExpectEqualString("balance", "0", "0"))
	assert.NoError(t, ExpectEqualAddress("owner", common.HexToAddress("0x01"), common.HexToAddress("0x01")))

	err := ExpectEqualBig("amount", big.NewInt(5), big.NewInt(6))
	var assertErr *AssertionError
	require.True(t, errors.As(err, &assertErr))
	assert.Equal(t, "5", assertErr.Expected)
	assert.Equal(t, "6", assertErr.Actual)
	assert.Equal(t, "amount: expected 5, got 6", err.Error())

	assert.Error(t, ExpectEqualBig("amount", nil, big.NewInt(1)))
	assert.Error(t, ExpectEqualAddress("owner", common.HexToAddress("0x01"), common.HexToAddress("0x02")))
}

func TestRunT(t *testing.T) {
	RunT(t, New("suite", Always(), func(g *Group) {
		g.It("passes", func(ctx context.Context) error { return nil })
	}))
	t.Run("gated", func(t *testing.T) {
		RunT(t, New("gated", SkipOnDevelopment("localhost"), nil))
	})
}
