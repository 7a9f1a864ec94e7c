package accounting

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapReader struct {
	balances map[common.Address]*big.Int
	err      error
}

func (m *mapReader) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if m.err != nil {
		return nil, m.err
	}
	if b, ok := m.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func TestReconcile(t *testing.T) {
	gas := big.NewInt(63000 * 875000000)

	tests := []struct {
		name    string
		before  *Snapshot
		after   *Snapshot
		gasCost *big.Int
		wantErr error
	}{
		{
			name:    "single funder",
			before:  &Snapshot{Contract: eth(1), Owner: eth(9999)},
			after:   &Snapshot{Contract: big.NewInt(0), Owner: new(big.Int).Sub(eth(10000), gas)},
			gasCost: gas,
		},
		{
			name:    "multiple funders",
			before:  &Snapshot{Contract: eth(6), Owner: eth(100)},
			after:   &Snapshot{Contract: big.NewInt(0), Owner: new(big.Int).Sub(eth(106), gas)},
			gasCost: gas,
		},
		{
			name:    "owner paid more than gas",
			before:  &Snapshot{Contract: eth(1), Owner: eth(10)},
			after:   &Snapshot{Contract: big.NewInt(0), Owner: new(big.Int).Sub(eth(11), new(big.Int).Add(gas, big.NewInt(1)))},
			gasCost: gas,
			wantErr: ErrBalanceMismatch,
		},
		{
			name:    "funds left in contract",
			before:  &Snapshot{Contract: eth(2), Owner: eth(10)},
			after:   &Snapshot{Contract: eth(1), Owner: new(big.Int).Sub(eth(11), gas)},
			gasCost: gas,
			wantErr: ErrContractNotEmpty,
		},
		{
			name:    "nil gas cost treated as zero",
			before:  &Snapshot{Contract: eth(1), Owner: eth(1)},
			after:   &Snapshot{Contract: big.NewInt(0), Owner: eth(2)},
			gasCost: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Reconcile(tt.before, tt.after, tt.gasCost)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Zero(t, res.Delta.Sign())
			assert.Equal(t, 0, res.Withdrawn.Cmp(tt.before.Contract))
		})
	}
}

func TestReconcile_MissingSnapshot(t *testing.T) {
	_, err := Reconcile(nil, &Snapshot{}, nil)
	assert.Error(t, err)
}

func TestTake(t *testing.T) {
	contractAddr := common.HexToAddress("0x01")
	owner := common.HexToAddress("0x02")
	reader := &mapReader{balances: map[common.Address]*big.Int{
		contractAddr: eth(3),
		owner:        eth(7),
	}}

	snap, err := Take(context.Background(), reader, contractAddr, owner)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Contract.Cmp(eth(3)))
	assert.Equal(t, 0, snap.Owner.Cmp(eth(7)))
	assert.Equal(t, 0, snap.Total().Cmp(eth(10)))

	reader.err = errors.New("rpc down")
	_, err = Take(context.Background(), reader, contractAddr, owner)
	assert.Error(t, err)
}
