package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stratrunner.com/internal/config"
	"stratrunner.com/internal/model"
	"stratrunner.com/internal/store"
)

var defaultCfg = config.SettlementConfig{
	PlatformFeeRate: 0.10,
	Tier1Rate:       0.20,
	Tier2Rate:       0.10,
	PlatformAccount: "platform",
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeSplitConserves(t *testing.T) {
	rates := NewRates(defaultCfg)
	profits := []string{"1000", "0.01", "123.4567891234", "-250", "0", "0.0000000003"}

	for _, p := range profits {
		for _, tiers := range [][2]bool{{false, false}, {true, false}, {true, true}} {
			s := ComputeSplit(d(p), rates, tiers[0], tiers[1])
			sum := s.Net.Add(s.PlatformFee).Add(s.Tier1).Add(s.Tier2)
			assert.True(t, sum.Equal(d(p)), "profit %s tiers %v: parts sum to %s", p, tiers, sum)
		}
	}
}

func TestComputeSplitTierGating(t *testing.T) {
	rates := NewRates(defaultCfg)

	none := ComputeSplit(d("1000"), rates, false, false)
	assert.True(t, none.PlatformFee.Equal(d("100")))
	assert.True(t, none.Tier1.IsZero())
	assert.True(t, none.Tier2.IsZero())
	assert.True(t, none.Net.Equal(d("900")))

	one := ComputeSplit(d("1000"), rates, true, false)
	assert.True(t, one.Tier1.Equal(d("200")))
	assert.True(t, one.Tier2.IsZero())
	assert.True(t, one.Net.Equal(d("700")))
}

func TestDistributeTwoTierExample(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	require.NoError(t, mem.SetParent(ctx, "U", "P"))
	require.NoError(t, mem.SetParent(ctx, "P", "G"))

	dist := NewDistributor(mem, mem, defaultCfg, nil)
	split, err := dist.Distribute(ctx, "U", model.StrategyTypeGrid, d("1000"))
	require.NoError(t, err)
	assert.Equal(t, "P", split.Parent)
	assert.Equal(t, "G", split.GrandParent)

	byOwner := map[string]model.LedgerEntry{}
	settlementIDs := map[string]bool{}
	for _, e := range mem.Ledger() {
		byOwner[e.UserID] = e
		settlementIDs[e.SettlementID] = true
	}
	require.Len(t, byOwner, 4)
	assert.Len(t, settlementIDs, 1)

	assert.True(t, byOwner["platform"].Amount.Equal(d("100")))
	assert.Equal(t, model.LedgerKindPlatformFee, byOwner["platform"].Kind)

	assert.True(t, byOwner["P"].Amount.Equal(d("200")))
	assert.Equal(t, 1, byOwner["P"].Tier)
	assert.Equal(t, model.LedgerKindReferralCommission, byOwner["P"].Kind)

	assert.True(t, byOwner["G"].Amount.Equal(d("100")))
	assert.Equal(t, 2, byOwner["G"].Tier)

	assert.True(t, byOwner["U"].Amount.Equal(d("600")))
	assert.Equal(t, model.LedgerKindStrategyProfit, byOwner["U"].Kind)
	assert.Equal(t, model.StrategyTypeGrid, byOwner["U"].SourceStrategy)
}

func TestDistributeWithoutReferrers(t *testing.T) {
	mem := store.NewMemoryStore()
	dist := NewDistributor(mem, mem, defaultCfg, nil)

	_, err := dist.Distribute(context.Background(), "solo", model.StrategyTypeScalping, d("50"))
	require.NoError(t, err)

	ledger := mem.Ledger()
	require.Len(t, ledger, 2)
	for _, e := range ledger {
		assert.NotEqual(t, model.LedgerKindReferralCommission, e.Kind)
	}
}

func TestDistributeLossUsesSameFormula(t *testing.T) {
	mem := store.NewMemoryStore()
	dist := NewDistributor(mem, mem, defaultCfg, nil)

	split, err := dist.Distribute(context.Background(), "u1", model.StrategyTypeScalping, d("-15"))
	require.NoError(t, err)
	assert.True(t, split.PlatformFee.Equal(d("-1.5")))
	assert.True(t, split.Net.Equal(d("-13.5")))
}

func TestDistributeWritesNothingOnFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	require.NoError(t, mem.SetParent(ctx, "U", "P"))
	mem.FailLedger = errors.New("disk full")

	dist := NewDistributor(mem, mem, defaultCfg, nil)
	_, err := dist.Distribute(ctx, "U", model.StrategyTypeGrid, d("1000"))
	require.Error(t, err)
	assert.Empty(t, mem.Ledger())
}
