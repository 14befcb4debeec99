package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharePlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		plan    SharePlan
		rule    SharePlanRule
		sum     uint64
		address string
	}{
		{
			name: "even split",
			plan: SharePlan{Recipients: []string{ownerAddr, otherAddr}, ShareBPS: []uint64{5000, 5000}},
		},
		{
			name: "single recipient",
			plan: SharePlan{Recipients: []string{ownerAddr}, ShareBPS: []uint64{10000}},
		},
		{
			name: "one bps short",
			plan: SharePlan{Recipients: []string{ownerAddr, otherAddr}, ShareBPS: []uint64{6000, 3999}},
			rule: SharePlanRuleSumMismatch,
			sum:  9999,
		},
		{
			name: "over allocated",
			plan: SharePlan{Recipients: []string{ownerAddr, otherAddr}, ShareBPS: []uint64{6000, 5000}},
			rule: SharePlanRuleSumMismatch,
			sum:  11000,
		},
		{
			name: "sum wraps around",
			plan: SharePlan{Recipients: []string{ownerAddr, otherAddr}, ShareBPS: []uint64{math.MaxUint64, 10001}},
			rule: SharePlanRuleShareTooLarge,
		},
		{
			name: "single share above total",
			plan: SharePlan{Recipients: []string{ownerAddr, otherAddr}, ShareBPS: []uint64{10001, 0}},
			rule: SharePlanRuleShareTooLarge,
		},
		{
			name: "empty",
			plan: SharePlan{},
			rule: SharePlanRuleEmptyRecipients,
		},
		{
			name: "length mismatch",
			plan: SharePlan{Recipients: []string{ownerAddr, otherAddr}, ShareBPS: []uint64{10000}},
			rule: SharePlanRuleLengthMismatch,
		},
		{
			name:    "malformed address",
			plan:    SharePlan{Recipients: []string{ownerAddr, "0x1234"}, ShareBPS: []uint64{5000, 5000}},
			rule:    SharePlanRuleMalformedAddress,
			address: "0x1234",
		},
		{
			name:    "missing prefix",
			plan:    SharePlan{Recipients: []string{"1111111111111111111111111111111111111111"}, ShareBPS: []uint64{10000}},
			rule:    SharePlanRuleMalformedAddress,
			address: "1111111111111111111111111111111111111111",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.rule == "" {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, tt.rule, err.Rule)
			assert.Equal(t, tt.sum, err.Sum)
			assert.Equal(t, tt.address, err.Address)
		})
	}
}

func TestUnit_SharePlanValue(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		plan, err := ethertulipPlan().Units[0].SharePlanValue()
		require.NoError(t, err)
		require.NotNil(t, plan)
		assert.Equal(t, []uint64{5000, 5000}, plan.ShareBPS)
		assert.Equal(t, []string{ownerAddr, ownerAddr}, plan.Recipients)
	})

	t.Run("no share plan", func(t *testing.T) {
		plan, err := (&Unit{Name: "EtherTulip"}).SharePlanValue()
		require.NoError(t, err)
		assert.Nil(t, plan)
	})

	t.Run("sum 9999 reports the sum", func(t *testing.T) {
		u := &Unit{
			Name: "StreamETH",
			Args: []Arg{
				Literal(ownerAddr),
				Literal([]any{ownerAddr, otherAddr}),
				Literal([]any{6000, 3999}),
			},
			SharePlan: &SharePlanArgs{Recipients: 1, Shares: 2},
		}

		_, err := u.SharePlanValue()
		var share *InvalidSharePlanError
		require.ErrorAs(t, err, &share)
		assert.Equal(t, SharePlanRuleSumMismatch, share.Rule)
		assert.Equal(t, uint64(9999), share.Sum)
		assert.Equal(t, "StreamETH", share.Unit)
		assert.Contains(t, err.Error(), "sum=9999")
		assert.ErrorIs(t, err, ErrInvalidPlan)
	})

	t.Run("numeric forms from decoded yaml", func(t *testing.T) {
		u := &Unit{
			Name: "Split",
			Args: []Arg{
				Literal([]any{ownerAddr, otherAddr, ownerAddr}),
				Literal([]any{float64(2500), "2500", int64(5000)}),
			},
			SharePlan: &SharePlanArgs{Recipients: 0, Shares: 1},
		}

		plan, err := u.SharePlanValue()
		require.NoError(t, err)
		assert.Equal(t, []uint64{2500, 2500, 5000}, plan.ShareBPS)
	})

	t.Run("huge shares from strings", func(t *testing.T) {
		u := &Unit{
			Name:      "Split",
			Args:      []Arg{Literal([]any{ownerAddr, otherAddr}), Literal([]any{"18446744073709551615", "10001"})},
			SharePlan: &SharePlanArgs{Recipients: 0, Shares: 1},
		}

		_, err := u.SharePlanValue()
		var share *InvalidSharePlanError
		require.ErrorAs(t, err, &share)
		assert.Equal(t, SharePlanRuleShareTooLarge, share.Rule)
		assert.Equal(t, "Split", share.Unit)

		plan := &Plan{Name: "split", Units: []*Unit{u}}
		assert.ErrorIs(t, plan.Validate(), ErrInvalidPlan)
	})

	t.Run("fractional share", func(t *testing.T) {
		u := &Unit{
			Name:      "Split",
			Args:      []Arg{Literal([]any{ownerAddr}), Literal([]any{9999.5})},
			SharePlan: &SharePlanArgs{Recipients: 0, Shares: 1},
		}

		_, err := u.SharePlanValue()
		var share *InvalidSharePlanError
		require.ErrorAs(t, err, &share)
		assert.Equal(t, SharePlanRuleInvalidShare, share.Rule)
	})

	t.Run("index out of range", func(t *testing.T) {
		u := &Unit{Name: "Split", Args: []Arg{Literal([]any{ownerAddr})}, SharePlan: &SharePlanArgs{Recipients: 0, Shares: 3}}

		_, err := u.SharePlanValue()
		var share *InvalidSharePlanError
		require.ErrorAs(t, err, &share)
		assert.Equal(t, SharePlanRuleArgIndex, share.Rule)
	})

	t.Run("reference instead of list", func(t *testing.T) {
		u := &Unit{Name: "Split", Args: []Arg{Ref("Other"), Literal([]any{10000})}, SharePlan: &SharePlanArgs{Recipients: 0, Shares: 1}}

		_, err := u.SharePlanValue()
		var share *InvalidSharePlanError
		require.ErrorAs(t, err, &share)
		assert.Equal(t, SharePlanRuleNotList, share.Rule)
	})

	t.Run("non string recipient", func(t *testing.T) {
		u := &Unit{Name: "Split", Args: []Arg{Literal([]any{42}), Literal([]any{10000})}, SharePlan: &SharePlanArgs{Recipients: 0, Shares: 1}}

		_, err := u.SharePlanValue()
		var share *InvalidSharePlanError
		require.ErrorAs(t, err, &share)
		assert.Equal(t, SharePlanRuleMalformedAddress, share.Rule)
		assert.Equal(t, "42", share.Address)
	})
}

func TestIsValidAddress(t *testing.T) {
	assert.True(t, IsValidAddress(ownerAddr))
	assert.True(t, IsValidAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
	assert.True(t, IsValidAddress(ZeroAddress))
	// checksum broken by flipping the case of one character
	assert.False(t, IsValidAddress("0x5aaeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.False(t, IsValidAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeA"))
	assert.False(t, IsValidAddress("0xZZAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.False(t, IsValidAddress(""))
}
