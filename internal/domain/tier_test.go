package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func butterflyPolicy() *TenantPolicy {
	return &TenantPolicy{
		TenantID: "butterfly-row",
		Tiers: []TierDef{
			{Name: "public", GrantTag: "", Rank: 0},
			{Name: "verified", GrantTag: "verified-buyer", Rank: 1},
			{Name: "butterfly_paid", GrantTag: "butterfly-member", Rank: 2},
		},
		Rules: []CollectionRule{
			{CollectionID: "members-only", TierName: "butterfly_paid"},
		},
		DefaultTier: "public",
	}
}

func TestTenantPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TenantPolicy)
		wantErr string
	}{
		{
			name:   "valid policy",
			mutate: func(p *TenantPolicy) {},
		},
		{
			name:    "no tiers",
			mutate:  func(p *TenantPolicy) { p.Tiers = nil },
			wantErr: "at least one tier",
		},
		{
			name: "duplicate tier name",
			mutate: func(p *TenantPolicy) {
				p.Tiers = append(p.Tiers, TierDef{Name: "public", Rank: 5})
			},
			wantErr: "duplicate tier name",
		},
		{
			name: "duplicate rank breaks total order",
			mutate: func(p *TenantPolicy) {
				p.Tiers = append(p.Tiers, TierDef{Name: "vip", Rank: 2})
			},
			wantErr: "duplicate tier rank",
		},
		{
			name:    "default tier must exist",
			mutate:  func(p *TenantPolicy) { p.DefaultTier = "ghost" },
			wantErr: `default tier "ghost"`,
		},
		{
			name: "rule references unknown tier",
			mutate: func(p *TenantPolicy) {
				p.Rules = append(p.Rules, CollectionRule{CollectionID: "sale", TierName: "ghost"})
			},
			wantErr: "unknown tier",
		},
		{
			name: "override references unknown tier",
			mutate: func(p *TenantPolicy) {
				p.Overrides = map[string]ItemOverride{
					"item-1": {TenantID: p.TenantID, ItemID: "item-1", TierName: "ghost"},
				}
			},
			wantErr: "unknown tier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pol := butterflyPolicy()
			tt.mutate(pol)

			err := pol.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTenantPolicy_TierRank(t *testing.T) {
	pol := butterflyPolicy()

	rank, err := pol.TierRank("butterfly_paid")
	require.NoError(t, err)
	assert.Equal(t, 2, rank)

	_, err = pol.TierRank("ghost")
	assert.Error(t, err)
}

func TestTenantPolicy_LowestTier(t *testing.T) {
	pol := butterflyPolicy()
	assert.Equal(t, "public", pol.LowestTier())

	// Порядок объявления не важен — важен ранг
	pol.Tiers = []TierDef{
		{Name: "gold", Rank: 3},
		{Name: "basement", Rank: -1},
	}
	assert.Equal(t, "basement", pol.LowestTier())
}

func TestBatchDecision_DeniedItems(t *testing.T) {
	b := BatchDecision{
		PerItem: []AccessDecision{
			{ItemID: "a", Verdict: VerdictAllow},
			{ItemID: "b", Verdict: VerdictDeny, Reason: ReasonInsufficientTier},
			{ItemID: "c", Verdict: VerdictDeny, Reason: ReasonNotFound},
		},
	}

	denied := b.DeniedItems()
	require.Len(t, denied, 2)
	assert.Equal(t, "b", denied[0].ItemID)
	assert.Equal(t, "c", denied[1].ItemID)
}
