package screening

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cryptocompliance/btc-screening/internal/domain"
)

func ofacMatch() domain.SanctionMatch {
	return domain.SanctionMatch{
		ListSource: domain.ListSourceOFAC,
		EntityID:   "25308",
		MatchType:  domain.MatchTypeDirect,
		Confidence: 100,
	}
}

func TestDirectMatchScore(t *testing.T) {
	assert.Equal(t, 0, directMatchScore(nil))
	assert.Equal(t, 0, directMatchScore([]domain.SanctionMatch{}))

	// Single OFAC match: base 60 + list bonus 15
	assert.Equal(t, 75, directMatchScore([]domain.SanctionMatch{ofacMatch()}))

	// Single match from an unrecognized list: base only
	other := ofacMatch()
	other.ListSource = "UN"
	assert.Equal(t, 60, directMatchScore([]domain.SanctionMatch{other}))

	// Two OFAC matches: 60 + 10 + 15 = 85, capped at 80
	assert.Equal(t, 80, directMatchScore([]domain.SanctionMatch{ofacMatch(), ofacMatch()}))
}

func TestRiskLevelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  domain.RiskLevel
	}{
		{0, domain.RiskLevelLow},
		{25, domain.RiskLevelLow},
		{26, domain.RiskLevelMedium},
		{50, domain.RiskLevelMedium},
		{51, domain.RiskLevelHigh},
		{75, domain.RiskLevelHigh},
		{76, domain.RiskLevelCritical},
		{100, domain.RiskLevelCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.RiskLevelForScore(tt.score), "score %d", tt.score)
	}
}

func TestHopContribution(t *testing.T) {
	// hop 1, one match: 80 + 25 = 105, clamped to 100
	assert.Equal(t, 100, hopContribution(1, 1))
	// hop 5 and beyond: base decays to zero, bonus remains
	assert.Equal(t, 25, hopContribution(5, 1))
	assert.Equal(t, 25, hopContribution(6, 1))
	// match bonus caps at 50
	assert.Equal(t, 50, hopContribution(10, 7))
	assert.Equal(t, 100, hopContribution(2, 2))
}

func TestRiskPropagation(t *testing.T) {
	assert.Equal(t, 0, riskPropagation(nil))
	assert.Equal(t, 0, riskPropagation(&domain.PathAnalysis{}))

	// One node at hop 2 with rc=60: 60*0.7/0.7 + 5 = 65
	one := &domain.PathAnalysis{
		SanctionedNodesFound: 1,
		PathNodes: []domain.PathNode{
			{Hop: 2, RiskContribution: 60},
		},
	}
	assert.Equal(t, 65, riskPropagation(one))

	// Hop weight floors at 0.1 for deep hops
	deep := &domain.PathAnalysis{
		SanctionedNodesFound: 1,
		PathNodes: []domain.PathNode{
			{Hop: 10, RiskContribution: 40},
		},
	}
	assert.Equal(t, 45, riskPropagation(deep))

	// Node penalty caps at 25
	nodes := make([]domain.PathNode, 8)
	for i := range nodes {
		nodes[i] = domain.PathNode{Hop: 1, RiskContribution: 100}
	}
	many := &domain.PathAnalysis{SanctionedNodesFound: 8, PathNodes: nodes}
	assert.Equal(t, 100, riskPropagation(many))
}

func TestIndirectContribution(t *testing.T) {
	assert.Equal(t, 39, indirectContribution(65))
	assert.Equal(t, 0, indirectContribution(0))
	assert.Equal(t, 60, indirectContribution(100))
}

func TestConfidenceScore(t *testing.T) {
	// No matches, no walk
	assert.Equal(t, 30, confidenceScore(nil, nil))

	// One match, no walk
	assert.Equal(t, 70, confidenceScore([]domain.SanctionMatch{ofacMatch()}, nil))

	// One match plus a deep walk: 70 + 15 + 5
	assert.Equal(t, 90, confidenceScore(
		[]domain.SanctionMatch{ofacMatch()},
		&domain.PathAnalysis{TotalNodesAnalyzed: 11},
	))

	// Walk that analyzed nothing adds nothing
	assert.Equal(t, 30, confidenceScore(nil, &domain.PathAnalysis{TotalNodesAnalyzed: 0}))

	// Multiple matches with a big walk clamps at 100
	assert.Equal(t, 100, confidenceScore(
		[]domain.SanctionMatch{ofacMatch(), ofacMatch()},
		&domain.PathAnalysis{TotalNodesAnalyzed: 50},
	))
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, clampScore(-5))
	assert.Equal(t, 100, clampScore(140))
	assert.Equal(t, 42, clampScore(42))
}
