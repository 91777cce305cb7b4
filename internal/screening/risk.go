package screening

import (
	"math"

	"github.com/cryptocompliance/btc-screening/internal/domain"
)

// The risk model is a set of pure functions; everything stateful lives in
// the screeners that call them.

const (
	directMatchBase     = 60
	directMatchCap      = 80
	ofacListBonus       = 15
	multiMatchBonusCap  = 20
	multiMatchBonusStep = 5

	indirectRiskWeight = 0.6

	hopDecayStep    = 20
	matchBonusStep  = 25
	matchBonusCap   = 50
	hopWeightDecay  = 0.15
	hopWeightFloor  = 0.1
	nodePenaltyStep = 5
	nodePenaltyCap  = 25
)

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// directMatchScore scores a set of direct sanctions matches
func directMatchScore(matches []domain.SanctionMatch) int {
	if len(matches) == 0 {
		return 0
	}

	score := directMatchBase
	if len(matches) > 1 {
		bonus := multiMatchBonusStep * len(matches)
		if bonus > multiMatchBonusCap {
			bonus = multiMatchBonusCap
		}
		score += bonus
	}
	for _, m := range matches {
		if m.ListSource == domain.ListSourceOFAC {
			score += ofacListBonus
			break
		}
	}

	if score > directMatchCap {
		score = directMatchCap
	}
	return score
}

// hopContribution scores one discovered path node: risk decays with hop
// distance and grows with the number of entities matching the address
func hopContribution(hop, matchCount int) int {
	base := 100 - hopDecayStep*hop
	if base < 0 {
		base = 0
	}
	bonus := matchBonusStep * matchCount
	if bonus > matchBonusCap {
		bonus = matchBonusCap
	}
	return clampScore(base + bonus)
}

// riskPropagation aggregates a walk's path nodes into a single 0-100
// indirect exposure score
func riskPropagation(a *domain.PathAnalysis) int {
	if a == nil || len(a.PathNodes) == 0 {
		return 0
	}

	var weightedSum, weightTotal float64
	for _, node := range a.PathNodes {
		w := 1 - hopWeightDecay*float64(node.Hop)
		if w < hopWeightFloor {
			w = hopWeightFloor
		}
		weightedSum += float64(node.RiskContribution) * w
		weightTotal += w
	}
	weightedAvg := weightedSum / weightTotal

	penalty := nodePenaltyStep * a.SanctionedNodesFound
	if penalty > nodePenaltyCap {
		penalty = nodePenaltyCap
	}

	return clampScore(int(math.Round(weightedAvg + float64(penalty))))
}

// indirectContribution converts a walk's propagation score into the
// points it adds to an address's risk score
func indirectContribution(propagation int) int {
	return int(math.Round(indirectRiskWeight * float64(propagation)))
}

// confidenceScore estimates how trustworthy a screening outcome is, based
// on the evidence that produced it
func confidenceScore(matches []domain.SanctionMatch, a *domain.PathAnalysis) int {
	score := 0
	if len(matches) > 0 {
		score += 70
		if len(matches) > 1 {
			score += 10
		}
	} else {
		score += 30
	}

	if a != nil && a.TotalNodesAnalyzed > 0 {
		score += 15
		if a.TotalNodesAnalyzed > 10 {
			score += 5
		}
	}

	return clampScore(score)
}
