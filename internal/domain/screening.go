package domain

import (
	"time"
)

// RiskLevel represents the risk severity
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// MatchType represents the type of sanctions match
type MatchType string

const (
	MatchTypeDirect   MatchType = "DIRECT"
	MatchTypeIndirect MatchType = "INDIRECT"
)

// ListSource identifies the sanctions list a match originates from
type ListSource string

const (
	ListSourceOFAC ListSource = "OFAC"
)

// SanctionMatch represents a hit linking an address to a sanctioned entity
type SanctionMatch struct {
	ListSource     ListSource `json:"list_source"`
	EntityName     string     `json:"entity_name"`
	EntityID       string     `json:"entity_id"`
	MatchType      MatchType  `json:"match_type"`
	Confidence     int        `json:"confidence"` // 0-100; DIRECT implies 100
	MatchedAddress string     `json:"matched_address"`
}

// ScreeningResult represents the result of screening a single address
type ScreeningResult struct {
	Address string `json:"address"`

	RiskScore  int       `json:"risk_score"` // 0-100
	RiskLevel  RiskLevel `json:"risk_level"`
	Confidence int       `json:"confidence"` // 0-100

	SanctionMatches []SanctionMatch `json:"sanction_matches"`
	PathAnalysis    *PathAnalysis   `json:"path_analysis,omitempty"`

	Timestamp        time.Time `json:"timestamp"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
}

// TxDirection selects which side of a transaction is screened
type TxDirection string

const (
	DirectionInputs  TxDirection = "inputs"
	DirectionOutputs TxDirection = "outputs"
	DirectionBoth    TxDirection = "both"
)

// TxScreeningResult represents the result of screening a transaction
type TxScreeningResult struct {
	TxHash    string      `json:"tx_hash"`
	Direction TxDirection `json:"direction"`

	OverallRiskScore int       `json:"overall_risk_score"` // 0-100
	OverallRiskLevel RiskLevel `json:"overall_risk_level"`
	Confidence       int       `json:"confidence"` // 0-100

	InputAddresses  []string          `json:"input_addresses"`
	OutputAddresses []string          `json:"output_addresses"`
	AddressResults  []ScreeningResult `json:"address_results"`
	SanctionMatches []SanctionMatch   `json:"sanction_matches"`

	// Populated only when metadata was requested
	Transaction *BitcoinTransaction `json:"transaction,omitempty"`

	Timestamp        time.Time `json:"timestamp"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
}

// RiskLevelForScore returns the risk level bucket for a score
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score < 26:
		return RiskLevelLow
	case score < 51:
		return RiskLevelMedium
	case score < 76:
		return RiskLevelHigh
	default:
		return RiskLevelCritical
	}
}

// HasDirectMatch returns true if any match was a direct address hit
func (s *ScreeningResult) HasDirectMatch() bool {
	for _, m := range s.SanctionMatches {
		if m.MatchType == MatchTypeDirect {
			return true
		}
	}
	return false
}

// IsHighRisk returns true if the result warrants escalation
func (s *ScreeningResult) IsHighRisk() bool {
	return s.RiskLevel == RiskLevelHigh || s.RiskLevel == RiskLevelCritical
}
