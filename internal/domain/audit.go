package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction identifies the operation an audit entry records
type AuditAction string

const (
	ActionScreenAddress   AuditAction = "SCREEN_ADDRESS"
	ActionScreenBulk      AuditAction = "SCREEN_BULK"
	ActionScreenTx        AuditAction = "SCREEN_TRANSACTION"
	ActionSanctionsReload AuditAction = "SANCTIONS_RELOAD"
)

// AuditEntry is one screening action recorded to the day-bucketed audit log
type AuditEntry struct {
	ID               uuid.UUID      `json:"id"`
	Action           AuditAction    `json:"action"`
	Subject          string         `json:"subject"` // address, bulk_N_items, or tx:<hash>
	TxHash           string         `json:"tx_hash,omitempty"`
	Result           map[string]any `json:"result,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
	CorrelationID    string         `json:"correlation_id"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	Success          bool           `json:"success"`
	Error            string         `json:"error,omitempty"`
}

// ScreenResultBag builds the audit result bag for an address screening
func ScreenResultBag(r *ScreeningResult, walkFailed bool) map[string]any {
	bag := map[string]any{
		"risk_score": r.RiskScore,
		"risk_level": string(r.RiskLevel),
		"matches":    len(r.SanctionMatches),
		"confidence": r.Confidence,
	}
	if r.PathAnalysis != nil {
		bag["path_nodes_found"] = r.PathAnalysis.SanctionedNodesFound
		bag["nodes_analyzed"] = r.PathAnalysis.TotalNodesAnalyzed
	}
	if walkFailed {
		bag["walk_failed"] = true
	}
	return bag
}

// TxScreenResultBag builds the audit result bag for a transaction screening
func TxScreenResultBag(r *TxScreeningResult) map[string]any {
	return map[string]any{
		"overall_risk_score": r.OverallRiskScore,
		"overall_risk_level": string(r.OverallRiskLevel),
		"matches":            len(r.SanctionMatches),
		"addresses_screened": len(r.AddressResults),
		"confidence":         r.Confidence,
	}
}

// BulkResultBag builds the audit result bag for a bulk screening
func BulkResultBag(total, screened, invalid, highRisk int) map[string]any {
	return map[string]any{
		"requested": total,
		"screened":  screened,
		"invalid":   invalid,
		"high_risk": highRisk,
	}
}

// AuditStats aggregates audit entries over a date range
type AuditStats struct {
	TotalLogs             int            `json:"total_logs"`
	SuccessfulLogs        int            `json:"successful_logs"`
	FailedLogs            int            `json:"failed_logs"`
	ActionCounts          map[string]int `json:"action_counts"`
	AverageProcessingTime float64        `json:"average_processing_time"`
	DateRange             []string       `json:"date_range"` // [from, to]
}
