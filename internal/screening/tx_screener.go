package screening

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/cryptocompliance/btc-screening/internal/domain"
	"github.com/cryptocompliance/btc-screening/internal/metrics"
	"github.com/cryptocompliance/btc-screening/internal/pkg/logger"
	"github.com/cryptocompliance/btc-screening/internal/validation"
)

// txScreenerMaxHops is reserved for a future indirect mode; the walker
// is never invoked while transaction screening runs with walks disabled.
const txScreenerMaxHops = 3

const highRiskPenaltyStep = 10
const highRiskPenaltyCap = 25

// TransactionFetcher is the indexer surface the transaction screener needs
type TransactionFetcher interface {
	GetTransaction(ctx context.Context, txid string) (*domain.BitcoinTransaction, error)
}

// addressScreening is the address screener surface used per resolved address
type addressScreening interface {
	Screen(ctx context.Context, addr string, includeWalk bool, maxHops int, correlationID string) (*domain.ScreeningResult, error)
}

// TxScreener resolves a transaction to its address set and aggregates
// per-address screening into an overall risk assessment.
type TxScreener struct {
	fetcher  TransactionFetcher
	screener addressScreening
	audit    AuditRecorder
	log      *logger.Logger
	now      func() time.Time
}

// NewTxScreener creates a transaction screener
func NewTxScreener(fetcher TransactionFetcher, screener *AddressScreener, audit AuditRecorder, log *logger.Logger) *TxScreener {
	return &TxScreener{
		fetcher:  fetcher,
		screener: screener,
		audit:    audit,
		log:      log.Named("tx_screener"),
		now:      time.Now,
	}
}

// Screen screens the addresses on the selected side(s) of a transaction.
// Addresses are screened without graph walking; per-address failures
// reduce completeness instead of failing the request.
func (s *TxScreener) Screen(ctx context.Context, txHash string, direction domain.TxDirection, includeMetadata bool, correlationID string) (*domain.TxScreeningResult, error) {
	started := time.Now()
	log := s.log.WithCorrelation(correlationID)

	if !validation.IsValidTxHash(txHash) {
		err := domain.ValidationError("invalid transaction hash").WithDetail("tx_hash", txHash)
		s.recordAudit(txHash, nil, correlationID, started, err)
		return nil, err
	}

	tx, err := s.fetcher.GetTransaction(ctx, txHash)
	if err != nil {
		s.recordAudit(txHash, nil, correlationID, started, err)
		return nil, err
	}

	inputAddrs := uniqueAddresses(tx.Inputs, nil)
	outputAddrs := uniqueAddresses(nil, tx.Outputs)

	var toScreen []string
	switch direction {
	case domain.DirectionInputs:
		toScreen = inputAddrs
	case domain.DirectionOutputs:
		toScreen = outputAddrs
	default:
		toScreen = unionAddresses(inputAddrs, outputAddrs)
	}

	addressResults := make([]domain.ScreeningResult, 0, len(toScreen))
	for _, addr := range toScreen {
		r, err := s.screener.Screen(ctx, addr, false, txScreenerMaxHops, correlationID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("address screening failed during transaction screening",
				logger.StringField("address", addr), logger.ErrorField(err))
			continue
		}
		addressResults = append(addressResults, *r)
	}

	overallScore := aggregateRiskScore(addressResults)
	result := &domain.TxScreeningResult{
		TxHash:           txHash,
		Direction:        direction,
		OverallRiskScore: overallScore,
		OverallRiskLevel: domain.RiskLevelForScore(overallScore),
		Confidence:       aggregateConfidence(addressResults, len(toScreen)),
		InputAddresses:   inputAddrs,
		OutputAddresses:  outputAddrs,
		AddressResults:   addressResults,
		SanctionMatches:  unionMatches(addressResults),
		Timestamp:        s.now(),
		ProcessingTimeMs: time.Since(started).Milliseconds(),
	}
	if includeMetadata {
		result.Transaction = tx
	}

	s.recordAudit(txHash, result, correlationID, started, nil)
	metrics.ObserveScreening("transaction", string(result.OverallRiskLevel), started)
	return result, nil
}

// ScreenBatch screens transactions sequentially to respect indexer
// limits; a per-transaction failure is logged and skipped.
func (s *TxScreener) ScreenBatch(ctx context.Context, txHashes []string, direction domain.TxDirection, includeMetadata bool, correlationID string) ([]*domain.TxScreeningResult, error) {
	log := s.log.WithCorrelation(correlationID)

	results := make([]*domain.TxScreeningResult, 0, len(txHashes))
	for _, txHash := range txHashes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := s.Screen(ctx, txHash, direction, includeMetadata, correlationID)
		if err != nil {
			log.Warn("batch transaction screening entry failed",
				logger.StringField("tx_hash", txHash), logger.ErrorField(err))
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// aggregateRiskScore combines per-address scores: a confidence- and
// match-weighted average plus a penalty for each high-risk address.
func aggregateRiskScore(results []domain.ScreeningResult) int {
	if len(results) == 0 {
		return 0
	}

	var weightedSum, weightTotal float64
	highRisk := 0
	for _, r := range results {
		matchWeight := float64(len(r.SanctionMatches))
		if matchWeight < 1 {
			matchWeight = 1
		}
		w := matchWeight * float64(r.Confidence) / 100
		weightedSum += float64(r.RiskScore) * w
		weightTotal += w

		if r.IsHighRisk() {
			highRisk++
		}
	}

	var avgWeighted float64
	if weightTotal > 0 {
		avgWeighted = weightedSum / weightTotal
	}

	penalty := highRiskPenaltyStep * highRisk
	if penalty > highRiskPenaltyCap {
		penalty = highRiskPenaltyCap
	}

	return clampScore(int(math.Round(avgWeighted + float64(penalty))))
}

// aggregateConfidence scores trust in the aggregate from screening
// completeness and the per-address confidences
func aggregateConfidence(results []domain.ScreeningResult, totalAddresses int) int {
	completeness := 1.0
	if totalAddresses > 0 {
		completeness = float64(len(results)) / float64(totalAddresses)
	}

	var avgConfidence float64
	if len(results) > 0 {
		var sum float64
		for _, r := range results {
			sum += float64(r.Confidence)
		}
		avgConfidence = sum / float64(len(results))
	}

	confidence := int(math.Round(60 + 20*completeness + 20*avgConfidence/100))
	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

func unionMatches(results []domain.ScreeningResult) []domain.SanctionMatch {
	matches := make([]domain.SanctionMatch, 0)
	for _, r := range results {
		matches = append(matches, r.SanctionMatches...)
	}
	return matches
}

// uniqueAddresses collects unique addresses from one side of a
// transaction, in first-seen order
func uniqueAddresses(inputs []domain.TxInput, outputs []domain.TxOutput) []string {
	seen := make(map[string]struct{})
	var addrs []string
	add := func(list []string) {
		for _, a := range list {
			if _, ok := seen[a]; ok {
				continue
			}
			seen[a] = struct{}{}
			addrs = append(addrs, a)
		}
	}
	for _, in := range inputs {
		add(in.Addresses)
	}
	for _, out := range outputs {
		add(out.Addresses)
	}
	return addrs
}

func unionAddresses(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, addr := range a {
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	for _, addr := range b {
		if _, ok := seen[addr]; !ok {
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}

func (s *TxScreener) recordAudit(txHash string, result *domain.TxScreeningResult,
	correlationID string, started time.Time, opErr error) {

	entry := domain.AuditEntry{
		ID:               uuid.New(),
		Action:           domain.ActionScreenTx,
		Subject:          "tx:" + txHash,
		TxHash:           txHash,
		Timestamp:        s.now(),
		CorrelationID:    correlationID,
		ProcessingTimeMs: time.Since(started).Milliseconds(),
		Success:          opErr == nil,
	}
	if result != nil {
		entry.Result = domain.TxScreenResultBag(result)
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}
	s.audit.Record(entry)
}
