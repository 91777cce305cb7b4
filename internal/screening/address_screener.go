// Package screening implements the risk-scoring pipeline: direct
// sanctions matching, bounded transaction-graph traversal, and the
// aggregation that turns both into screening results.
package screening

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cryptocompliance/btc-screening/internal/domain"
	"github.com/cryptocompliance/btc-screening/internal/metrics"
	"github.com/cryptocompliance/btc-screening/internal/pkg/clock"
	"github.com/cryptocompliance/btc-screening/internal/pkg/logger"
	"github.com/cryptocompliance/btc-screening/internal/validation"
)

// PathAnalyzer runs a bounded walk of the transaction graph
type PathAnalyzer interface {
	Analyze(ctx context.Context, target string, maxHops int) (*domain.PathAnalysis, error)
}

// AuditRecorder persists audit entries. Implementations swallow write
// failures; recording never fails the originating request.
type AuditRecorder interface {
	Record(entry domain.AuditEntry)
}

// AssessmentStore persists completed screening results
type AssessmentStore interface {
	Save(result *domain.ScreeningResult)
}

// AddressScreenerConfig bounds bulk screening
type AddressScreenerConfig struct {
	DefaultMaxHops int
	BulkChunkSize  int
	BulkChunkPause time.Duration
}

// DefaultAddressScreenerConfig returns the production bulk bounds
func DefaultAddressScreenerConfig() AddressScreenerConfig {
	return AddressScreenerConfig{
		DefaultMaxHops: 5,
		BulkChunkSize:  10,
		BulkChunkPause: 100 * time.Millisecond,
	}
}

// AddressScreener screens single addresses and batches against the
// sanctions index, optionally propagating indirect risk through the
// path walker.
type AddressScreener struct {
	sanctions   SanctionsLookup
	walker      PathAnalyzer
	audit       AuditRecorder
	assessments AssessmentStore
	cfg         AddressScreenerConfig
	log         *logger.Logger
	now         func() time.Time
}

// NewAddressScreener creates an address screener. assessments may be nil
// when result persistence is disabled.
func NewAddressScreener(
	sanctions SanctionsLookup,
	walker PathAnalyzer,
	audit AuditRecorder,
	assessments AssessmentStore,
	cfg AddressScreenerConfig,
	log *logger.Logger,
) *AddressScreener {
	return &AddressScreener{
		sanctions:   sanctions,
		walker:      walker,
		audit:       audit,
		assessments: assessments,
		cfg:         cfg,
		log:         log.Named("address_screener"),
		now:         time.Now,
	}
}

// Screen screens one address. With includeWalk, indirect exposure found
// by the walker is folded into the risk score; a walker failure drops
// the path analysis but never fails the screening.
func (s *AddressScreener) Screen(ctx context.Context, addr string, includeWalk bool, maxHops int, correlationID string) (*domain.ScreeningResult, error) {
	started := time.Now()
	log := s.log.WithCorrelation(correlationID)

	if !validation.IsValidAddress(addr) {
		err := domain.ValidationError("invalid Bitcoin address").WithDetail("address", addr)
		s.recordAudit(domain.ActionScreenAddress, addr, "", nil, correlationID, started, err)
		return nil, err
	}

	log.ScreeningStarted(addr, includeWalk)

	entities, err := s.sanctions.FindByAddress(ctx, addr)
	if err != nil {
		s.recordAudit(domain.ActionScreenAddress, addr, "", nil, correlationID, started, err)
		return nil, err
	}

	matches := matchesForEntities(entities, addr)
	score := directMatchScore(matches)

	var pathAnalysis *domain.PathAnalysis
	walkFailed := false
	if includeWalk {
		hops := validation.ClampMaxHops(maxHops, s.cfg.DefaultMaxHops)
		pathAnalysis, err = s.walker.Analyze(ctx, addr, hops)
		if err != nil {
			walkFailed = true
			pathAnalysis = nil
			log.Warn("path walk failed, screening continues without indirect risk",
				logger.StringField("address", addr), logger.ErrorField(err))
		} else {
			score += indirectContribution(pathAnalysis.RiskPropagation)
		}
	}

	score = clampScore(score)
	result := &domain.ScreeningResult{
		Address:          addr,
		RiskScore:        score,
		RiskLevel:        domain.RiskLevelForScore(score),
		Confidence:       confidenceScore(matches, pathAnalysis),
		SanctionMatches:  matches,
		PathAnalysis:     pathAnalysis,
		Timestamp:        s.now(),
		ProcessingTimeMs: time.Since(started).Milliseconds(),
	}

	s.recordAudit(domain.ActionScreenAddress, addr, "", domain.ScreenResultBag(result, walkFailed), correlationID, started, nil)
	if s.assessments != nil {
		s.assessments.Save(result)
	}

	metrics.ObserveScreening("address", string(result.RiskLevel), started)
	log.ScreeningCompleted(addr, result.RiskScore, string(result.RiskLevel), result.ProcessingTimeMs)
	return result, nil
}

// ScreenBatch screens many addresses in bounded concurrent chunks.
// Invalid inputs are dropped (the first few are logged); a per-address
// failure yields a zero-score stub so the output length always equals
// the valid-input length.
func (s *AddressScreener) ScreenBatch(ctx context.Context, addrs []string, includeWalk bool, maxHops int, correlationID string) ([]*domain.ScreeningResult, error) {
	started := time.Now()
	log := s.log.WithCorrelation(correlationID)

	valid := make([]string, 0, len(addrs))
	var invalid []string
	for _, addr := range addrs {
		if validation.IsValidAddress(addr) {
			valid = append(valid, addr)
		} else {
			invalid = append(invalid, addr)
		}
	}
	if len(invalid) > 0 {
		sample := invalid
		if len(sample) > 5 {
			sample = sample[:5]
		}
		log.Warn("bulk screening skipping invalid addresses",
			logger.IntField("invalid", len(invalid)),
			logger.StringsField("sample", sample))
	}

	results := make([]*domain.ScreeningResult, len(valid))
	for start := 0; start < len(valid); start += s.cfg.BulkChunkSize {
		if start > 0 {
			if err := clock.SleepWithContext(ctx, s.cfg.BulkChunkPause); err != nil {
				return nil, err
			}
		}

		end := start + s.cfg.BulkChunkSize
		if end > len(valid) {
			end = len(valid)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				result, err := s.Screen(gctx, valid[i], includeWalk, maxHops, correlationID)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					log.Warn("bulk screening entry failed",
						logger.StringField("address", valid[i]), logger.ErrorField(err))
					result = stubResult(valid[i], s.now())
				}
				results[i] = result
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	highRisk := 0
	for _, r := range results {
		if r.IsHighRisk() {
			highRisk++
		}
	}

	subject := fmt.Sprintf("bulk_%d_items", len(addrs))
	s.recordAudit(domain.ActionScreenBulk, subject, "",
		domain.BulkResultBag(len(addrs), len(results), len(invalid), highRisk), correlationID, started, nil)

	metrics.ObserveScreening("bulk", "", started)
	return results, nil
}

// stubResult stands in for an address whose screening failed mid-batch
func stubResult(addr string, now time.Time) *domain.ScreeningResult {
	return &domain.ScreeningResult{
		Address:         addr,
		RiskScore:       0,
		RiskLevel:       domain.RiskLevelLow,
		Confidence:      0,
		SanctionMatches: []domain.SanctionMatch{},
		Timestamp:       now,
	}
}

// matchesForEntities converts index hits into direct sanction matches
func matchesForEntities(entities []*domain.SanctionEntity, addr string) []domain.SanctionMatch {
	matches := make([]domain.SanctionMatch, 0, len(entities))
	for _, e := range entities {
		matches = append(matches, domain.SanctionMatch{
			ListSource:     e.ListSource,
			EntityName:     e.Name,
			EntityID:       e.EntityID,
			MatchType:      domain.MatchTypeDirect,
			Confidence:     100,
			MatchedAddress: addr,
		})
	}
	return matches
}

func (s *AddressScreener) recordAudit(action domain.AuditAction, subject, txHash string,
	result map[string]any, correlationID string, started time.Time, opErr error) {

	entry := domain.AuditEntry{
		ID:               uuid.New(),
		Action:           action,
		Subject:          subject,
		TxHash:           txHash,
		Result:           result,
		Timestamp:        s.now(),
		CorrelationID:    correlationID,
		ProcessingTimeMs: time.Since(started).Milliseconds(),
		Success:          opErr == nil,
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}
	s.audit.Record(entry)
}
