package screening

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptocompliance/btc-screening/internal/domain"
	"github.com/cryptocompliance/btc-screening/internal/pkg/logger"
)

const (
	inputAddr = "1Kuf2Rd8mDyAViwBozGTNYnvWL8uYFrkVo"
	txHashA   = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
	txHashB   = "5b5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
)

func screeningTx() *domain.BitcoinTransaction {
	return &domain.BitcoinTransaction{
		TxID:        txHashA,
		BlockHeight: 800000,
		BlockTime:   1690000000,
		Inputs:      []domain.TxInput{{Addresses: []string{inputAddr}, Value: 50000}},
		Outputs: []domain.TxOutput{
			{Addresses: []string{sanctionedAddr}, Value: 30000},
			{Addresses: []string{cleanAddr}, Value: 19000},
		},
	}
}

func newTestTxScreener(fetcher TransactionFetcher, sanctions SanctionsLookup, audit AuditRecorder) *TxScreener {
	addrScreener := NewAddressScreener(sanctions, &fakeWalker{}, audit, nil, DefaultAddressScreenerConfig(), logger.NewNop())
	return NewTxScreener(fetcher, addrScreener, audit, logger.NewNop())
}

func TestTxScreenOneHighRiskOutput(t *testing.T) {
	fetcher := &fakeFetcher{txs: map[string]*domain.BitcoinTransaction{txHashA: screeningTx()}}
	audit := &captureAudit{}
	s := newTestTxScreener(fetcher, sanctionedSet(sanctionedAddr), audit)

	result, err := s.Screen(context.Background(), txHashA, domain.DirectionOutputs, false, "corr-tx-1")
	require.NoError(t, err)

	// weighted avg (75*0.7 + 0*0.3)/1.0 = 52.5, penalty 10 -> 63
	assert.Equal(t, 63, result.OverallRiskScore)
	assert.Equal(t, domain.RiskLevelHigh, result.OverallRiskLevel)
	// 60 + 20*1.0 + 20*(50/100) = 90
	assert.Equal(t, 90, result.Confidence)

	require.Len(t, result.AddressResults, 2)
	require.Len(t, result.SanctionMatches, 1)
	assert.Equal(t, sanctionedAddr, result.SanctionMatches[0].MatchedAddress)
	assert.Nil(t, result.Transaction)

	entries := audit.byAction(domain.ActionScreenTx)
	require.Len(t, entries, 1)
	assert.Equal(t, "tx:"+txHashA, entries[0].Subject)
	assert.Equal(t, txHashA, entries[0].TxHash)
	assert.True(t, entries[0].Success)
}

func TestTxScreenDirectionFiltering(t *testing.T) {
	fetcher := &fakeFetcher{txs: map[string]*domain.BitcoinTransaction{txHashA: screeningTx()}}
	s := newTestTxScreener(fetcher, sanctionedSet(sanctionedAddr), &captureAudit{})
	ctx := context.Background()

	inputs, err := s.Screen(ctx, txHashA, domain.DirectionInputs, false, "corr-tx-2")
	require.NoError(t, err)
	assert.Len(t, inputs.AddressResults, 1)
	assert.Equal(t, 0, inputs.OverallRiskScore)
	assert.Equal(t, []string{inputAddr}, inputs.InputAddresses)

	both, err := s.Screen(ctx, txHashA, domain.DirectionBoth, false, "corr-tx-2")
	require.NoError(t, err)
	assert.Len(t, both.AddressResults, 3)
}

func TestTxScreenIncludeMetadata(t *testing.T) {
	fetcher := &fakeFetcher{txs: map[string]*domain.BitcoinTransaction{txHashA: screeningTx()}}
	s := newTestTxScreener(fetcher, sanctionedSet(sanctionedAddr), &captureAudit{})

	result, err := s.Screen(context.Background(), txHashA, domain.DirectionBoth, true, "corr-tx-3")
	require.NoError(t, err)
	require.NotNil(t, result.Transaction)
	assert.Equal(t, txHashA, result.Transaction.TxID)
}

func TestTxScreenInvalidHash(t *testing.T) {
	audit := &captureAudit{}
	s := newTestTxScreener(&fakeFetcher{}, sanctionedSet(sanctionedAddr), audit)

	_, err := s.Screen(context.Background(), "nope", domain.DirectionBoth, false, "corr-tx-4")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	entries := audit.byAction(domain.ActionScreenTx)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
}

func TestTxScreenFetchFailurePropagates(t *testing.T) {
	fetcher := &fakeFetcher{failTxs: map[string]error{txHashA: domain.NewError(domain.KindDataNotFound, "no such tx")}}
	s := newTestTxScreener(fetcher, sanctionedSet(sanctionedAddr), &captureAudit{})

	_, err := s.Screen(context.Background(), txHashA, domain.DirectionBoth, false, "corr-tx-5")
	require.Error(t, err)
	assert.Equal(t, domain.KindDataNotFound, domain.KindOf(err))
}

func TestTxScreenNoAddresses(t *testing.T) {
	coinbase := &domain.BitcoinTransaction{
		TxID:    txHashA,
		Inputs:  []domain.TxInput{{Addresses: []string{}}},
		Outputs: []domain.TxOutput{},
	}
	fetcher := &fakeFetcher{txs: map[string]*domain.BitcoinTransaction{txHashA: coinbase}}
	s := newTestTxScreener(fetcher, sanctionedSet(sanctionedAddr), &captureAudit{})

	result, err := s.Screen(context.Background(), txHashA, domain.DirectionBoth, false, "corr-tx-6")
	require.NoError(t, err)
	assert.Equal(t, 0, result.OverallRiskScore)
	assert.Equal(t, domain.RiskLevelLow, result.OverallRiskLevel)
	// completeness 1 with no addresses, no per-result confidence
	assert.Equal(t, 80, result.Confidence)
}

func TestTxScreenBatchSkipsFailures(t *testing.T) {
	fetcher := &fakeFetcher{
		txs:     map[string]*domain.BitcoinTransaction{txHashA: screeningTx()},
		failTxs: map[string]error{txHashB: errors.New("boom")},
	}
	s := newTestTxScreener(fetcher, sanctionedSet(sanctionedAddr), &captureAudit{})

	results, err := s.ScreenBatch(context.Background(), []string{txHashA, txHashB}, domain.DirectionBoth, false, "corr-tx-7")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, txHashA, results[0].TxHash)
}
