package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptocompliance/btc-screening/internal/domain"
	"github.com/cryptocompliance/btc-screening/internal/pkg/logger"
)

var testDay = time.Date(2025, 11, 4, 15, 30, 0, 0, time.UTC)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	l := NewLog(t.TempDir(), logger.NewNop())
	l.now = func() time.Time { return testDay }
	return l
}

func entryAt(ts time.Time, action domain.AuditAction, subject, correlationID string, success bool) domain.AuditEntry {
	return domain.AuditEntry{
		ID:               uuid.New(),
		Action:           action,
		Subject:          subject,
		Result:           map[string]any{"risk_score": 0},
		Timestamp:        ts,
		CorrelationID:    correlationID,
		ProcessingTimeMs: 12,
		Success:          success,
	}
}

func TestRecordAndReadByDate(t *testing.T) {
	l := newTestLog(t)

	l.Record(entryAt(testDay, domain.ActionScreenAddress, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", "corr-1", true))
	l.Record(entryAt(testDay.Add(time.Minute), domain.ActionScreenTx, "tx:abcd", "corr-2", false))

	entries, err := l.ByDate("2025-11-04")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActionScreenAddress, entries[0].Action)
	assert.Equal(t, "corr-2", entries[1].CorrelationID)

	// The file is one JSON object per line
	raw, err := os.ReadFile(filepath.Join(l.root, "2025-11-04", "audit_2025-11-04.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 2, len(splitLines(raw)))
}

func splitLines(raw []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range raw {
		if b == '\n' {
			if i > start {
				lines = append(lines, raw[start:i])
			}
			start = i + 1
		}
	}
	return lines
}

func TestByDateMissingFileIsEmpty(t *testing.T) {
	l := newTestLog(t)

	entries, err := l.ByDate("2025-01-01")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestByDateRejectsBadDate(t *testing.T) {
	l := newTestLog(t)

	_, err := l.ByDate("04-11-2025")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestByCorrelationIDScansWindow(t *testing.T) {
	l := newTestLog(t)

	l.Record(entryAt(testDay.AddDate(0, 0, -3), domain.ActionScreenAddress, "addr-old", "corr-x", true))
	l.Record(entryAt(testDay, domain.ActionScreenAddress, "addr-new", "corr-x", true))
	l.Record(entryAt(testDay, domain.ActionScreenAddress, "addr-other", "corr-y", true))

	entries, err := l.ByCorrelationID("corr-x", 7)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// Outside the window
	entries, err = l.ByCorrelationID("corr-x", 2)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestByAddressCaseInsensitive(t *testing.T) {
	l := newTestLog(t)

	l.Record(entryAt(testDay, domain.ActionScreenAddress, "12QtD5BFwRsdNsAZY76UVE1xyCGNTojH9h", "corr-1", true))

	entries, err := l.ByAddress("12QTD5BFWRSDNSAZY76UVE1XYCGNTOJH9H", 7)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStats(t *testing.T) {
	l := newTestLog(t)

	l.Record(entryAt(testDay, domain.ActionScreenAddress, "addr-1", "corr-1", true))
	l.Record(entryAt(testDay, domain.ActionScreenAddress, "addr-2", "corr-2", false))
	l.Record(entryAt(testDay.AddDate(0, 0, -1), domain.ActionScreenTx, "tx:abcd", "corr-3", true))

	stats, err := l.Stats(7)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalLogs)
	assert.Equal(t, 2, stats.SuccessfulLogs)
	assert.Equal(t, 1, stats.FailedLogs)
	assert.Equal(t, 2, stats.ActionCounts[string(domain.ActionScreenAddress)])
	assert.Equal(t, 1, stats.ActionCounts[string(domain.ActionScreenTx)])
	assert.InDelta(t, 12.0, stats.AverageProcessingTime, 0.001)
	assert.Equal(t, []string{"2025-10-29", "2025-11-04"}, stats.DateRange)
}

func TestReadsLegacyArrayFiles(t *testing.T) {
	l := newTestLog(t)

	legacy := []domain.AuditEntry{
		entryAt(testDay, domain.ActionScreenAddress, "addr-legacy", "corr-legacy", true),
	}
	raw, err := json.Marshal(legacy)
	require.NoError(t, err)

	dir := filepath.Join(l.root, "2025-11-04")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "audit_2025-11-04.json"), raw, 0o644))

	l.Record(entryAt(testDay, domain.ActionScreenAddress, "addr-new", "corr-new", true))

	entries, err := l.ByDate("2025-11-04")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "addr-legacy", entries[0].Subject)
	assert.Equal(t, "addr-new", entries[1].Subject)
}

func TestRecordSwallowsWriteFailures(t *testing.T) {
	// Point the log at a path that cannot be a directory
	tmp := t.TempDir()
	blocker := filepath.Join(tmp, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	l := NewLog(filepath.Join(blocker, "audit"), logger.NewNop())
	l.now = func() time.Time { return testDay }

	// Must not panic or error out
	l.Record(entryAt(testDay, domain.ActionScreenAddress, "addr-1", "corr-1", true))
}

func TestAssessmentStoreWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	s := NewAssessmentStore(dir, logger.NewNop())
	s.now = func() time.Time { return testDay }

	s.Save(&domain.ScreeningResult{
		Address:         "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
		RiskScore:       0,
		RiskLevel:       domain.RiskLevelLow,
		SanctionMatches: []domain.SanctionMatch{},
		Timestamp:       testDay,
	})

	raw, err := os.ReadFile(filepath.Join(dir, "2025-11-04", "assessments_2025-11-04.jsonl"))
	require.NoError(t, err)

	var result domain.ScreeningResult
	require.NoError(t, json.Unmarshal(splitLines(raw)[0], &result))
	assert.Equal(t, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", result.Address)
}
