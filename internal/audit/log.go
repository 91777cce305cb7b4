// Package audit persists screening actions to a day-bucketed append-only
// log and serves best-effort queries over it.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cryptocompliance/btc-screening/internal/domain"
	"github.com/cryptocompliance/btc-screening/internal/pkg/logger"
)

const dateLayout = "2006-01-02"

// Log appends audit entries as JSON lines under
// <root>/YYYY-MM-DD/audit_YYYY-MM-DD.jsonl. Appends are serialized by a
// single writer lock; write failures are logged and swallowed so a
// failed audit write never fails the request that produced it.
type Log struct {
	root string
	log  *logger.Logger
	now  func() time.Time

	mu sync.Mutex
}

// NewLog creates an audit log rooted at dir
func NewLog(dir string, log *logger.Logger) *Log {
	return &Log{
		root: dir,
		log:  log.Named("audit_log"),
		now:  time.Now,
	}
}

func (l *Log) dayDir(date string) string {
	return filepath.Join(l.root, date)
}

func (l *Log) dayFile(date string) string {
	return filepath.Join(l.dayDir(date), fmt.Sprintf("audit_%s.jsonl", date))
}

// legacyDayFile is the JSON-array layout older deployments wrote
func (l *Log) legacyDayFile(date string) string {
	return filepath.Join(l.dayDir(date), fmt.Sprintf("audit_%s.json", date))
}

// Record appends one entry to today's log. Failures are swallowed.
func (l *Log) Record(entry domain.AuditEntry) {
	if err := l.append(entry); err != nil {
		l.log.Error("audit write failed", logger.ErrorField(err),
			logger.StringField("action", string(entry.Action)),
			logger.StringField("correlation_id", entry.CorrelationID))
	}
}

func (l *Log) append(entry domain.AuditEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	date := entry.Timestamp.UTC().Format(dateLayout)
	if entry.Timestamp.IsZero() {
		date = l.now().UTC().Format(dateLayout)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dayDir(date), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(l.dayFile(date), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}

// ByDate returns the entries recorded on a YYYY-MM-DD date, or an empty
// slice when no file exists
func (l *Log) ByDate(date string) ([]domain.AuditEntry, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, domain.ValidationError("date must be YYYY-MM-DD").WithDetail("date", date)
	}
	return l.readDay(date)
}

func (l *Log) readDay(date string) ([]domain.AuditEntry, error) {
	entries, err := l.readJSONL(l.dayFile(date))
	if err != nil {
		return nil, err
	}
	legacy, err := l.readLegacy(l.legacyDayFile(date))
	if err != nil {
		return nil, err
	}
	return append(legacy, entries...), nil
}

func (l *Log) readJSONL(path string) ([]domain.AuditEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []domain.AuditEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry domain.AuditEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			l.log.Warn("skipping malformed audit line", logger.StringField("file", path))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}

func (l *Log) readLegacy(path string) ([]domain.AuditEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var entries []domain.AuditEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		l.log.Warn("skipping malformed legacy audit file", logger.StringField("file", path))
		return nil, nil
	}
	return entries, nil
}

// lastDays returns the YYYY-MM-DD keys of the trailing days window,
// today first
func (l *Log) lastDays(days int) []string {
	if days < 1 {
		days = 1
	}
	today := l.now().UTC()
	dates := make([]string, 0, days)
	for i := 0; i < days; i++ {
		dates = append(dates, today.AddDate(0, 0, -i).Format(dateLayout))
	}
	return dates
}

// ByCorrelationID scans the trailing daily files for entries with the
// given correlation id
func (l *Log) ByCorrelationID(id string, days int) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, date := range l.lastDays(days) {
		entries, err := l.readDay(date)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.CorrelationID == id {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// ByAddress scans the trailing daily files for entries whose subject is
// the given address, compared case-insensitively
func (l *Log) ByAddress(addr string, days int) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, date := range l.lastDays(days) {
		entries, err := l.readDay(date)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if strings.EqualFold(e.Subject, addr) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// Stats aggregates the trailing daily files
func (l *Log) Stats(days int) (*domain.AuditStats, error) {
	stats := &domain.AuditStats{
		ActionCounts: make(map[string]int),
	}

	dates := l.lastDays(days)
	var totalProcessing int64
	for _, date := range dates {
		entries, err := l.readDay(date)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			stats.TotalLogs++
			if e.Success {
				stats.SuccessfulLogs++
			} else {
				stats.FailedLogs++
			}
			stats.ActionCounts[string(e.Action)]++
			totalProcessing += e.ProcessingTimeMs
		}
	}

	if stats.TotalLogs > 0 {
		stats.AverageProcessingTime = float64(totalProcessing) / float64(stats.TotalLogs)
	}
	stats.DateRange = []string{dates[len(dates)-1], dates[0]}
	return stats, nil
}
