package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cryptocompliance/btc-screening/internal/domain"
	"github.com/cryptocompliance/btc-screening/internal/pkg/logger"
)

// AssessmentStore mirrors completed screening results into a
// day-bucketed JSONL tree under the risk-assessments directory. Like the
// audit log, saving is best-effort and never fails the request.
type AssessmentStore struct {
	root string
	log  *logger.Logger
	now  func() time.Time

	mu sync.Mutex
}

// NewAssessmentStore creates a result store rooted at dir
func NewAssessmentStore(dir string, log *logger.Logger) *AssessmentStore {
	return &AssessmentStore{
		root: dir,
		log:  log.Named("assessment_store"),
		now:  time.Now,
	}
}

// Save appends one screening result to today's file. Failures are
// swallowed.
func (s *AssessmentStore) Save(result *domain.ScreeningResult) {
	if err := s.append(result); err != nil {
		s.log.Error("risk assessment write failed", logger.ErrorField(err),
			logger.StringField("address", result.Address))
	}
}

func (s *AssessmentStore) append(result *domain.ScreeningResult) error {
	line, err := json.Marshal(result)
	if err != nil {
		return err
	}

	date := result.Timestamp.UTC().Format(dateLayout)
	if result.Timestamp.IsZero() {
		date = s.now().UTC().Format(dateLayout)
	}
	dir := filepath.Join(s.root, date)
	path := filepath.Join(dir, fmt.Sprintf("assessments_%s.jsonl", date))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}
