package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/forensor/forensor/internal/domain"
)

const (
	stateDir     = ".forensor"
	learningFile = "learning.json"
	recordsFile  = "records.json"

	// maxRecords bounds records.json; older entries fall off the front.
	maxRecords = 50
)

// FileStore implements domain.MemoryStore with JSON files under .forensor/.
// A mutex serializes read-modify-write cycles and every write lands via a
// temp file plus rename.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func New(projectPath string) *FileStore {
	return &FileStore{dir: filepath.Join(projectPath, stateDir)}
}

func (s *FileStore) Learning() (domain.LearningAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLearning()
}

func (s *FileStore) UpdateLearning(apply func(*domain.LearningAggregate)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg, err := s.readLearning()
	if err != nil {
		return err
	}
	apply(&agg)
	return s.writeJSON(learningFile, agg)
}

func (s *FileStore) AppendRecord(rec domain.ScanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.readRecords()
	if err != nil {
		return err
	}
	recs = append(recs, rec)
	if len(recs) > maxRecords {
		recs = recs[len(recs)-maxRecords:]
	}
	return s.writeJSON(recordsFile, recs)
}

func (s *FileStore) Records() ([]domain.ScanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readRecords()
}

func (s *FileStore) readLearning() (domain.LearningAggregate, error) {
	var agg domain.LearningAggregate
	data, err := os.ReadFile(filepath.Join(s.dir, learningFile))
	if err != nil {
		if os.IsNotExist(err) {
			return agg, nil
		}
		return agg, err
	}
	if err := json.Unmarshal(data, &agg); err != nil {
		return domain.LearningAggregate{}, fmt.Errorf("parsing %s: %w", learningFile, err)
	}
	return agg, nil
}

func (s *FileStore) readRecords() ([]domain.ScanRecord, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, recordsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var recs []domain.ScanRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", recordsFile, err)
	}
	return recs, nil
}

func (s *FileStore) writeJSON(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, name+"-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}
