package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"medcrawl/pkg/models"
	"medcrawl/pkg/utils"
)

const (
	pagesSubdir      = "pages"
	batchFilePattern = "pages_%04d_%04d.json"
)

// BatchStore persists page-batch outputs as one JSON-array artifact per batch
// range. Artifact existence drives coarse resumability: a range whose
// artifact exists with records in it is never re-fetched.
type BatchStore struct {
	dir string
	log *logrus.Entry
}

// NewBatchStore creates the per-site batch output directory
func NewBatchStore(outputBaseDir, siteKey string, logger *logrus.Entry) (*BatchStore, error) {
	dir := filepath.Join(outputBaseDir, utils.SanitizeFilename(siteKey), pagesSubdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create batch output directory %s: %w", utils.ErrFilesystem, dir, err)
	}
	return &BatchStore{dir: dir, log: logger}, nil
}

// ArtifactPath returns the artifact file path for one batch range.
func (s *BatchStore) ArtifactPath(rangeStart, rangeEnd int) string {
	return filepath.Join(s.dir, fmt.Sprintf(batchFilePattern, rangeStart, rangeEnd))
}

// HasBatchOutput reports whether a batch's artifact exists and holds at least
// one record. Unreadable or corrupt artifacts count as absent so the batch is
// re-fetched and the artifact rewritten.
func (s *BatchStore) HasBatchOutput(rangeStart, rangeEnd int) bool {
	path := s.ArtifactPath(rangeStart, rangeEnd)
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var records []models.SummaryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		s.log.Warnf("Corrupt batch artifact %s, will rewrite: %v", path, err)
		return false
	}
	return len(records) > 0
}

// WriteBatchOutput persists one batch's merged records as a single durable
// write. The artifact is written to a temp file in the same directory and
// renamed into place so a reader never sees a torn write. Idempotent: a
// rewrite of the same range fully replaces the previous artifact.
func (s *BatchStore) WriteBatchOutput(rangeStart, rangeEnd int, records []models.SummaryRecord) error {
	if records == nil {
		records = []models.SummaryRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling batch [%d..%d]: %w", utils.ErrParsing, rangeStart, rangeEnd, err)
	}

	path := s.ArtifactPath(rangeStart, rangeEnd)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp artifact for [%d..%d]: %w", utils.ErrFilesystem, rangeStart, rangeEnd, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing batch artifact for [%d..%d]: %w", utils.ErrFilesystem, rangeStart, rangeEnd, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: syncing batch artifact for [%d..%d]: %w", utils.ErrFilesystem, rangeStart, rangeEnd, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing batch artifact for [%d..%d]: %w", utils.ErrFilesystem, rangeStart, rangeEnd, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: publishing batch artifact for [%d..%d]: %w", utils.ErrFilesystem, rangeStart, rangeEnd, err)
	}

	s.log.WithFields(logrus.Fields{
		"range_start": rangeStart,
		"range_end":   rangeEnd,
		"records":     len(records),
	}).Debug("Wrote batch artifact")
	return nil
}

// ReadBatchOutput loads one batch's records.
func (s *BatchStore) ReadBatchOutput(rangeStart, rangeEnd int) ([]models.SummaryRecord, error) {
	path := s.ArtifactPath(rangeStart, rangeEnd)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading batch artifact %s: %w", utils.ErrFilesystem, path, err)
	}
	var records []models.SummaryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: decoding batch artifact %s: %w", utils.ErrParsing, path, err)
	}
	return records, nil
}

// ReadAllRecords merges every batch artifact in range order. Used to seed the
// detail phase from the index phase's output.
func (s *BatchStore) ReadAllRecords() ([]models.SummaryRecord, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "pages_*.json"))
	if err != nil {
		return nil, fmt.Errorf("%w: listing batch artifacts in %s: %w", utils.ErrFilesystem, s.dir, err)
	}
	sort.Strings(paths)

	var all []models.SummaryRecord
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading batch artifact %s: %w", utils.ErrFilesystem, path, err)
		}
		var records []models.SummaryRecord
		if err := json.Unmarshal(data, &records); err != nil {
			s.log.Warnf("Skipping corrupt batch artifact %s: %v", path, err)
			continue
		}
		all = append(all, records...)
	}
	return all, nil
}
