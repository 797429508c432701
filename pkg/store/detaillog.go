package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"medcrawl/pkg/models"
	"medcrawl/pkg/utils"
)

const detailLogName = "details.jsonl"

// Scanner buffer large enough for one full detail record on a single line.
const maxDetailLineBytes = 4 * 1024 * 1024

// DetailLog is the append-only store for detail records: one JSON object per
// line. Appending a line is the durable commit for an item, so a crash loses
// at most the line being written; the startup index build tolerates a torn
// final line. This replaces rewriting a whole JSON array per item, which
// costs quadratic I/O as output grows.
type DetailLog struct {
	path string
	file *os.File
	mu   sync.Mutex
	log  *logrus.Entry
}

// DetailLogPath returns the per-site detail log location without opening it.
func DetailLogPath(outputBaseDir, siteKey string) string {
	return filepath.Join(outputBaseDir, utils.SanitizeFilename(siteKey), detailLogName)
}

// OpenDetailLog opens (or creates) the per-site detail log for appending
func OpenDetailLog(outputBaseDir, siteKey string, logger *logrus.Entry) (*DetailLog, error) {
	path := DetailLogPath(outputBaseDir, siteKey)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create output directory %s: %w", utils.ErrFilesystem, filepath.Dir(path), err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open detail log %s: %w", utils.ErrFilesystem, path, err)
	}
	return &DetailLog{path: path, file: file, log: logger}, nil
}

// Path returns the backing file path.
func (l *DetailLog) Path() string {
	return l.path
}

// Append durably writes one record as a single line. The sync before
// returning is what makes the per-item commit crash-safe.
func (l *DetailLog) Append(record *models.DetailRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: marshaling detail record %s: %w", utils.ErrParsing, record.SourceURL, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("%w: appending detail record %s: %w", utils.ErrFilesystem, record.SourceURL, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("%w: syncing detail log after %s: %w", utils.ErrFilesystem, record.SourceURL, err)
	}
	return nil
}

// Close closes the backing file
func (l *DetailLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// LoadRecordedIdentities builds the startup resumability index: the set of
// normalized source URLs already present in the log. A missing log is an
// empty index. Undecodable lines (a torn final line after a crash) are
// logged and skipped, never fatal.
func LoadRecordedIdentities(path string, logger *logrus.Entry) (map[string]struct{}, error) {
	identities := make(map[string]struct{})

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return identities, nil
		}
		return nil, fmt.Errorf("%w: opening detail log %s: %w", utils.ErrFilesystem, path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxDetailLineBytes)

	lineNo := 0
	skipped := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record models.DetailRecord
		if err := json.Unmarshal(line, &record); err != nil {
			skipped++
			logger.Warnf("Skipping undecodable line %d in %s: %v", lineNo, path, err)
			continue
		}
		if record.SourceURL != "" {
			identities[record.SourceURL] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: scanning detail log %s: %w", utils.ErrFilesystem, path, err)
	}
	if skipped > 0 {
		logger.Warnf("Detail log %s had %d undecodable lines out of %d", path, skipped, lineNo)
	}
	return identities, nil
}

// ReadDetailRecords loads every decodable record from a detail log, in append
// order. Used by the export step.
func ReadDetailRecords(path string, logger *logrus.Entry) ([]models.DetailRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening detail log %s: %w", utils.ErrFilesystem, path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxDetailLineBytes)

	var records []models.DetailRecord
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record models.DetailRecord
		if err := json.Unmarshal(line, &record); err != nil {
			logger.Warnf("Skipping undecodable line %d in %s: %v", lineNo, path, err)
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: scanning detail log %s: %w", utils.ErrFilesystem, path, err)
	}
	return records, nil
}
