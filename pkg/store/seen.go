package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"medcrawl/pkg/log"
	"medcrawl/pkg/utils"
)

const (
	itemKeyPrefix = "item:"    // Prefix for detail-item identity keys in DB
	seenDBDir     = "seen_db"  // Subdirectory name within stateDir for Badger DB files
)

// ItemStatus is the lifecycle state of one detail-item identity.
type ItemStatus string

const (
	ItemStatusNotFound ItemStatus = "not_found"
	ItemStatusPending  ItemStatus = "pending"
	ItemStatusRecorded ItemStatus = "recorded"
	ItemStatusFailed   ItemStatus = "failed"
	ItemStatusDBError  ItemStatus = "db_error"
)

// ItemDBEntry is the value stored per identity key.
type ItemDBEntry struct {
	Status    ItemStatus `json:"status"`
	RecordID  string     `json:"recordId,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Category  string     `json:"category,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// SeenStore tracks which detail-item identities have been durably recorded,
// backed by BadgerDB so resume checks don't rescan the whole output log per
// item. The append log remains the source of truth; the store is an index
// reconciled from it at startup.
type SeenStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64
}

// NewSeenStore opens (or creates) the seen-index database for one site.
// resume=false wipes any existing state so the run starts from scratch.
func NewSeenStore(stateDir, siteKey string, resume bool, logger *logrus.Entry) (*SeenStore, error) {
	store := &SeenStore{log: logger}

	dbPath := filepath.Join(stateDir, utils.SanitizeFilename(siteKey)+"_"+seenDBDir)

	if !resume {
		logger.Warnf("Resume flag is false. REMOVING existing state directory: %s", dbPath)
		if err := os.RemoveAll(dbPath); err != nil {
			logger.Errorf("Failed to remove existing state directory %s: %v", dbPath, err)
		}
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("cannot create state directory %s: %w", dbPath, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", dbPath, err)
	}

	if resume {
		count, err := store.countKeys()
		if err != nil {
			logger.Warnf("Failed to count existing keys on resume: %v", err)
		} else {
			store.keyCount.Store(int64(count))
			logger.Infof("Loaded existing key count on resume: %d", count)
		}
	}

	logger.Infof("Seen-index database initialized at: %s (Resume: %v)", dbPath, resume)
	return store, nil
}

func (s *SeenStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction
// conflicts, which resolve in microseconds.
func (s *SeenStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// MarkPending records an identity as in-flight. Returns true if the identity
// was newly added, false if any entry already existed for it.
func (s *SeenStore) MarkPending(identity string) (bool, error) {
	if s.db == nil {
		return false, errors.New("seen store not initialized")
	}
	added := false
	key := []byte(itemKeyPrefix + identity)

	entryBytes, errJson := json.Marshal(&ItemDBEntry{Status: ItemStatusPending, UpdatedAt: time.Now().UTC()})
	if errJson != nil {
		return false, fmt.Errorf("%w: failed to marshal pending entry for key '%s': %w", utils.ErrParsing, string(key), errJson)
	}

	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			errSet := txn.SetEntry(badger.NewEntry(key, entryBytes))
			if errSet == nil {
				added = true
			}
			return errSet
		}
		return errGet
	})

	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in MarkPending: %v", err)
		return false, fmt.Errorf("%w: marking item key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return added, nil
}

// CheckStatus retrieves the status and entry for an identity. A missing key
// is ItemStatusNotFound, not an error.
func (s *SeenStore) CheckStatus(identity string) (ItemStatus, *ItemDBEntry, error) {
	status := ItemStatusNotFound
	var entry *ItemDBEntry
	key := []byte(itemKeyPrefix + identity)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			status = ItemStatusNotFound
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting item key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}

		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				status = ItemStatusPending
				return nil
			}
			var decoded ItemDBEntry
			if errJson := json.Unmarshal(val, &decoded); errJson != nil {
				s.log.Warnf("Failed to unmarshal ItemDBEntry for key '%s': %v. Treating as 'pending'.", string(key), errJson)
				status = ItemStatusPending
				return nil
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})

	if errView != nil {
		s.log.Errorf("DB View error in CheckStatus for key '%s': %v", string(key), errView)
		return ItemStatusDBError, nil, errView
	}
	return status, entry, nil
}

// UpdateStatus sets the entry for an identity, creating it if absent.
func (s *SeenStore) UpdateStatus(identity string, entry *ItemDBEntry) error {
	if s.db == nil {
		return errors.New("seen store not initialized")
	}
	key := []byte(itemKeyPrefix + identity)

	entry.UpdatedAt = time.Now().UTC()
	entryBytes, errJson := json.Marshal(entry)
	if errJson != nil {
		wrappedErr := fmt.Errorf("%w: failed to marshal ItemDBEntry for key '%s': %w", utils.ErrParsing, string(key), errJson)
		s.log.Error(wrappedErr)
		return wrappedErr
	}

	isNew := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			isNew = true
		}
		return txn.SetEntry(badger.NewEntry(key, entryBytes))
	})

	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in UpdateStatus: %v", err)
		return fmt.Errorf("%w: failed setting item status for key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		s.keyCount.Add(1)
	}
	return nil
}

// IsRecorded reports whether an identity has already been durably recorded.
// DB errors resolve to false so the worst case is a duplicate pre-write check
// downstream, never a silently skipped item.
func (s *SeenStore) IsRecorded(identity string) bool {
	status, _, err := s.CheckStatus(identity)
	if err != nil {
		return false
	}
	return status == ItemStatusRecorded
}

// SeenCount returns the cached key count.
func (s *SeenStore) SeenCount() int {
	return int(s.keyCount.Load())
}

// RunGC runs BadgerDB's value log garbage collection periodically until the
// context is cancelled. Should be run in a goroutine.
func (s *SeenStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for {
				err = s.db.RunValueLogGC(0.5)
				if err != nil {
					break
				}
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB GC goroutine: %v", ctx.Err())
			return
		}
	}
}

// Close cleanly closes the database
func (s *SeenStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
