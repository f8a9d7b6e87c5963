package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/hashtag-scraper/pkg/log"
	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

const (
	searchKeyPrefix = "search:"       // Prefix for search record keys in DB
	seqKey          = "meta:seq"      // Badger sequence giving insertion order
	termsDBDir      = "search_tags_db" // Subdirectory name within stateDir for Badger DB files
	seqBandwidth    = 100
)

// BadgerStore implements the Store interface using BadgerDB.
// Keys are search:<len><term><seq>, so a prefix scan over one term yields its
// records in insertion order and the first hit is the earliest row.
type BadgerStore struct {
	db       *badger.DB
	seq      *badger.Sequence
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached record count for O(1) Count
}

// NewBadgerStore opens (or creates) the term database under stateDir
func NewBadgerStore(stateDir string, logger *logrus.Entry) (*BadgerStore, error) {
	dbPath := filepath.Join(stateDir, termsDBDir)
	logger.Infof("Initializing term database at: %s", dbPath)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	seq, err := db.GetSequence([]byte(seqKey), seqBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to open sequence: %w", utils.ErrDatabase, err)
	}

	store := &BadgerStore{db: db, seq: seq, log: logger}

	count, err := store.countKeys()
	if err != nil {
		logger.Warnf("Failed to count existing records: %v", err)
	} else {
		store.keyCount.Store(int64(count))
		logger.Infof("Loaded existing record count: %d", count)
	}
	return store, nil
}

// termPrefix encodes the key prefix shared by every record of searchWord.
// The length prefix keeps one term from being a key prefix of another.
func termPrefix(searchWord string) []byte {
	key := make([]byte, 0, len(searchKeyPrefix)+4+len(searchWord)+8)
	key = append(key, searchKeyPrefix...)
	key = binary.BigEndian.AppendUint32(key, uint32(len(searchWord)))
	key = append(key, searchWord...)
	return key
}

func recordKey(searchWord string, id uint64) []byte {
	return binary.BigEndian.AppendUint64(termPrefix(searchWord), id)
}

// countKeys performs a one-time key scan (used only during initialization)
func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(searchKeyPrefix)
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

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// Lookup implements the TermStore interface
func (s *BadgerStore) Lookup(_ context.Context, searchWord string) (*models.SearchTagRecord, bool, error) {
	prefix := termPrefix(searchWord)
	var rec *models.SearchTagRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchSize = 1
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(prefix)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		return it.Item().Value(func(val []byte) error {
			var decoded models.SearchTagRecord
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("%w: JSON decoding record for %q: %w", utils.ErrParsing, searchWord, err)
			}
			decoded.Normalize()
			rec = &decoded
			return nil
		})
	})
	if err != nil {
		s.log.WithField("search_word", searchWord).Errorf("DB View error in Lookup: %v", err)
		return nil, false, fmt.Errorf("%w: lookup %q: %w", utils.ErrDatabase, searchWord, err)
	}
	return rec, rec != nil, nil
}

// Insert implements the TermStore interface
func (s *BadgerStore) Insert(_ context.Context, rec *models.SearchTagRecord) error {
	id, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("%w: next sequence: %w", utils.ErrDatabase, err)
	}
	rec.ID = int64(id) + 1 // Sequences start at zero; ids start at one like the SQL backends
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Normalize()

	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: JSON encoding record for %q: %w", utils.ErrParsing, rec.SearchWord, err)
	}

	key := recordKey(rec.SearchWord, id)
	err = s.dbUpdate(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
	if err != nil {
		s.log.WithField("search_word", rec.SearchWord).Errorf("DB Update error in Insert: %v", err)
		return fmt.Errorf("%w: insert %q: %w", utils.ErrDatabase, rec.SearchWord, err)
	}
	s.keyCount.Add(1)
	return nil
}

// Count implements the StoreAdmin interface
func (s *BadgerStore) Count(_ context.Context) (int, error) {
	return int(s.keyCount.Load()), nil
}

// RunGC runs periodic value log garbage collection. Should be run in a goroutine
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for {
				// Run GC if log is at least 50% reclaimable space
				if err = s.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
			if errors.Is(err, badger.ErrNoRewrite) {
				s.log.Debug("BadgerDB GC finished (no rewrite needed).")
			} else {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}

		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// Close implements the StoreAdmin interface
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if s.seq != nil {
		if err := s.seq.Release(); err != nil {
			s.log.Warnf("Error releasing sequence: %v", err)
		}
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing term DB: %v", err)
		return err
	}
	s.log.Info("Term DB closed.")
	return nil
}
