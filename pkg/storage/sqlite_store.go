package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

// SQLiteStore implements the Store interface on an embedded SQLite file
type SQLiteStore struct {
	db  *sql.DB
	log *logrus.Entry
}

// NewSQLiteStore opens the database file and creates the schema if needed
func NewSQLiteStore(ctx context.Context, path string, logger *logrus.Entry) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create %s: %w", utils.ErrFilesystem, dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", utils.ErrDatabase, err)
	}
	// One writer avoids SQLITE_BUSY between concurrent inserts
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, log: logger}
	if err := s.initTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Infof("Opened SQLite term store at %s", path)
	return s, nil
}

func (s *SQLiteStore) initTables(ctx context.Context) error {
	var cols strings.Builder
	for _, c := range sectionColumns {
		fmt.Fprintf(&cols, "\n\t\t\t%s TEXT NOT NULL DEFAULT '[]',", c)
	}
	queries := []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS search_tags (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			search_word TEXT NOT NULL,` + cols.String() + `
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_search_tags_search_word_id ON search_tags (search_word, id)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%w: failed to init tables: %w", utils.ErrDatabase, err)
		}
	}
	return nil
}

var (
	sqliteSelectFirst = `SELECT id, search_word, created_at, ` + strings.Join(sectionColumns, ", ") + `
		FROM search_tags WHERE search_word = ? ORDER BY id LIMIT 1`
	sqliteInsert = `INSERT INTO search_tags (search_word, created_at, ` + strings.Join(sectionColumns, ", ") + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
)

// Lookup implements the TermStore interface
func (s *SQLiteStore) Lookup(ctx context.Context, searchWord string) (*models.SearchTagRecord, bool, error) {
	var (
		rec       models.SearchTagRecord
		createdAt string
	)
	raw := make([][]byte, len(sectionColumns))
	dest := []any{&rec.ID, &rec.SearchWord, &createdAt}
	for i := range raw {
		dest = append(dest, &raw[i])
	}

	err := s.db.QueryRowContext(ctx, sqliteSelectFirst, searchWord).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: lookup %q: %w", utils.ErrDatabase, searchWord, err)
	}
	if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		rec.CreatedAt = t
	}
	if err := decodeSections(&rec.SearchTagResult, raw); err != nil {
		return nil, false, fmt.Errorf("%w: lookup %q: %w", utils.ErrDatabase, searchWord, err)
	}
	return &rec, true, nil
}

// Insert implements the TermStore interface
func (s *SQLiteStore) Insert(ctx context.Context, rec *models.SearchTagRecord) error {
	sections, err := encodeSections(&rec.SearchTagResult)
	if err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	args := []any{rec.SearchWord, rec.CreatedAt.UTC().Format(time.RFC3339Nano)}
	for _, sec := range sections {
		args = append(args, sec)
	}
	res, err := s.db.ExecContext(ctx, sqliteInsert, args...)
	if err != nil {
		return fmt.Errorf("%w: insert %q: %w", utils.ErrDatabase, rec.SearchWord, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// Count implements the StoreAdmin interface
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_tags`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %w", utils.ErrDatabase, err)
	}
	return n, nil
}

// Close implements the StoreAdmin interface
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
