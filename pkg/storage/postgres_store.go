package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/hashtag-scraper/pkg/log"
	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
	"github.com/Sriram-PR/hashtag-scraper/pkg/storage/migrations"
	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

// PostgresStore implements the Store interface on a pgx connection pool
type PostgresStore struct {
	Pool *pgxpool.Pool
	log  *logrus.Entry
}

// NewPostgresStore connects, pings and migrates the database
func NewPostgresStore(ctx context.Context, connString string, logger *logrus.Entry) (*PostgresStore, error) {
	if err := RunMigrations(connString); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("%w: parse database url: %w", utils.ErrDatabase, err)
	}
	poolCfg.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   log.NewPgxLogrusAdapter(logger.WithField("component", "pgx")),
		LogLevel: log.PgxLogLevel(logger.Logger.GetLevel()),
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create pool: %w", utils.ErrDatabase, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", utils.ErrDatabase, err)
	}

	logger.Info("Connected to Postgres term store")
	return &PostgresStore{Pool: pool, log: logger}, nil
}

// RunMigrations runs all embedded SQL migrations.
func RunMigrations(connString string) error {
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("%w: failed to create migration source: %w", utils.ErrDatabase, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, connString)
	if err != nil {
		return fmt.Errorf("%w: failed to create migrator: %w", utils.ErrDatabase, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: migration failed: %w", utils.ErrDatabase, err)
	}
	return nil
}

var (
	pgSelectFirst = `SELECT id, search_word, created_at, ` + strings.Join(sectionColumns, ", ") + `
		FROM search_tags WHERE search_word = $1 ORDER BY id LIMIT 1`
	pgInsert = `INSERT INTO search_tags (search_word, created_at, ` + strings.Join(sectionColumns, ", ") + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
)

// Lookup implements the TermStore interface
func (s *PostgresStore) Lookup(ctx context.Context, searchWord string) (*models.SearchTagRecord, bool, error) {
	var rec models.SearchTagRecord
	raw := make([][]byte, len(sectionColumns))
	dest := []any{&rec.ID, &rec.SearchWord, &rec.CreatedAt}
	for i := range raw {
		dest = append(dest, &raw[i])
	}

	err := s.Pool.QueryRow(ctx, pgSelectFirst, searchWord).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: lookup %q: %w", utils.ErrDatabase, searchWord, err)
	}
	if err := decodeSections(&rec.SearchTagResult, raw); err != nil {
		return nil, false, fmt.Errorf("%w: lookup %q: %w", utils.ErrDatabase, searchWord, err)
	}
	return &rec, true, nil
}

// Insert implements the TermStore interface
func (s *PostgresStore) Insert(ctx context.Context, rec *models.SearchTagRecord) error {
	sections, err := encodeSections(&rec.SearchTagResult)
	if err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	args := []any{rec.SearchWord, rec.CreatedAt}
	for _, sec := range sections {
		args = append(args, sec)
	}
	if err := s.Pool.QueryRow(ctx, pgInsert, args...).Scan(&rec.ID); err != nil {
		return fmt.Errorf("%w: insert %q: %w", utils.ErrDatabase, rec.SearchWord, err)
	}
	return nil
}

// Count implements the StoreAdmin interface
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM search_tags`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %w", utils.ErrDatabase, err)
	}
	return n, nil
}

// Close implements the StoreAdmin interface
func (s *PostgresStore) Close() error {
	s.Pool.Close()
	return nil
}
