package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"business-news-scraper/internal/observability"
	"business-news-scraper/internal/storage"
)

const timeLayout = time.RFC3339Nano

// Repository - локальное хранилище статей в файле SQLite
type Repository struct {
	db             *sql.DB
	table          string
	commandTimeout time.Duration
	logger         *observability.Logger
}

func NewRepository(dsn, table string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	if err := storage.ValidateTableName(table); err != nil {
		return nil, err
	}

	if err := ensureDir(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite допускает одного писателя
	db.SetMaxOpenConns(1)

	r := &Repository{
		db:             db,
		table:          table,
		commandTimeout: commandTimeout,
		logger:         logger,
	}

	if err := r.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return r, nil
}

// EnsureSchema создаёт таблицу статей, если её нет
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		headline TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		companies TEXT NOT NULL DEFAULT '[]',
		category TEXT,
		author TEXT,
		publish_date TEXT,
		source TEXT NOT NULL,
		created_at TEXT NOT NULL,
		checksum TEXT NOT NULL
	);
	`, r.table)

	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *Repository) ListAllURLs(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT url FROM %s`, r.table))
	if err != nil {
		return nil, fmt.Errorf("failed to query urls: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("Failed to close rows", "error", err.Error())
		}
	}()

	urls := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		urls[u] = struct{}{}
	}
	return urls, rows.Err()
}

// InsertBatch вставляет пачку в одной транзакции; дубликат URL откатывает всю пачку
func (r *Repository) InsertBatch(ctx context.Context, records []storage.ArticleRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("Failed to rollback batch", "error", rbErr.Error())
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (headline, url, companies, category, author, publish_date, source, created_at, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.table))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	for _, rec := range records {
		args, err := recordArgs(rec)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert %s: %w", rec.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (r *Repository) UpsertByURL(ctx context.Context, rec storage.ArticleRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	args, err := recordArgs(rec)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (headline, url, companies, category, author, publish_date, source, created_at, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			headline = excluded.headline,
			companies = excluded.companies,
			category = excluded.category,
			author = excluded.author,
			publish_date = excluded.publish_date,
			source = excluded.source,
			created_at = excluded.created_at,
			checksum = excluded.checksum`, r.table)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute upsert: %w", err)
	}
	return nil
}

func (r *Repository) GetByURL(ctx context.Context, url string) (*storage.ArticleRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT headline, url, companies, category, author, publish_date, source, created_at, checksum
		FROM %s WHERE url = ?`, r.table)

	var (
		rec                           storage.ArticleRecord
		companies, createdAt, stored  string
		category, author, publishDate sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, url).Scan(
		&rec.Headline, &rec.URL, &companies, &category, &author, &publishDate, &rec.Source, &createdAt, &stored,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}

	if rec.Companies, err = storage.DecodeCompanies(companies); err != nil {
		return nil, err
	}
	if category.Valid {
		rec.Category = &category.String
	}
	if author.Valid {
		rec.Author = &author.String
	}
	if publishDate.Valid {
		t, err := time.Parse(timeLayout, publishDate.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse publish_date: %w", err)
		}
		rec.PublishedAt = &t
	}
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if !rec.VerifyChecksum(stored) {
		r.logger.Warn("Stored checksum mismatch", "url", url)
	}
	return &rec, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func recordArgs(rec storage.ArticleRecord) ([]interface{}, error) {
	companies, err := storage.EncodeCompanies(rec.Companies)
	if err != nil {
		return nil, err
	}

	var publishDate interface{}
	if rec.PublishedAt != nil {
		publishDate = rec.PublishedAt.UTC().Format(timeLayout)
	}

	return []interface{}{
		rec.Headline,
		rec.URL,
		companies,
		nullable(rec.Category),
		nullable(rec.Author),
		publishDate,
		rec.Source,
		rec.CreatedAt.UTC().Format(timeLayout),
		rec.Checksum(),
	}, nil
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// ensureDir создаёт каталог файла базы: драйвер сам его не создаёт
func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		if strings.Contains(path[i:], "mode=memory") {
			return nil
		}
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}

	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}
