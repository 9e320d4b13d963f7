package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"business-news-scraper/internal/checksum"
	"business-news-scraper/internal/observability"
	"business-news-scraper/internal/storage"
)

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

	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Тестируем соединение
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r := &Repository{
		db:             db,
		table:          table,
		commandTimeout: commandTimeout,
		logger:         logger,
	}
	if err := r.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return r, nil
}

// EnsureSchema создаёт таблицу, если её нет. Уникальность URL держится
// на UrlHash: индекс по NVARCHAR(2048) SQL Server не построит
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		IF OBJECT_ID(N'dbo.%[1]s', N'U') IS NULL
		BEGIN
			CREATE TABLE dbo.[%[1]s] (
				[Id] BIGINT IDENTITY(1,1) PRIMARY KEY,
				[UrlHash] CHAR(64) NOT NULL CONSTRAINT [UQ_%[1]s_UrlHash] UNIQUE,
				[Url] NVARCHAR(2048) NOT NULL,
				[Headline] NVARCHAR(1000) NOT NULL,
				[Companies] NVARCHAR(MAX) NOT NULL DEFAULT N'[]',
				[Category] NVARCHAR(200) NULL,
				[Author] NVARCHAR(400) NULL,
				[PublishDate] DATETIME2 NULL,
				[Source] NVARCHAR(200) NOT NULL,
				[CreatedAt] DATETIME2 NOT NULL,
				[CheckSum] CHAR(64) NOT NULL
			);
		END`, r.table)

	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *Repository) ListAllURLs(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT [Url] FROM dbo.[%s]`, r.table))
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
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

// InsertBatch вставляет пачку одной транзакцией
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
		INSERT INTO dbo.[%s] ([UrlHash], [Url], [Headline], [Companies], [Category], [Author], [PublishDate], [Source], [CreatedAt], [CheckSum])
		VALUES (@UrlHash, @Url, @Headline, @Companies, @Category, @Author, @PublishDate, @Source, @CreatedAt, @CheckSum)`, r.table))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	for _, rec := range records {
		args, err := namedArgs(rec)
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

// UpsertByURL сохраняет или обновляет статью
func (r *Repository) UpsertByURL(ctx context.Context, rec storage.ArticleRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	// MERGE statement для MS SQL
	query := fmt.Sprintf(`
		MERGE INTO dbo.[%s] AS target
		USING (SELECT @UrlHash AS UrlHash) AS source
		ON target.[UrlHash] = source.UrlHash
		WHEN MATCHED THEN
			UPDATE SET
				[Headline] = @Headline,
				[Companies] = @Companies,
				[Category] = @Category,
				[Author] = @Author,
				[PublishDate] = @PublishDate,
				[Source] = @Source,
				[CreatedAt] = @CreatedAt,
				[CheckSum] = @CheckSum
		WHEN NOT MATCHED THEN
			INSERT ([UrlHash], [Url], [Headline], [Companies], [Category], [Author], [PublishDate], [Source], [CreatedAt], [CheckSum])
			VALUES (@UrlHash, @Url, @Headline, @Companies, @Category, @Author, @PublishDate, @Source, @CreatedAt, @CheckSum);
	`, r.table)

	args, err := namedArgs(rec)
	if err != nil {
		return err
	}

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	if _, err := stmt.ExecContext(ctx, args...); err != nil {
		return fmt.Errorf("failed to execute upsert: %w", err)
	}
	return nil
}

// GetByURL ищет статью по хешу URL
func (r *Repository) GetByURL(ctx context.Context, url string) (*storage.ArticleRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT [Headline], [Url], [Companies], [Category], [Author], [PublishDate], [Source], [CreatedAt]
		FROM dbo.[%s] WHERE [UrlHash] = @UrlHash`, r.table)

	var (
		rec              storage.ArticleRecord
		companies        string
		category, author sql.NullString
		publishDate      sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, sql.Named("UrlHash", checksum.URLKey(url))).Scan(
		&rec.Headline, &rec.URL, &companies, &category, &author, &publishDate, &rec.Source, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
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
		t := publishDate.Time.UTC()
		rec.PublishedAt = &t
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

// Close закрывает соединение с БД
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func namedArgs(rec storage.ArticleRecord) ([]interface{}, error) {
	companies, err := storage.EncodeCompanies(rec.Companies)
	if err != nil {
		return nil, err
	}

	var category, author sql.NullString
	if rec.Category != nil {
		category = sql.NullString{String: *rec.Category, Valid: true}
	}
	if rec.Author != nil {
		author = sql.NullString{String: *rec.Author, Valid: true}
	}
	var publishDate sql.NullTime
	if rec.PublishedAt != nil {
		publishDate = sql.NullTime{Time: rec.PublishedAt.UTC(), Valid: true}
	}

	return []interface{}{
		sql.Named("UrlHash", checksum.URLKey(rec.URL)),
		sql.Named("Url", rec.URL),
		sql.Named("Headline", rec.Headline),
		sql.Named("Companies", companies),
		sql.Named("Category", category),
		sql.Named("Author", author),
		sql.Named("PublishDate", publishDate),
		sql.Named("Source", rec.Source),
		sql.Named("CreatedAt", rec.CreatedAt.UTC()),
		sql.Named("CheckSum", rec.Checksum()),
	}, nil
}
