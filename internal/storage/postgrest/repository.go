package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"business-news-scraper/internal/observability"
	"business-news-scraper/internal/storage"
)

const listPageSize = 1000

// Repository - таблица статей за REST-шлюзом PostgREST (Supabase).
// Ключ передаётся и как apikey, и как Bearer-токен
type Repository struct {
	client     *http.Client
	tableURL   string
	credential string
	logger     *observability.Logger
}

func NewRepository(endpoint, credential, table string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	if err := storage.ValidateTableName(table); err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	return &Repository{
		client:     &http.Client{Timeout: commandTimeout},
		tableURL:   strings.TrimRight(endpoint, "/") + "/rest/v1/" + table,
		credential: credential,
		logger:     logger,
	}, nil
}

// ListAllURLs читает колонку url постранично
func (r *Repository) ListAllURLs(ctx context.Context) (map[string]struct{}, error) {
	urls := make(map[string]struct{})

	for offset := 0; ; offset += listPageSize {
		query := url.Values{}
		query.Set("select", "url")
		query.Set("order", "url.asc")
		query.Set("limit", strconv.Itoa(listPageSize))
		query.Set("offset", strconv.Itoa(offset))

		var rows []struct {
			URL string `json:"url"`
		}
		if err := r.do(ctx, http.MethodGet, query, nil, "", &rows); err != nil {
			return nil, fmt.Errorf("failed to list urls: %w", err)
		}

		for _, row := range rows {
			urls[row.URL] = struct{}{}
		}
		if len(rows) < listPageSize {
			return urls, nil
		}
	}
}

// InsertBatch - один POST с массивом: PostgREST вставляет его одной командой
func (r *Repository) InsertBatch(ctx context.Context, records []storage.ArticleRecord) error {
	if len(records) == 0 {
		return nil
	}

	payload := make([]storage.ArticleRecord, 0, len(records))
	for _, rec := range records {
		payload = append(payload, prepare(rec))
	}

	if err := r.do(ctx, http.MethodPost, nil, payload, "return=minimal", nil); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	return nil
}

func (r *Repository) UpsertByURL(ctx context.Context, rec storage.ArticleRecord) error {
	query := url.Values{}
	query.Set("on_conflict", "url")

	if err := r.do(ctx, http.MethodPost, query, prepare(rec), "resolution=merge-duplicates,return=minimal", nil); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", rec.URL, err)
	}
	return nil
}

func (r *Repository) GetByURL(ctx context.Context, articleURL string) (*storage.ArticleRecord, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("url", "eq."+articleURL)
	query.Set("limit", "1")

	var rows []storage.ArticleRecord
	if err := r.do(ctx, http.MethodGet, query, nil, "", &rows); err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", articleURL, err)
	}
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}

	rec := rows[0]
	if rec.Companies == nil {
		rec.Companies = []string{}
	}
	return &rec, nil
}

func (r *Repository) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

func (r *Repository) do(ctx context.Context, method string, query url.Values, body interface{}, prefer string, out interface{}) error {
	target := r.tableURL
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", r.credential)
	req.Header.Set("Authorization", "Bearer "+r.credential)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			r.logger.Warn("Failed to close response body", "error", err.Error())
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func prepare(rec storage.ArticleRecord) storage.ArticleRecord {
	if rec.Companies == nil {
		rec.Companies = []string{}
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec
}
