package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"business-news-scraper/internal/observability"
	"business-news-scraper/internal/storage"
)

// document - запись в коллекции; batch_id ставится только при InsertBatch
type document struct {
	storage.ArticleRecord `bson:",inline"`
	BatchID               string `bson:"batch_id,omitempty"`
}

type Repository struct {
	client         *mongo.Client
	articles       *mongo.Collection
	commandTimeout time.Duration
	logger         *observability.Logger
}

func NewRepository(uri, database, collection string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	r := &Repository{
		client:         client,
		articles:       client.Database(database).Collection(collection),
		commandTimeout: commandTimeout,
		logger:         logger,
	}

	if err := r.EnsureSchema(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("can't create indexes: %w", err)
	}
	return r, nil
}

// EnsureSchema создаёт уникальный индекс по url
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	_, err := r.articles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "url", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *Repository) ListAllURLs(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	values, err := r.articles.Distinct(ctx, "url", bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}

	urls := make(map[string]struct{}, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			urls[s] = struct{}{}
		}
	}
	return urls, nil
}

// InsertBatch вставляет пачку. Без транзакций: при ошибке уже вставленные
// документы этой пачки удаляются по batch_id
func (r *Repository) InsertBatch(ctx context.Context, records []storage.ArticleRecord) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	batchID := uuid.NewString()
	docs := make([]interface{}, 0, len(records))
	for _, rec := range records {
		docs = append(docs, document{ArticleRecord: withCompanies(rec), BatchID: batchID})
	}

	if _, err := r.articles.InsertMany(ctx, docs); err != nil {
		r.discardBatch(ctx, batchID)
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	return nil
}

// discardBatch удаляет документы неудавшейся пачки. Дедлайн вставки к этому
// моменту мог уже истечь, поэтому у очистки свой таймаут
func (r *Repository) discardBatch(ctx context.Context, batchID string) {
	cleanupCtx, cancel := cleanupContext(ctx, r.commandTimeout)
	defer cancel()

	if _, err := r.articles.DeleteMany(cleanupCtx, bson.M{"batch_id": batchID}); err != nil {
		r.logger.Error("Failed to clean up partial batch",
			"batch_id", batchID,
			"error", err.Error(),
		)
	}
}

func cleanupContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}

func (r *Repository) UpsertByURL(ctx context.Context, rec storage.ArticleRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"url": rec.URL}
	update := bson.M{"$set": withCompanies(rec)}

	if _, err := r.articles.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", rec.URL, err)
	}
	return nil
}

func (r *Repository) GetByURL(ctx context.Context, url string) (*storage.ArticleRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var doc document
	err := r.articles.FindOne(ctx, bson.M{"url": url}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", url, err)
	}

	rec := doc.ArticleRecord
	rec.Companies = withCompanies(rec).Companies
	return &rec, nil
}

func (r *Repository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// withCompanies: companies всегда массив, а не null
func withCompanies(rec storage.ArticleRecord) storage.ArticleRecord {
	if rec.Companies == nil {
		rec.Companies = []string{}
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec
}
