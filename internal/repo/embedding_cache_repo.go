package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/docembed/internal/model"
	"github.com/xxxsen/docembed/internal/pkg/dbutil"
)

type EmbeddingCacheRepo struct {
	db *sql.DB
}

func NewEmbeddingCacheRepo(db *sql.DB) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{db: db}
}

// Get returns the cached vector of a model and content hash. A miss is not
// an error.
func (r *EmbeddingCacheRepo) Get(ctx context.Context, modelName, contentHash string) (*model.EmbeddingCache, bool, error) {
	where := map[string]interface{}{"model_name": modelName, "content_hash": contentHash}
	sqlStr, args, err := builder.BuildSelect("embedding_cache", where, []string{"embedding", "token_count", "ctime"})
	if err != nil {
		return nil, false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var embedding pgvector.Vector
	item := &model.EmbeddingCache{ModelName: modelName, ContentHash: contentHash}
	if err := row.Scan(&embedding, &item.TokenCount, &item.Ctime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	item.Embedding = embedding.Slice()
	return item, true, nil
}

// Save upserts so a re-embedded text refreshes the row's age.
func (r *EmbeddingCacheRepo) Save(ctx context.Context, item *model.EmbeddingCache) error {
	const query = `
		INSERT INTO embedding_cache (model_name, content_hash, embedding, token_count, ctime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (model_name, content_hash) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			token_count = EXCLUDED.token_count,
			ctime = EXCLUDED.ctime
	`
	_, err := r.db.ExecContext(ctx, query,
		item.ModelName,
		item.ContentHash,
		pgvector.NewVector(item.Embedding),
		item.TokenCount,
		item.Ctime,
	)
	return err
}

func (r *EmbeddingCacheRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args, err := builder.BuildDelete("embedding_cache", map[string]interface{}{"ctime <": cutoff})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
