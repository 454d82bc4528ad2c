package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akolanti/PageIndexAPI/internal/data/redisStore"
	"github.com/akolanti/PageIndexAPI/internal/domain/treeModel"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

const (
	docKeyPrefix = "pageindex:doc:"
	docIndexKey  = "pageindex:docs"
)

// RedisMetadataIndex keeps one JSON row per document and a sorted set of
// doc ids scored by creation time. Writes touching both go through MULTI/EXEC.
type RedisMetadataIndex struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func NewRedisMetadataIndex(rs *redisStore.Store) *RedisMetadataIndex {
	return &RedisMetadataIndex{
		store:  rs,
		logger: logger_i.NewLogger("redis_metadata_index"),
	}
}

func docKey(docID string) string {
	return docKeyPrefix + docID
}

func (idx *RedisMetadataIndex) Upsert(ctx context.Context, meta treeModel.DocumentMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = idx.store.Tx(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, docKey(meta.DocID), data, 0)
		pipe.ZAdd(ctx, docIndexKey, redis.Z{
			Score:  float64(meta.CreatedAt.UnixMicro()),
			Member: meta.DocID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", meta.DocID, err)
	}
	idx.logger.WithContext(ctx).Debug("metadata_upserted", "doc_id", meta.DocID)
	return nil
}

func (idx *RedisMetadataIndex) Get(ctx context.Context, docID string) (treeModel.DocumentMetadata, bool, error) {
	var meta treeModel.DocumentMetadata
	val, err := idx.store.Get(ctx, docKey(docID))
	if idx.store.IsNil(err) {
		return meta, false, nil
	} else if err != nil {
		return meta, false, err
	}
	if err := json.Unmarshal([]byte(val), &meta); err != nil {
		return meta, false, fmt.Errorf("decode metadata %s: %w", docID, err)
	}
	return meta, true, nil
}

func (idx *RedisMetadataIndex) Delete(ctx context.Context, docID string) (bool, error) {
	existed, err := idx.store.Exists(ctx, docKey(docID))
	if err != nil {
		return false, err
	}
	_, err = idx.store.Tx(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey(docID))
		pipe.ZRem(ctx, docIndexKey, docID)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", docID, err)
	}
	return existed, nil
}

// List reads the ordering from the sorted set and the rows with one MGET.
// Ids left in the set without a row are dropped from it.
func (idx *RedisMetadataIndex) List(ctx context.Context) ([]treeModel.DocumentMetadata, error) {
	ids, err := idx.store.ZRevRangeAll(ctx, docIndexKey)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(id)
	}
	values, found, err := idx.store.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}

	log := idx.logger.WithContext(ctx)
	rows := make([]treeModel.DocumentMetadata, 0, len(ids))
	var orphans []interface{}
	for i, id := range ids {
		if !found[i] {
			orphans = append(orphans, id)
			continue
		}
		var meta treeModel.DocumentMetadata
		if err := json.Unmarshal([]byte(values[i]), &meta); err != nil {
			log.Warn("metadata_row_undecodable", "doc_id", id, "error", err)
			continue
		}
		rows = append(rows, meta)
	}
	if len(orphans) > 0 {
		log.Warn("metadata_index_orphans", "count", len(orphans))
		if err := idx.store.ZRem(ctx, docIndexKey, orphans...); err != nil {
			log.Error("metadata_orphan_cleanup_failed", "error", err)
		}
	}
	return rows, nil
}

func (idx *RedisMetadataIndex) Count(ctx context.Context) (int, error) {
	n, err := idx.store.ZCard(ctx, docIndexKey)
	return int(n), err
}

func (idx *RedisMetadataIndex) Ping(ctx context.Context) error {
	return idx.store.Ping(ctx)
}
