// ABOUTME: Vector index over a key-value store with cosine similarity search
// ABOUTME: Bullets are embedded on ingest and ranked against an embedded query
package playbook

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/harper/ace-pipeline/internal/charm"
	"github.com/harper/ace-pipeline/internal/logger"
	"github.com/harper/ace-pipeline/internal/models"
)

// DefaultSearchLimit is used when a search asks for no particular limit
const DefaultSearchLimit = 5

// KV is the subset of the charm client the index needs
type KV interface {
	SetJSON(key string, value any) error
	GetJSON(key string, dest any) error
	ListKeys(prefix string) ([]string, error)
	Delete(key string) error
	Sync() error
}

// Embedder turns text into a vector
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// Index stores bullet embeddings for one collection
type Index struct {
	kv         KV
	embedder   Embedder
	collection string
	autoSync   bool
}

// IndexOption configures an Index
type IndexOption func(*Index)

// WithAutoSync syncs the store once after every ingest
func WithAutoSync(enabled bool) IndexOption {
	return func(ix *Index) { ix.autoSync = enabled }
}

// IngestStats reports what an ingest changed
type IngestStats struct {
	Ingested int `json:"ingested"`
	Removed  int `json:"removed"`
}

// NewIndex creates an index over kv for collection
func NewIndex(kv KV, embedder Embedder, collection string, opts ...IndexOption) (*Index, error) {
	if kv == nil {
		return nil, errors.New("playbook index requires a store")
	}
	if embedder == nil {
		return nil, errors.New("playbook index requires an embedder")
	}
	if collection == "" {
		return nil, errors.New("playbook index requires a collection name")
	}
	ix := &Index{kv: kv, embedder: embedder, collection: collection}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// Collection returns the collection name
func (ix *Index) Collection() string {
	return ix.collection
}

// Ingest embeds every bullet and upserts it, then removes entries for
// bullets the playbook no longer has. With auto sync the store is synced
// once at the end.
func (ix *Index) Ingest(ctx context.Context, pb *Playbook) (IngestStats, error) {
	log := logger.FromContext(ctx).With("collection", ix.collection)

	var stats IngestStats
	keep := make(map[string]bool, len(pb.Bullets))
	for _, b := range pb.Ordered() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		vec, err := ix.embedder.GenerateEmbedding(ctx, b.Content)
		if err != nil {
			return stats, fmt.Errorf("embed bullet %s: %w", b.ID, err)
		}

		key := charm.BulletKey(ix.collection, b.ID)
		entry := models.BulletEmbedding{
			Bullet:     b,
			Collection: ix.collection,
			Vector:     vec,
			CreatedAt:  time.Now(),
		}
		if err := ix.kv.SetJSON(key, entry); err != nil {
			return stats, fmt.Errorf("store bullet %s: %w", b.ID, err)
		}
		keep[key] = true
		stats.Ingested++
	}

	removed, err := ix.prune(ctx, keep)
	stats.Removed = removed
	if err != nil {
		return stats, err
	}

	if ix.autoSync {
		if err := ix.kv.Sync(); err != nil {
			log.Warn("sync after ingest failed", "err", err)
		}
	}

	log.Info("playbook ingested", "bullets", stats.Ingested, "removed", stats.Removed)
	return stats, nil
}

// prune deletes entries of this collection whose key is not in keep
func (ix *Index) prune(ctx context.Context, keep map[string]bool) (int, error) {
	keys, err := ix.kv.ListKeys(charm.CollectionPrefix(ix.collection))
	if err != nil {
		return 0, fmt.Errorf("failed to list bullet keys: %w", err)
	}

	removed := 0
	for _, key := range keys {
		if keep[key] {
			continue
		}
		// a longer collection name can share this prefix
		var emb models.BulletEmbedding
		if err := ix.kv.GetJSON(key, &emb); err == nil && emb.Collection != ix.collection {
			continue
		}
		if err := ix.kv.Delete(key); err != nil {
			return removed, fmt.Errorf("remove stale bullet %s: %w", key, err)
		}
		logger.FromContext(ctx).Debug("removed stale bullet", "key", key)
		removed++
	}
	return removed, nil
}

// Search returns the bullets closest to query, best first
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]models.PlaybookHit, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	qvec, err := ix.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	keys, err := ix.kv.ListKeys(charm.CollectionPrefix(ix.collection))
	if err != nil {
		return nil, fmt.Errorf("failed to list bullet keys: %w", err)
	}

	log := logger.FromContext(ctx)
	hits := make([]models.PlaybookHit, 0, len(keys))
	for _, key := range keys {
		var emb models.BulletEmbedding
		if err := ix.kv.GetJSON(key, &emb); err != nil {
			log.Warn("skipping unreadable bullet", "key", key, "err", err)
			continue
		}
		if emb.Collection != ix.collection {
			continue
		}
		hits = append(hits, models.PlaybookHit{
			ID:              emb.ID,
			Section:         emb.Section,
			Text:            emb.Content,
			SimilarityScore: cosineSimilarity(qvec, emb.Vector),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].SimilarityScore > hits[j].SimilarityScore
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// cosineSimilarity calculates cosine similarity between two vectors
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
