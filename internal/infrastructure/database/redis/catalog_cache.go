package redis

import (
	"context"
	"time"

	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/topk-planner/pkg/errors"
)

const catalogKeyPrefix = "catalog:"

// CacheRecorder counts catalog cache lookups.
type CacheRecorder interface {
	CacheHit()
	CacheMiss()
}

type cachedCatalog struct {
	Items []catalog.Item `json:"items"`
}

// CachedCatalogRepository is a read-through cache in front of another
// catalog.Repository.  A failing cache degrades to direct reads.
type CachedCatalogRepository struct {
	inner    catalog.Repository
	cache    Cache
	ttl      time.Duration
	recorder CacheRecorder
	logger   logging.Logger
}

// NewCachedCatalogRepository decorates inner.  recorder may be nil.
func NewCachedCatalogRepository(inner catalog.Repository, cache Cache, ttl time.Duration, recorder CacheRecorder, log logging.Logger) *CachedCatalogRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CachedCatalogRepository{
		inner:    inner,
		cache:    cache,
		ttl:      ttl,
		recorder: recorder,
		logger:   log.Named("catalog_cache"),
	}
}

var _ catalog.Repository = (*CachedCatalogRepository)(nil)

func (r *CachedCatalogRepository) Get(ctx context.Context, id string) (*catalog.Catalog, error) {
	loaded := false
	var entry cachedCatalog
	err := r.cache.GetOrSet(ctx, catalogKeyPrefix+id, &entry, r.ttl, func(ctx context.Context) (interface{}, error) {
		loaded = true
		c, err := r.inner.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return cachedCatalog{Items: c.Items()}, nil
	})

	switch {
	case err == nil:
	case errors.IsCode(err, errors.ErrCodeCacheError) || errors.IsCode(err, errors.ErrCodeSerialization):
		r.logger.Warn("catalog cache unavailable, reading through", logging.String("catalog_id", id), logging.Err(err))
		r.record(false)
		return r.inner.Get(ctx, id)
	default:
		return nil, err
	}

	r.record(!loaded)
	return catalog.NewCatalog(entry.Items)
}

// Save writes through and invalidates the cached copy.
func (r *CachedCatalogRepository) Save(ctx context.Context, id, name string, c *catalog.Catalog) error {
	if err := r.inner.Save(ctx, id, name, c); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, catalogKeyPrefix+id); err != nil {
		r.logger.Warn("failed to invalidate cached catalog", logging.String("catalog_id", id), logging.Err(err))
	}
	return nil
}

func (r *CachedCatalogRepository) List(ctx context.Context) ([]catalog.Summary, error) {
	return r.inner.List(ctx)
}

func (r *CachedCatalogRepository) record(hit bool) {
	if r.recorder == nil {
		return
	}
	if hit {
		r.recorder.CacheHit()
	} else {
		r.recorder.CacheMiss()
	}
}
