package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/turtacn/topk-planner/pkg/errors"
)

// Summary describes a stored catalog without its items.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ItemCount int       `json:"item_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository stores named catalogs.  Get returns an ErrCodeCatalogNotFound
// error for unknown ids.
type Repository interface {
	Get(ctx context.Context, id string) (*Catalog, error)
	Save(ctx context.Context, id, name string, c *Catalog) error
	List(ctx context.Context) ([]Summary, error)
}

// NotFound builds the error returned by repositories for a missing id.
func NotFound(id string) error {
	return errors.New(errors.ErrCodeCatalogNotFound, "catalog not found").WithDetail("id=" + id)
}

type memoryEntry struct {
	summary Summary
	catalog *Catalog
}

// MemoryRepository is an in-process Repository used when no database is
// configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: make(map[string]memoryEntry), now: time.Now}
}

// NewSeededMemoryRepository returns a MemoryRepository holding the sample
// gym catalog under SampleCatalogID.
func NewSeededMemoryRepository() *MemoryRepository {
	r := NewMemoryRepository()
	_ = r.Save(context.Background(), SampleCatalogID, SampleCatalogName, SampleGymCatalog())
	return r
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, NotFound(id)
	}
	return e.catalog, nil
}

func (r *MemoryRepository) Save(ctx context.Context, id, name string, c *Catalog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return errors.InvalidConfig("catalog id must not be empty")
	}
	if c == nil {
		return errors.InvalidConfig("catalog must not be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = memoryEntry{
		summary: Summary{ID: id, Name: name, ItemCount: c.Len(), UpdatedAt: r.now().UTC()},
		catalog: c,
	}
	return nil
}

// List returns summaries sorted by id.
func (r *MemoryRepository) List(ctx context.Context) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Summary, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
