package postgres

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/topk-planner/pkg/errors"
)

var itemColumns = []string{"catalog_id", "position", "item_id", "price", "duration", "timeslot", "category", "base_score"}

// CatalogRepository is the PostgreSQL implementation of catalog.Repository.
// Items keep their catalog order through the position column.
type CatalogRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewCatalogRepository returns a repository over pool.
func NewCatalogRepository(pool *pgxpool.Pool, log logging.Logger) *CatalogRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CatalogRepository{pool: pool, logger: log.Named("catalog_repo")}
}

var _ catalog.Repository = (*CatalogRepository)(nil)

func (r *CatalogRepository) Get(ctx context.Context, id string) (*catalog.Catalog, error) {
	r.logger.Debug("loading catalog", logging.String("catalog_id", id))

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM catalogs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to look up catalog")
	}
	if !exists {
		return nil, catalog.NotFound(id)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT item_id, price, duration, timeslot, category, base_score
		FROM catalog_items
		WHERE catalog_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query catalog items")
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Item, error) {
		var it catalog.Item
		err := row.Scan(&it.ID, &it.Price, &it.Duration, &it.Timeslot, &it.Category, &it.BaseScore)
		return it, err
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan catalog items")
	}
	return catalog.NewCatalog(items)
}

// Save replaces the catalog's items in one transaction, using COPY for the
// item rows.
func (r *CatalogRepository) Save(ctx context.Context, id, name string, c *catalog.Catalog) error {
	if id == "" {
		return errors.InvalidConfig("catalog id is required")
	}
	if c == nil || c.Len() == 0 {
		return errors.InvalidConfig("catalog must contain at least one item")
	}

	rows := make([][]interface{}, 0, c.Len())
	for i, it := range c.Items() {
		rows = append(rows, []interface{}{id, i, it.ID, it.Price, it.Duration, it.Timeslot, it.Category, it.BaseScore})
	}

	err := WithTransaction(ctx, r.pool, func(tx pgx.Tx, ctx context.Context) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO catalogs (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()`, id, name); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert catalog")
		}
		if _, err := tx.Exec(ctx, `DELETE FROM catalog_items WHERE catalog_id = $1`, id); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to clear catalog items")
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"catalog_items"}, itemColumns, pgx.CopyFromRows(rows)); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert catalog items")
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to save catalog", logging.String("catalog_id", id), logging.Err(err))
		return err
	}
	r.logger.Info("catalog saved", logging.String("catalog_id", id), logging.Int("items", c.Len()))
	return nil
}

func (r *CatalogRepository) List(ctx context.Context) ([]catalog.Summary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, COUNT(i.item_id), c.updated_at
		FROM catalogs c
		LEFT JOIN catalog_items i ON i.catalog_id = c.id
		GROUP BY c.id, c.name, c.updated_at
		ORDER BY c.id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list catalogs")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Summary, error) {
		var s catalog.Summary
		err := row.Scan(&s.ID, &s.Name, &s.ItemCount, &s.UpdatedAt)
		return s, err
	})
	if err != nil && !stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan catalogs")
	}
	return out, nil
}
