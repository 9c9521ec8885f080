package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"product-discovery-service/internal/domain"
)

//go:embed postgres_schema.sql
var postgresSchema string

const (
	productColumnList   = "id, name, description, price, category_id, images, external_links, available_platforms, rating, review_count, discount, hits, last_viewed, created_at, updated_at"
	categoryColumnList  = "id, name, description"
	analyticsColumnList = "product_id, product_name, views, hits, adds_to_cart, purchases, last_viewed, created_at"
)

// PostgresStore implements Backend using PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// ConnectPostgres opens a connection pool for dsn and verifies it is reachable.
func ConnectPostgres(ctx context.Context, dsn string, timeout time.Duration, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: failed to ping postgres: %w", err)
	}
	logger.Info("Successfully connected to the database!")
	return NewPostgresStore(db, logger), nil
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: logger}
}

// EnsureSchema creates the catalog schema and its tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return unavailable("EnsureSchema", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("Ping", err)
	}
	return nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close(context.Context) error {
	if s.db == nil {
		return nil
	}
	s.log.Info("Closing database connection pool...")
	if err := s.db.Close(); err != nil {
		s.log.WithError(err).Error("Failed to close database connection pool")
		return err
	}
	s.log.Info("Database connection pool closed successfully.")
	return nil
}

// --- ProductStorer Implementation ---

func (s *PostgresStore) CountProducts(ctx context.Context, filter Predicate) (int64, error) {
	b := &sqlBuilder{columns: productColumns}
	where, err := b.where(filter)
	if err != nil {
		return 0, err
	}
	query := "SELECT COUNT(*) FROM catalog.products WHERE " + where
	s.log.WithFields(logrus.Fields{"query": query, "args": b.args}).Debug("postgres: count products")

	var total int64
	if err := s.db.QueryRowContext(ctx, query, b.args...).Scan(&total); err != nil {
		return 0, unavailable("CountProducts", err)
	}
	return total, nil
}

func (s *PostgresStore) FindProducts(ctx context.Context, q Query) ([]domain.Product, error) {
	query, args, err := selectQuery("catalog.products", productColumnList, productColumns, q)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"query": query, "args": args}).Debug("postgres: find products")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("FindProducts", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, unavailable("FindProducts", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("FindProducts", err)
	}
	return products, nil
}

func (s *PostgresStore) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	query := "SELECT " + productColumnList + " FROM catalog.products WHERE id = $1"
	p, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, unavailable("GetProductByID", err)
	}
	return &p, nil
}

const upsertProductQuery = `
		INSERT INTO catalog.products (` + productColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description, price = EXCLUDED.price,
			category_id = EXCLUDED.category_id, images = EXCLUDED.images, external_links = EXCLUDED.external_links,
			available_platforms = EXCLUDED.available_platforms, rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count, discount = EXCLUDED.discount, hits = EXCLUDED.hits,
			last_viewed = EXCLUDED.last_viewed, created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at;
	`

func (s *PostgresStore) SaveProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	var links []byte
	if product.ExternalLinks != nil {
		var err error
		if links, err = json.Marshal(product.ExternalLinks); err != nil {
			return nil, fmt.Errorf("store: SaveProduct failed to marshal external links: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, upsertProductQuery,
		product.ID, product.Name, nullString(product.Description), product.Price, nullString(product.CategoryID),
		pq.Array(product.Images), links, pq.Array(product.AvailablePlatforms),
		product.Rating, product.ReviewCount, product.Discount, product.Hits,
		nullTime(product.LastViewed), product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return nil, unavailable("SaveProduct", err)
	}
	saved := *product
	return &saved, nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	return s.deleteByKey(ctx, "DeleteProduct", "DELETE FROM catalog.products WHERE id = $1", id, ErrProductNotFound)
}

func (s *PostgresStore) IncrementProduct(ctx context.Context, id string, inc Increment) error {
	b := &sqlBuilder{columns: productColumns}
	set, err := b.increment(inc)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("UPDATE catalog.products SET %s WHERE id = %s", set, b.bind(id))
	res, err := s.db.ExecContext(ctx, query, b.args...)
	if err != nil {
		return unavailable("IncrementProduct", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("IncrementProduct", err)
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// --- CategoryStorer Implementation ---

func (s *PostgresStore) FindCategories(ctx context.Context, q Query) ([]domain.Category, error) {
	query, args, err := selectQuery("catalog.categories", categoryColumnList, categoryColumns, q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("FindCategories", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, unavailable("FindCategories", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("FindCategories", err)
	}
	return categories, nil
}

func (s *PostgresStore) GetCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	query := "SELECT " + categoryColumnList + " FROM catalog.categories WHERE id = $1"
	c, err := scanCategory(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, unavailable("GetCategoryByID", err)
	}
	return &c, nil
}

const upsertCategoryQuery = `
		INSERT INTO catalog.categories (id, name, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description;
	`

func (s *PostgresStore) SaveCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	_, err := s.db.ExecContext(ctx, upsertCategoryQuery, category.ID, category.Name, nullString(category.Description))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // Unique violation
			if strings.Contains(pqErr.Constraint, "categories_name_key") || strings.Contains(pqErr.Detail, "Key (name)") {
				return nil, ErrCategoryNameExists
			}
		}
		return nil, unavailable("SaveCategory", err)
	}
	saved := *category
	return &saved, nil
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, id string) error {
	return s.deleteByKey(ctx, "DeleteCategory", "DELETE FROM catalog.categories WHERE id = $1", id, ErrCategoryNotFound)
}

// --- AnalyticsStorer Implementation ---

func (s *PostgresStore) GetAnalytics(ctx context.Context, productID string) (*domain.ProductAnalytics, error) {
	query := "SELECT " + analyticsColumnList + " FROM catalog.product_analytics WHERE product_id = $1"
	a, err := scanAnalytics(s.db.QueryRowContext(ctx, query, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAnalyticsNotFound
		}
		return nil, unavailable("GetAnalytics", err)
	}
	return &a, nil
}

// The no-op update makes RETURNING yield the existing row on conflict.
const createAnalyticsQuery = `
		INSERT INTO catalog.product_analytics (` + analyticsColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (product_id) DO UPDATE SET product_id = EXCLUDED.product_id
		RETURNING ` + analyticsColumnList + `;
	`

func (s *PostgresStore) CreateAnalytics(ctx context.Context, a *domain.ProductAnalytics) (*domain.ProductAnalytics, error) {
	row := s.db.QueryRowContext(ctx, createAnalyticsQuery,
		a.ProductID, a.ProductName, a.Views, a.Hits, a.AddsToCart, a.Purchases, nullTime(a.LastViewed), a.CreatedAt)
	stored, err := scanAnalytics(row)
	if err != nil {
		return nil, unavailable("CreateAnalytics", err)
	}
	return &stored, nil
}

func (s *PostgresStore) IncrementAnalytics(ctx context.Context, productID string, inc Increment) error {
	query, args, err := analyticsUpsert(productID, inc)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable("IncrementAnalytics", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAnalytics(ctx context.Context, productID string) error {
	return s.deleteByKey(ctx, "DeleteAnalytics", "DELETE FROM catalog.product_analytics WHERE product_id = $1", productID, ErrAnalyticsNotFound)
}

// --- helpers ---

func (s *PostgresStore) deleteByKey(ctx context.Context, op, query, key string, notFound error) error {
	res, err := s.db.ExecContext(ctx, query, key)
	if err != nil {
		return unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(op, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p                       domain.Product
		description, categoryID sql.NullString
		links                   []byte
		lastViewed              sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.Name, &description, &p.Price, &categoryID,
		pq.Array(&p.Images), &links, pq.Array(&p.AvailablePlatforms),
		&p.Rating, &p.ReviewCount, &p.Discount, &p.Hits,
		&lastViewed, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	p.Description = description.String
	p.CategoryID = categoryID.String
	if lastViewed.Valid {
		t := lastViewed.Time
		p.LastViewed = &t
	}
	if len(links) > 0 {
		if err := json.Unmarshal(links, &p.ExternalLinks); err != nil {
			return p, fmt.Errorf("decode external links of %s: %w", p.ID, err)
		}
	}
	return p, nil
}

func scanCategory(row rowScanner) (domain.Category, error) {
	var (
		c           domain.Category
		description sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &description); err != nil {
		return c, err
	}
	c.Description = description.String
	return c, nil
}

func scanAnalytics(row rowScanner) (domain.ProductAnalytics, error) {
	var (
		a          domain.ProductAnalytics
		lastViewed sql.NullTime
	)
	err := row.Scan(&a.ProductID, &a.ProductName, &a.Views, &a.Hits, &a.AddsToCart, &a.Purchases, &lastViewed, &a.CreatedAt)
	if err != nil {
		return a, err
	}
	if lastViewed.Valid {
		t := lastViewed.Time
		a.LastViewed = &t
	}
	return a, nil
}

// Empty strings are stored as NULL so they count as absent, like in the document backend.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
