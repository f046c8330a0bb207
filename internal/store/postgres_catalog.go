package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"storefront-service/internal/domain"
)

// --- CategoryStorer Implementation ---

const categoryColumns = `id, name, slug, description, image_url, created_at`

func scanCategory(row scanner) (domain.Category, error) {
	var (
		c           domain.Category
		slug        sql.NullString
		description sql.NullString
		imageURL    sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &slug, &description, &imageURL, &c.CreatedAt); err != nil {
		return domain.Category{}, err
	}
	c.Slug = slug.String
	if c.Slug == "" {
		c.Slug = domain.Slugify(c.Name)
	}
	c.Description = stringPtr(description)
	c.ImageURL = stringPtr(imageURL)
	return c, nil
}

// ListCategories reads the whole categories table ordered by name.
func (s *PostgresStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories ORDER BY name ASC;`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: ListCategories failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("store: ListCategories failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListCategories iteration error: %w", err)
	}
	return categories, nil
}

func (s *PostgresStore) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE slug = $1;`
	c, err := scanCategory(s.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("store: GetCategoryBySlug failed to scan row: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	query := `
		INSERT INTO categories (name, slug, description, image_url)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + categoryColumns + `;`
	c, err := scanCategory(s.db.QueryRowContext(ctx, query,
		category.Name, category.Slug, nullString(category.Description), nullString(category.ImageURL)))
	if err != nil {
		if uniqueViolation(err, "slug") {
			return nil, ErrCategorySlugExists
		}
		return nil, fmt.Errorf("store: CreateCategory failed to scan row: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	query := `
		UPDATE categories
		SET name = $1, slug = $2, description = $3, image_url = $4
		WHERE id = $5
		RETURNING ` + categoryColumns + `;`
	c, err := scanCategory(s.db.QueryRowContext(ctx, query,
		category.Name, category.Slug, nullString(category.Description), nullString(category.ImageURL), category.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		if uniqueViolation(err, "slug") {
			return nil, ErrCategorySlugExists
		}
		return nil, fmt.Errorf("store: UpdateCategory failed to scan row: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("store: DeleteCategory failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteCategory failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// --- ProductStorer Implementation ---

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListProducts runs the filtered, ordered, paged product query. Rows that fail
// the product schema are dropped and logged; ProductPage.Fetched still counts them.
func (s *PostgresStore) ListProducts(ctx context.Context, q ProductQuery) (ProductPage, error) {
	var queryArgs []interface{}
	var whereClauses []string
	argID := 1

	if !q.AnyPrice {
		whereClauses = append(whereClauses, fmt.Sprintf("p.price >= $%d AND p.price <= $%d", argID, argID+1))
		queryArgs = append(queryArgs, q.MinPrice, q.MaxPrice)
		argID += 2
	}
	if q.CategoryID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("p.category_id = $%d", argID))
		queryArgs = append(queryArgs, *q.CategoryID)
		argID++
	}
	if q.NameContains != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("p.name ILIKE $%d", argID))
		queryArgs = append(queryArgs, "%"+likeEscaper.Replace(q.NameContains)+"%")
		argID++
	}
	if q.FeaturedOnly {
		whereClauses = append(whereClauses, "p.featured = TRUE")
	}
	if q.ExcludeID != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("p.id <> $%d", argID))
		queryArgs = append(queryArgs, q.ExcludeID)
		argID++
	}
	whereCondition := ""
	if len(whereClauses) > 0 {
		whereCondition = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	page := ProductPage{Items: []domain.ProductSummary{}}
	if q.WithCount {
		countQuery := "SELECT COUNT(*) FROM products p" + whereCondition
		if err := s.db.QueryRowContext(ctx, countQuery, queryArgs...).Scan(&page.Total); err != nil {
			return ProductPage{}, fmt.Errorf("store: ListProducts failed to count products: %w", err)
		}
		if page.Total == 0 {
			return page, nil
		}
	}

	sortColumn := SortByCreatedAt
	switch q.SortBy {
	case SortByPrice, SortByName, SortByCreatedAt:
		sortColumn = q.SortBy
	}
	sortOrder := "ASC"
	if q.Descending {
		sortOrder = "DESC"
	}

	dataQuery := fmt.Sprintf(
		"SELECT %s FROM products p LEFT JOIN categories c ON c.id = p.category_id%s ORDER BY p.%s %s LIMIT $%d OFFSET $%d",
		productColumns, whereCondition, sortColumn, sortOrder, argID, argID+1)
	finalQueryArgs := append(queryArgs, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, dataQuery, finalQueryArgs...)
	if err != nil {
		return ProductPage{}, fmt.Errorf("store: ListProducts failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec productRecord
		if err := rows.Scan(rec.summaryDest()...); err != nil {
			return ProductPage{}, fmt.Errorf("store: ListProducts failed to scan product row: %w", err)
		}
		page.Fetched++
		p, err := s.toSummary(rec)
		if err != nil {
			s.log.WithError(err).Warn("dropping product row")
			continue
		}
		page.Items = append(page.Items, p)
	}
	if err = rows.Err(); err != nil {
		return ProductPage{}, fmt.Errorf("store: ListProducts iteration error: %w", err)
	}
	return page, nil
}

func (s *PostgresStore) getProduct(ctx context.Context, where string, arg interface{}) (*domain.Product, error) {
	query := `SELECT ` + productDetailColumns + `
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE ` + where + `;`
	var rec productRecord
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(rec.detailDest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: get product failed to scan row: %w", err)
	}
	return s.toProduct(rec)
}

func (s *PostgresStore) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	return s.getProduct(ctx, "p.id = $1", id)
}

func (s *PostgresStore) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return s.getProduct(ctx, "p.slug = $1", slug)
}

func productCategoryID(p *domain.Product) sql.NullString {
	if p.Category == nil || p.Category.ID == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: p.Category.ID, Valid: true}
}

func (s *PostgresStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		INSERT INTO products
			(name, slug, description, price, original_price, image_urls, stock_status,
			 category_id, featured, returnable, meesho_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id;`
	var id string
	err := s.db.QueryRowContext(ctx, query,
		product.Name, product.Slug, nullString(product.Description), product.Price, product.OriginalPrice,
		pq.Array(product.ImageURLs), string(product.StockStatus), productCategoryID(product),
		product.Featured, product.Returnable, nullString(product.MeeshoLink),
	).Scan(&id)
	if err != nil {
		if uniqueViolation(err, "slug") {
			return nil, ErrProductSlugExists
		}
		if foreignKeyViolation(err) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("store: CreateProduct failed to scan row: %w", err)
	}
	return s.GetProductByID(ctx, id)
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		UPDATE products
		SET name = $1, slug = $2, description = $3, price = $4, original_price = $5, image_urls = $6,
			stock_status = $7, category_id = $8, featured = $9, returnable = $10, meesho_link = $11,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $12
		RETURNING id;`
	var id string
	err := s.db.QueryRowContext(ctx, query,
		product.Name, product.Slug, nullString(product.Description), product.Price, product.OriginalPrice,
		pq.Array(product.ImageURLs), string(product.StockStatus), productCategoryID(product),
		product.Featured, product.Returnable, nullString(product.MeeshoLink), product.ID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		if uniqueViolation(err, "slug") {
			return nil, ErrProductSlugExists
		}
		if foreignKeyViolation(err) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("store: UpdateProduct failed to scan row: %w", err)
	}
	return s.GetProductByID(ctx, id)
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (s *PostgresStore) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: CountProducts failed to query: %w", err)
	}
	return n, nil
}
