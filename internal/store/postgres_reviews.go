package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-service/internal/domain"
)

// --- ReviewStorer Implementation ---

const reviewColumns = `id, product_id, user_id, user_name, rating, title, comment, created_at`

func scanReview(row scanner) (domain.Review, error) {
	var (
		r     domain.Review
		title sql.NullString
	)
	if err := row.Scan(&r.ID, &r.ProductID, &r.UserID, &r.UserName, &r.Rating, &title, &r.Comment, &r.CreatedAt); err != nil {
		return domain.Review{}, err
	}
	r.Title = stringPtr(title)
	return r, nil
}

func (s *PostgresStore) ListReviews(ctx context.Context, productID string) ([]domain.Review, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE product_id = $1 ORDER BY created_at DESC;`, productID)
	if err != nil {
		return nil, fmt.Errorf("store: ListReviews failed to query: %w", err)
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("store: ListReviews failed to scan row: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListReviews iteration error: %w", err)
	}
	return reviews, nil
}

func (s *PostgresStore) CreateReview(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	r, err := scanReview(s.db.QueryRowContext(ctx, `
		INSERT INTO reviews (product_id, user_id, user_name, rating, title, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+reviewColumns+`;`,
		review.ProductID, review.UserID, review.UserName, review.Rating, nullString(review.Title), review.Comment))
	if err != nil {
		if uniqueViolation(err, "") {
			return nil, ErrReviewExists
		}
		if foreignKeyViolation(err) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: CreateReview failed to scan row: %w", err)
	}
	return &r, nil
}
