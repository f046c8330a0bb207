package store

import (
	"context"
	"fmt"
)

// --- WishlistStorer Implementation ---

func (s *PostgresStore) ListWishlist(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id FROM wishlists WHERE user_id = $1 ORDER BY created_at ASC;`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: ListWishlist failed to query wishlist: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: ListWishlist failed to scan row: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListWishlist iteration error: %w", err)
	}
	return ids, nil
}

// AddWishlistItem inserts the pair; an existing pair is left as is.
func (s *PostgresStore) AddWishlistItem(ctx context.Context, userID, productID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wishlists (user_id, product_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, product_id) DO NOTHING;`, userID, productID)
	if err != nil {
		if foreignKeyViolation(err) {
			return ErrProductNotFound
		}
		return fmt.Errorf("store: AddWishlistItem failed to insert: %w", err)
	}
	return nil
}

// RemoveWishlistItem deletes the pair; removing an absent pair is not an error.
func (s *PostgresStore) RemoveWishlistItem(ctx context.Context, userID, productID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM wishlists WHERE user_id = $1 AND product_id = $2;`, userID, productID)
	if err != nil {
		return fmt.Errorf("store: RemoveWishlistItem failed to delete: %w", err)
	}
	return nil
}
