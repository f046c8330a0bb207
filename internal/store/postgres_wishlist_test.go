package store

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/domain"
)

func TestPostgresStore_ListWishlist(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT product_id FROM wishlists WHERE user_id = $1`)).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"product_id"}).AddRow(shirtID).AddRow(kurtaID))

	ids, err := store.ListWishlist(context.Background(), userID)

	require.NoError(t, err)
	assert.Equal(t, []string{shirtID, kurtaID}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddWishlistItem(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	query := regexp.QuoteMeta(`ON CONFLICT (user_id, product_id) DO NOTHING;`)

	// An existing pair inserts nothing and is still a success.
	mock.ExpectExec(query).WithArgs(userID, shirtID).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.AddWishlistItem(context.Background(), userID, shirtID))

	mock.ExpectExec(query).WithArgs(userID, "gone").WillReturnError(&pq.Error{Code: "23503"})
	err := store.AddWishlistItem(context.Background(), userID, "gone")
	assert.True(t, errors.Is(err, ErrProductNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RemoveWishlistItem_Absent(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM wishlists WHERE user_id = $1 AND product_id = $2;`)).
		WithArgs(userID, shirtID).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.RemoveWishlistItem(context.Background(), userID, shirtID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Reviews(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	cols := []string{"id", "product_id", "user_id", "user_name", "rating", "title", "comment", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM reviews WHERE product_id = $1 ORDER BY created_at DESC;`)).WithArgs(shirtID).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("rv1", shirtID, userID, "Asha", 5, "Lovely", "Great fabric", now).
			AddRow("rv2", shirtID, "u2", "Ravi", 3, nil, "Runs small", now))

	reviews, err := store.ListReviews(context.Background(), shirtID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, PtrTo("Lovely"), reviews[0].Title)
	assert.Nil(t, reviews[1].Title)

	insert := regexp.QuoteMeta(`INSERT INTO reviews (product_id, user_id, user_name, rating, title, comment)`)
	review := &domain.Review{ProductID: shirtID, UserID: userID, UserName: "Asha", Rating: 4, Comment: "Nice"}

	mock.ExpectQuery(insert).WithArgs(shirtID, userID, "Asha", 4, nil, "Nice").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("rv3", shirtID, userID, "Asha", 4, nil, "Nice", now))
	created, err := store.CreateReview(context.Background(), review)
	require.NoError(t, err)
	assert.Equal(t, "rv3", created.ID)

	mock.ExpectQuery(insert).WillReturnError(&pq.Error{Code: "23505", Constraint: "reviews_product_id_user_id_key"})
	_, err = store.CreateReview(context.Background(), review)
	assert.True(t, errors.Is(err, ErrReviewExists))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Settings(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	get := regexp.QuoteMeta(`SELECT value FROM site_settings WHERE key = $1;`)

	mock.ExpectQuery(get).WithArgs("coupon").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"enabled":true}`)))
	value, err := store.GetSetting(context.Background(), "coupon")
	require.NoError(t, err)
	assert.JSONEq(t, `{"enabled":true}`, string(value))

	mock.ExpectQuery(get).WithArgs("banner").WillReturnRows(sqlmock.NewRows([]string{"value"}))
	_, err = store.GetSetting(context.Background(), "banner")
	assert.True(t, errors.Is(err, ErrSettingNotFound))

	payload := json.RawMessage(`{"enabled":false,"code":"","discount_text":""}`)
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`)).
		WithArgs("coupon", []byte(payload)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.PutSetting(context.Background(), "coupon", payload))

	require.NoError(t, mock.ExpectationsWereMet())
}
