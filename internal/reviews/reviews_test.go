package reviews

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/domain"
	"storefront-service/internal/logging"
	"storefront-service/internal/store"
)

type MockReviewStorer struct {
	mock.Mock
}

func (m *MockReviewStorer) ListReviews(ctx context.Context, productID string) ([]domain.Review, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *MockReviewStorer) CreateReview(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	args := m.Called(ctx, review)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func TestList_Average(t *testing.T) {
	st := new(MockReviewStorer)
	svc := NewService(st, logging.Discard())
	st.On("ListReviews", mock.Anything, "p1").Return([]domain.Review{{Rating: 5}, {Rating: 4}, {Rating: 4}}, nil).Once()
	st.On("ListReviews", mock.Anything, "p2").Return([]domain.Review{}, nil).Once()

	sum, err := svc.List(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Count)
	assert.True(t, decimal.RequireFromString("4.3").Equal(sum.Average), "got %s", sum.Average)

	sum, err = svc.List(context.Background(), "p2")
	require.NoError(t, err)
	assert.True(t, sum.Average.IsZero())
}

func TestSubmit(t *testing.T) {
	st := new(MockReviewStorer)
	svc := NewService(st, logging.Discard())
	st.On("CreateReview", mock.Anything, mock.MatchedBy(func(r *domain.Review) bool {
		return r.ProductID == "p1" && r.UserID == "u1" && r.Rating == 5 && r.Title == nil && r.Comment == "Beautiful finish"
	})).Return(&domain.Review{ID: "rv1"}, nil).Once()

	r, err := svc.Submit(context.Background(), "p1", "u1", "Asha", Input{Rating: 5, Comment: " Beautiful finish "})

	require.NoError(t, err)
	assert.Equal(t, "rv1", r.ID)
	st.AssertExpectations(t)
}

func TestSubmit_Validation(t *testing.T) {
	svc := NewService(new(MockReviewStorer), logging.Discard())

	tests := []struct {
		in    Input
		field string
	}{
		{Input{Rating: 0, Comment: "ok"}, "rating"},
		{Input{Rating: 6, Comment: "ok"}, "rating"},
		{Input{Rating: 3, Comment: "   "}, "comment"},
		{Input{Rating: 3, Comment: strings.Repeat("x", 1001)}, "comment"},
		{Input{Rating: 3, Comment: "ok", Title: strings.Repeat("t", 101)}, "title"},
	}
	for _, tt := range tests {
		_, err := svc.Submit(context.Background(), "p1", "u1", "Asha", tt.in)
		var verrs ValidationErrors
		require.True(t, errors.As(err, &verrs), "input %+v", tt.in)
		assert.Contains(t, verrs, tt.field)
	}

	_, err := svc.Submit(context.Background(), "p1", "", "", Input{Rating: 3, Comment: "ok"})
	assert.ErrorIs(t, err, ErrSignInRequired)
}

func TestSubmit_Duplicate(t *testing.T) {
	st := new(MockReviewStorer)
	svc := NewService(st, logging.Discard())
	st.On("CreateReview", mock.Anything, mock.Anything).Return(nil, store.ErrReviewExists).Once()

	_, err := svc.Submit(context.Background(), "p1", "u1", "Asha", Input{Rating: 4, Comment: "Again"})

	assert.ErrorIs(t, err, ErrAlreadyReviewed)
}
