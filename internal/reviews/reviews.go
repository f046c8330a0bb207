// Package reviews lists and accepts customer product reviews.
package reviews

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront-service/internal/domain"
	"storefront-service/internal/store"
	"storefront-service/internal/validation"
)

var (
	ErrSignInRequired  = errors.New("reviews: sign in required")
	ErrAlreadyReviewed = errors.New("reviews: you have already reviewed this product")
)

// ValidationErrors maps an input field to what is wrong with it.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	return "reviews: invalid review: " + validation.Summary(v)
}

// Input is a review as submitted.
type Input struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Title   string `json:"title" validate:"max=100"`
	Comment string `json:"comment" validate:"min=1,max=1000"`
}

var inputMessages = map[string]string{
	"rating":      "Rating must be between 1 and 5",
	"title":       "Title must be less than 100 characters",
	"comment.min": "Please write a comment",
	"comment.max": "Comment must be less than 1000 characters",
}

// Summary is a product's reviews with their aggregate.
type Summary struct {
	Reviews []domain.Review `json:"reviews"`
	Count   int             `json:"count"`
	// Average is rounded to one decimal place; zero when there are no reviews.
	Average decimal.Decimal `json:"average"`
}

type Service struct {
	store    store.ReviewStorer
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewService(s store.ReviewStorer, log logrus.FieldLogger) *Service {
	return &Service{store: s, validate: validation.New(), log: log.WithField("component", "reviews")}
}

// List returns the product's reviews, newest first.
func (s *Service) List(ctx context.Context, productID string) (Summary, error) {
	reviews, err := s.store.ListReviews(ctx, productID)
	if err != nil {
		return Summary{}, pkgerrors.Wrap(err, "reviews: list")
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	sum := Summary{Reviews: reviews, Count: len(reviews), Average: decimal.Zero}
	if len(reviews) > 0 {
		total := 0
		for _, r := range reviews {
			total += r.Rating
		}
		sum.Average = decimal.NewFromInt(int64(total)).Div(decimal.NewFromInt(int64(len(reviews)))).Round(1)
	}
	return sum, nil
}

// Submit stores a review of productID by the user. A user reviews a product once.
func (s *Service) Submit(ctx context.Context, productID, userID, userName string, in Input) (*domain.Review, error) {
	if userID == "" {
		return nil, ErrSignInRequired
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Comment = strings.TrimSpace(in.Comment)
	if err := s.validate.Struct(in); err != nil {
		if fields := validation.FieldErrors(err, inputMessages); fields != nil {
			return nil, ValidationErrors(fields)
		}
		return nil, err
	}
	if userName == "" {
		userName = "Customer"
	}

	review := &domain.Review{
		ProductID: productID,
		UserID:    userID,
		UserName:  userName,
		Rating:    in.Rating,
		Comment:   in.Comment,
	}
	if in.Title != "" {
		review.Title = &in.Title
	}

	created, err := s.store.CreateReview(ctx, review)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrReviewExists):
			return nil, ErrAlreadyReviewed
		case errors.Is(err, store.ErrProductNotFound):
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, "reviews: submit")
	}
	return created, nil
}
