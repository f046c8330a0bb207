// Package orders serves order history and tracking to customers and the
// fulfilment workflow to the back office.
package orders

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"storefront-service/internal/domain"
	"storefront-service/internal/store"
)

var (
	ErrInvalidStatus       = errors.New("orders: unknown order status")
	ErrNotReturnable       = errors.New("orders: only delivered orders can be returned")
	ErrInvalidReturnStatus = errors.New("orders: unknown return status")
	ErrInvalidReason       = errors.New("orders: reason must be 10 to 500 characters")
)

type Service struct {
	store store.OrderStorer
	log   logrus.FieldLogger
}

func NewService(s store.OrderStorer, log logrus.FieldLogger) *Service {
	return &Service{store: s, log: log.WithField("component", "orders")}
}

// ListForUser returns the user's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.store.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "orders: list for user")
	}
	return orders, nil
}

// Get returns the order if userID owns it or asAdmin is set. Other users get
// store.ErrOrderNotFound.
func (s *Service) Get(ctx context.Context, id, userID string, asAdmin bool) (*domain.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, "orders: get")
	}
	if !asAdmin && o.UserID != userID {
		return nil, store.ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) ListAll(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "orders: list all")
	}
	return orders, nil
}

// RecentLimit is how many of the newest orders the overview lists.
const RecentLimit = 5

// ProductCounter counts the products in the catalog.
type ProductCounter interface {
	CountProducts(ctx context.Context) (int, error)
}

// Overview is the back office dashboard.
type Overview struct {
	domain.OrderStats
	TotalProducts int            `json:"total_products"`
	RecentOrders  []domain.Order `json:"recent_orders"`
}

// Overview gathers the dashboard figures.
func (s *Service) Overview(ctx context.Context, products ProductCounter) (Overview, error) {
	stats, err := s.store.OrderStats(ctx)
	if err != nil {
		return Overview{}, pkgerrors.Wrap(err, "orders: stats")
	}
	count, err := products.CountProducts(ctx)
	if err != nil {
		return Overview{}, pkgerrors.Wrap(err, "orders: count products")
	}
	recent, err := s.store.ListRecentOrders(ctx, RecentLimit)
	if err != nil {
		return Overview{}, pkgerrors.Wrap(err, "orders: recent")
	}
	if recent == nil {
		recent = []domain.Order{}
	}
	return Overview{OrderStats: stats, TotalProducts: count, RecentOrders: recent}, nil
}

// UpdateStatus sets the order status. Any of the known statuses may be chosen,
// so a mistaken delivery can be corrected.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return err
		}
		return pkgerrors.Wrap(err, "orders: load for status update")
	}
	if o.OrderStatus == status {
		return nil
	}
	if err := s.store.UpdateOrderStatus(ctx, id, status); err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return err
		}
		return pkgerrors.Wrap(err, "orders: update status")
	}
	s.log.WithFields(logrus.Fields{
		"order": o.Number(),
		"from":  o.OrderStatus,
		"to":    status,
	}).Info("order status changed")
	return nil
}

// RequestReturn files a return for one of the user's delivered orders.
func (s *Service) RequestReturn(ctx context.Context, orderID, userID, reason string) (*domain.ReturnRequest, error) {
	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n < 10 || n > 500 {
		return nil, ErrInvalidReason
	}
	o, err := s.Get(ctx, orderID, userID, false)
	if err != nil {
		return nil, err
	}
	if o.OrderStatus != domain.OrderDelivered {
		return nil, ErrNotReturnable
	}
	r, err := s.store.CreateReturnRequest(ctx, &domain.ReturnRequest{
		OrderID: orderID,
		UserID:  userID,
		Reason:  reason,
		Status:  domain.ReturnPending,
	})
	if err != nil {
		if errors.Is(err, store.ErrReturnExists) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, "orders: request return")
	}
	return r, nil
}

// ListReturns returns every return request, newest first.
func (s *Service) ListReturns(ctx context.Context) ([]domain.ReturnRequest, error) {
	returns, err := s.store.ListReturnRequests(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "orders: list returns")
	}
	return returns, nil
}

func (s *Service) UpdateReturnStatus(ctx context.Context, id string, status domain.ReturnStatus) error {
	if !status.Valid() {
		return ErrInvalidReturnStatus
	}
	if err := s.store.UpdateReturnStatus(ctx, id, status); err != nil {
		if errors.Is(err, store.ErrReturnNotFound) {
			return err
		}
		return pkgerrors.Wrap(err, "orders: update return status")
	}
	return nil
}
