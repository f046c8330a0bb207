// Package checkout places cash-on-delivery orders from a cart.
package checkout

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"storefront-service/internal/cart"
	"storefront-service/internal/domain"
	"storefront-service/internal/validation"
)

var (
	ErrSignInRequired = errors.New("checkout: sign in required")
	ErrEmptyCart      = errors.New("checkout: cart is empty")
)

// ValidationErrors maps an address field to what is wrong with it.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	return "checkout: invalid address: " + validation.Summary(v)
}

// IndianStates lists the accepted values of the state field.
var IndianStates = []string{
	"Andhra Pradesh", "Arunachal Pradesh", "Assam", "Bihar", "Chhattisgarh", "Goa", "Gujarat",
	"Haryana", "Himachal Pradesh", "Jharkhand", "Karnataka", "Kerala", "Madhya Pradesh",
	"Maharashtra", "Manipur", "Meghalaya", "Mizoram", "Nagaland", "Odisha", "Punjab", "Rajasthan",
	"Sikkim", "Tamil Nadu", "Telangana", "Tripura", "Uttar Pradesh", "Uttarakhand", "West Bengal",
	// union territories
	"Andaman and Nicobar Islands", "Chandigarh", "Dadra and Nagar Haveli and Daman and Diu",
	"Delhi", "Jammu and Kashmir", "Ladakh", "Lakshadweep", "Puducherry",
}

var (
	mobilePattern  = regexp.MustCompile(`^[6-9]\d{9}$`)
	pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)
)

type addressForm struct {
	FullName string `json:"fullName" validate:"min=2,max=100,alphaspace"`
	Phone    string `json:"phone" validate:"mobile"`
	Address  string `json:"address" validate:"min=10,max=500"`
	City     string `json:"city" validate:"min=2,max=50,alphaspace"`
	State    string `json:"state" validate:"required,indianstate"`
	Pincode  string `json:"pincode" validate:"pincode"`
}

var addressMessages = map[string]string{
	"fullName.min":        "Full name must be at least 2 characters",
	"fullName.max":        "Full name must be less than 100 characters",
	"fullName.alphaspace": "Full name can only contain letters and spaces",
	"phone":               "Enter a valid 10-digit Indian mobile number",
	"address.min":         "Address must be at least 10 characters",
	"address.max":         "Address must be less than 500 characters",
	"city.min":            "City must be at least 2 characters",
	"city.max":            "City must be less than 50 characters",
	"city.alphaspace":     "City can only contain letters",
	"state.required":      "Please select a state",
	"state.indianstate":   "Please select a valid state",
	"pincode":             "Enter a valid 6-digit pincode",
}

func newValidator() *validator.Validate {
	v := validation.New()
	states := make(map[string]struct{}, len(IndianStates))
	for _, s := range IndianStates {
		states[s] = struct{}{}
	}
	_ = v.RegisterValidation("indianstate", func(fl validator.FieldLevel) bool {
		_, ok := states[fl.Field().String()]
		return ok
	})
	_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("pincode", func(fl validator.FieldLevel) bool {
		return pincodePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateAddress trims the address and checks every field. It returns the
// trimmed address and, when invalid, ValidationErrors.
func ValidateAddress(v *validator.Validate, a domain.ShippingAddress) (domain.ShippingAddress, error) {
	a = domain.ShippingAddress{
		FullName: strings.TrimSpace(a.FullName),
		Phone:    strings.TrimSpace(a.Phone),
		Address:  strings.TrimSpace(a.Address),
		City:     strings.TrimSpace(a.City),
		State:    a.State,
		Pincode:  strings.TrimSpace(a.Pincode),
	}
	err := v.Struct(addressForm(a))
	if err == nil {
		return a, nil
	}
	if fields := validation.FieldErrors(err, addressMessages); fields != nil {
		return a, ValidationErrors(fields)
	}
	return a, err
}

// OrderWriter is the part of the order store checkout writes to.
type OrderWriter interface {
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error
}

type Service struct {
	orders   OrderWriter
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewService(orders OrderWriter, log logrus.FieldLogger) *Service {
	return &Service{
		orders:   orders,
		validate: newValidator(),
		log:      log.WithField("component", "checkout"),
	}
}

// PlaceOrder turns the cart into a confirmed cash-on-delivery order and
// clears the cart. The cart is left untouched if any step fails.
func (s *Service) PlaceOrder(ctx context.Context, userID string, c *cart.Store, address domain.ShippingAddress) (*domain.Order, error) {
	if userID == "" {
		return nil, ErrSignInRequired
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	address, err := ValidateAddress(s.validate, address)
	if err != nil {
		return nil, err
	}
	snapshot := c.Snapshot()
	if len(snapshot.Items) == 0 {
		// emptied by a concurrent request
		return nil, ErrEmptyCart
	}

	order := &domain.Order{
		UserID:          userID,
		TotalAmount:     snapshot.TotalPrice,
		PaymentStatus:   domain.PaymentPending,
		OrderStatus:     domain.OrderPending,
		ShippingAddress: address,
		Items:           make([]domain.OrderItem, 0, len(snapshot.Items)),
	}
	for _, it := range snapshot.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.Name,
			Quantity:    it.Quantity,
			Price:       it.UnitPrice,
		})
	}

	created, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "checkout: create order")
	}
	if err := s.orders.UpdateOrderStatus(ctx, created.ID, domain.OrderConfirmed); err != nil {
		return nil, pkgerrors.Wrapf(err, "checkout: confirm order %s", created.Number())
	}
	created.OrderStatus = domain.OrderConfirmed

	c.Clear()
	s.log.WithFields(logrus.Fields{
		"order":   created.Number(),
		"user_id": userID,
		"total":   created.TotalAmount.StringFixed(2),
		"items":   len(created.Items),
	}).Info("order placed")
	return created, nil
}
