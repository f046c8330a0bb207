// Package settings reads and updates site-wide storefront settings.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"storefront-service/internal/domain"
	"storefront-service/internal/store"
	"storefront-service/internal/validation"
)

// CouponKey is the site_settings key of the coupon banner.
const CouponKey = "coupon"

// ValidationErrors maps a settings field to what is wrong with it.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	return "settings: invalid coupon: " + validation.Summary(v)
}

type couponForm struct {
	Enabled      bool   `json:"enabled"`
	Code         string `json:"code" validate:"omitempty,max=30,upperalnum"`
	DiscountText string `json:"discount_text" validate:"max=100"`
}

var couponMessages = map[string]string{
		"code.max":         "Coupon code must be at most 30 characters",
	"code.upperalnum":  "Coupon code may only contain A-Z and 0-9",
	"discount_text":    "Discount text must be at most 100 characters",
}

type Service struct {
	store    store.SettingsStorer
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewService(s store.SettingsStorer, log logrus.FieldLogger) *Service {
	return &Service{store: s, validate: validation.New(), log: log.WithField("component", "settings")}
}

// Coupon returns the coupon settings; a missing row reads as disabled.
func (s *Service) Coupon(ctx context.Context) (domain.CouponSettings, error) {
	raw, err := s.store.GetSetting(ctx, CouponKey)
	if err != nil {
		if errors.Is(err, store.ErrSettingNotFound) {
			return domain.CouponSettings{}, nil
		}
		return domain.CouponSettings{}, pkgerrors.Wrap(err, "settings: get coupon")
	}
	var c domain.CouponSettings
	if err := json.Unmarshal(raw, &c); err != nil {
		s.log.WithError(err).Warn("malformed coupon setting, treating as disabled")
		return domain.CouponSettings{}, nil
	}
	return c, nil
}

// UpdateCoupon validates and stores c. The code is upper-cased first.
func (s *Service) UpdateCoupon(ctx context.Context, c domain.CouponSettings) (domain.CouponSettings, error) {
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	c.DiscountText = strings.TrimSpace(c.DiscountText)
	fields := ValidationErrors{}
	if err := s.validate.Struct(couponForm(c)); err != nil {
		found := validation.FieldErrors(err, couponMessages)
		if found == nil {
			return domain.CouponSettings{}, err
		}
		for k, v := range found {
			fields[k] = v
		}
	}
	if c.Enabled && c.Code == "" {
		fields["code"] = "A coupon code is required when the banner is enabled"
	}
	if len(fields) > 0 {
		return domain.CouponSettings{}, fields
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return domain.CouponSettings{}, pkgerrors.Wrap(err, "settings: encode coupon")
	}
	if err := s.store.PutSetting(ctx, CouponKey, raw); err != nil {
		return domain.CouponSettings{}, pkgerrors.Wrap(err, "settings: save coupon")
	}
	s.log.WithFields(logrus.Fields{"enabled": c.Enabled, "code": c.Code}).Info("coupon settings updated")
	return c, nil
}
