// Package validation configures the go-playground validator shared by the
// storefront packages.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	alphaSpace = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	upperAlnum = regexp.MustCompile(`^[A-Z0-9]+$`)
)

// New returns a validator that understands decimal.Decimal fields (compared
// as float64, so `gte=0` works on prices) plus the tags:
//
//	alphaspace  letters and whitespace only
//	upperalnum  A-Z and 0-9 only
func New() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{}, decimal.NullDecimal{})
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("alphaspace", func(fl validator.FieldLevel) bool {
		return alphaSpace.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("upperalnum", func(fl validator.FieldLevel) bool {
		return upperAlnum.MatchString(fl.Field().String())
	})
	return v
}

func decimalValue(field reflect.Value) interface{} {
	switch d := field.Interface().(type) {
	case decimal.Decimal:
		f, _ := d.Float64()
		return f
	case decimal.NullDecimal:
		if !d.Valid {
			return nil
		}
		f, _ := d.Decimal.Float64()
		return f
	}
	return nil
}

// jsonName makes FieldError.Field() report the json name of a field.
func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// FieldErrors flattens a validator error into field -> message using the
// messages table, keyed by "field.tag" or just "field". Fields without an
// entry get a generic message. Errors that are not validation errors yield nil.
func FieldErrors(err error, messages map[string]string) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out[field]; seen {
			continue
		}
		if msg, ok := messages[field+"."+fe.Tag()]; ok {
			out[field] = msg
		} else if msg, ok := messages[field]; ok {
			out[field] = msg
		} else {
			out[field] = field + " is invalid"
		}
	}
	return out
}

// Summary renders field errors as a stable "field: message; ..." string.
func Summary(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}
	return strings.Join(parts, "; ")
}
