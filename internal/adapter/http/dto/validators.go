package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"
	"time"

	"ride-ledger/internal/core/domain"
	"ride-ledger/pkg/apperror"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
		_ = v.RegisterValidation("safe_id", validateSafeID)
		_ = v.RegisterValidation("money", validateMoney)
	}
}

// decimalValue lets tags see a decimal as its canonical string.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeStringRe.MatchString(fl.Field().String())
}

// validateMoney accepts positive amounts with at most two decimal places.
func validateMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return d.IsPositive() && d.Equal(domain.RoundMoney(d))
}

// ParseDay parses a YYYY-MM-DD query or body value as a UTC day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return time.Time{}, apperror.Validation("date must be YYYY-MM-DD")
	}
	return t, nil
}

// AccountDetails decodes method-specific account details from a request body.
func AccountDetails(method string, raw []byte) (domain.AccountDetails, error) {
	if len(raw) == 0 {
		return nil, apperror.Validation("account_details is required")
	}
	d, err := domain.DecodeAccountDetails(domain.WithdrawalMethodType(method), raw)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if err := d.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	return d, nil
}

// SanitizeStruct trims and HTML-escapes the free-text string fields of a
// struct pointer. Notes and reasons end up in operator tooling.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	rv = rv.Elem()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if f.Kind() == reflect.String && f.CanSet() {
			f.SetString(html.EscapeString(strings.TrimSpace(f.String())))
		}
	}
}
