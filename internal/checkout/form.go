package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Form is what the buyer enters on the checkout page.
type Form struct {
	Email      string `json:"email" validate:"required,email"`
	FullName   string `json:"full_name" validate:"required,min=2"`
	Address    string `json:"address" validate:"required,min=5"`
	City       string `json:"city" validate:"required,min=2"`
	PostalCode string `json:"postal_code" validate:"required,min=3"`
	Country    string `json:"country" validate:"required,min=2"`
	CardNumber string `json:"card_number" validate:"required,card_number"`
	ExpiryDate string `json:"expiry_date" validate:"required,expiry_date"`
	CVV        string `json:"cvv" validate:"required,cvv"`
	CardName   string `json:"card_name" validate:"required,min=2"`
}

// CardLast4 returns the last four digits of the card number.
func (f Form) CardLast4() string {
	digits := strings.ReplaceAll(f.CardNumber, " ", "")
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

var fieldMessages = map[string]string{
	"email":       "Invalid email address",
	"full_name":   "Full name is required",
	"address":     "Address is required",
	"city":        "City is required",
	"postal_code": "Postal code is required",
	"country":     "Country is required",
	"card_number": "Card number must be 16 digits",
	"expiry_date": "Invalid expiry date (MM/YY)",
	"cvv":         "CVV must be 3 digits",
	"card_name":   "Cardholder name is required",
}

// ValidationError lists every field that failed, keyed by its JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("invalid checkout form: %s", strings.Join(names, ", "))
}

var (
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	validate      = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "card_number", func(fl validator.FieldLevel) bool {
		return digitsOnly(strings.ReplaceAll(fl.Field().String(), " ", ""), 16)
	})
	mustRegister(v, "expiry_date", func(fl validator.FieldLevel) bool {
		return expiryPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "cvv", func(fl validator.FieldLevel) bool {
		return digitsOnly(fl.Field().String(), 3)
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func digitsOnly(s string, min int) bool {
	if len(s) < min {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Validate checks the form and returns a *ValidationError naming every
// offending field, or nil.
func (f Form) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		msg, ok := fieldMessages[fe.Field()]
		if !ok {
			msg = fmt.Sprintf("failed %s", fe.Tag())
		}
		out.Fields[fe.Field()] = msg
	}
	return out
}
