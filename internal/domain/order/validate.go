package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// Sentinel errors for field validation.
var (
	ErrInvalidQuantity      = errors.New("quantity must be a positive integer")
	ErrMissingPaymentMethod = errors.New("payment method required")
	// ErrQuantityExceedsStock matches any *QuantityExceedsStockError.
	ErrQuantityExceedsStock = errors.New("quantity exceeds stock")
)

// QuantityExceedsStockError indicates a quantity above the captured stock.
type QuantityExceedsStockError struct {
	Requested int
	Max       int
}

func (e *QuantityExceedsStockError) Error() string {
	return fmt.Sprintf("quantity %d exceeds available stock %d", e.Requested, e.Max)
}

func (e *QuantityExceedsStockError) Is(target error) bool {
	return target == ErrQuantityExceedsStock
}

// ValidationErrors collects field-local failures. Quantity and Payment are
// independent; both may be set at once.
type ValidationErrors struct {
	Quantity error
	Payment  error
}

func (v *ValidationErrors) Error() string {
	var parts []string
	if v.Quantity != nil {
		parts = append(parts, "quantity: "+v.Quantity.Error())
	}
	if v.Payment != nil {
		parts = append(parts, "payment: "+v.Payment.Error())
	}
	return "invalid order: " + strings.Join(parts, "; ")
}

// Empty reports whether no field failed.
func (v *ValidationErrors) Empty() bool {
	return v.Quantity == nil && v.Payment == nil
}

// PaymentMethods is the set of accepted payment method labels.
type PaymentMethods []string

// Contains reports whether method is one of the accepted labels.
func (m PaymentMethods) Contains(method string) bool {
	for _, v := range m {
		if v == method {
			return true
		}
	}
	return false
}

// Validate checks a submission against the session. It returns the parsed
// quantity, or a *ValidationErrors listing every failing field.
func (s Session) Validate(quantityInput, paymentMethod string, methods PaymentMethods) (int, error) {
	verr := &ValidationErrors{}

	q, err := ParseQuantity(quantityInput)
	switch {
	case err != nil:
		verr.Quantity = ErrInvalidQuantity
	case q > s.Stock:
		verr.Quantity = &QuantityExceedsStockError{Requested: q, Max: s.Stock}
	}

	if paymentMethod == "" || !methods.Contains(paymentMethod) {
		verr.Payment = ErrMissingPaymentMethod
	}

	if !verr.Empty() {
		return 0, verr
	}
	return q, nil
}
