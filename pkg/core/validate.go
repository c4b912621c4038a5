package core

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

var (
	// ErrValidation indicates bad input shape or a business-rule violation.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock indicates a line item exceeding available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTransition indicates a forbidden order status change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates missing or rejected credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPersistence indicates a store failure; the enclosing transaction was rolled back.
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError identifies which line item or field failed.
// Line is the zero-based line index, or -1 when the error is not tied to a line.
type ValidationError struct {
	Line      int
	ProductID int64
	Field     string
	Reason    string
	Err       error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Line >= 0 {
		fmt.Fprintf(&b, "line %d", e.Line+1)
		if e.ProductID != 0 {
			fmt.Fprintf(&b, " (product %d)", e.ProductID)
		}
		b.WriteString(": ")
	} else if e.Field != "" {
		b.WriteString(e.Field + ": ")
	}
	b.WriteString(e.Reason)
	return b.String()
}

// Unwrap exposes ErrValidation plus the specific cause.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil || e.Err == ErrValidation {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// Invalid builds a field-level ValidationError.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Line: -1, Field: field, Reason: fmt.Sprintf(format, args...), Err: ErrValidation}
}

// InvalidLine builds a ValidationError tied to one line item.
func InvalidLine(line int, productID int64, field, reason string) *ValidationError {
	return &ValidationError{Line: line, ProductID: productID, Field: field, Reason: reason, Err: ErrValidation}
}

// InsufficientStock builds the error for a line that asks for more than is available.
func InsufficientStock(line int, productID, requested, available int64) *ValidationError {
	return &ValidationError{
		Line:      line,
		ProductID: productID,
		Field:     "quantity",
		Reason:    fmt.Sprintf("insufficient stock: requested %d, available %d", requested, available),
		Err:       ErrInsufficientStock,
	}
}

// Normalize trims free text and applies defaults.
func (d *OrderDraft) Normalize() {
	d.WalkInName = strings.TrimSpace(d.WalkInName)
	d.WalkInPhone = strings.TrimSpace(d.WalkInPhone)
	d.Note = strings.TrimSpace(d.Note)
	if d.PaymentMethod == "" {
		d.PaymentMethod = PayCash
	} else if pm, err := ParsePaymentMethod(string(d.PaymentMethod)); err == nil {
		d.PaymentMethod = pm
	}
}

// ValidateDraft checks everything that can be checked without the store.
func ValidateDraft(d OrderDraft) error {
	switch {
	case d.CustomerID < 0:
		return Invalid("customerId", "must be positive")
	case d.CustomerID > 0 && d.WalkInName != "":
		return Invalid("customer", "give either a customer id or a walk-in name, not both")
	case d.CustomerID == 0 && d.WalkInName == "":
		return Invalid("customer", "a customer id or walk-in name is required")
	}
	if len(d.Items) == 0 {
		return Invalid("items", "an order needs at least one line item")
	}
	for i, it := range d.Items {
		if it.ProductID <= 0 {
			return InvalidLine(i, it.ProductID, "productId", "product id must be positive")
		}
		if it.Quantity <= 0 {
			return InvalidLine(i, it.ProductID, "quantity", "quantity must be greater than zero")
		}
		if it.UnitPrice.IsNegative() {
			return InvalidLine(i, it.ProductID, "unitPrice", "unit price must not be negative")
		}
	}
	if d.Discount.IsNegative() {
		return Invalid("discount", "must not be negative")
	}
	if sub := d.Subtotal(); d.Discount.GreaterThan(sub) {
		return Invalid("discount", "%s exceeds order total %s", d.Discount.StringFixed(2), sub.StringFixed(2))
	}
	if _, err := ParsePaymentMethod(string(d.PaymentMethod)); err != nil {
		return err
	}
	return nil
}

// ValidateProduct checks required product fields.
func ValidateProduct(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return Invalid("name", "is required")
	}
	if p.Price.IsNegative() {
		return Invalid("price", "must not be negative")
	}
	if p.CategoryID < 0 {
		return Invalid("categoryId", "must not be negative")
	}
	if p.Stock < 0 {
		return Invalid("quantity", "must not be negative")
	}
	switch p.Status {
	case "", ProductAvailable, ProductDiscontinued:
	default:
		return Invalid("status", "unknown product status %q", p.Status)
	}
	return nil
}

func ValidateCategory(c Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return Invalid("name", "is required")
	}
	return nil
}

func ValidateCustomer(c Customer) error {
	if strings.TrimSpace(c.FullName) == "" {
		return Invalid("fullName", "is required")
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return Invalid("email", "%q is not a valid address", c.Email)
		}
	}
	return nil
}

// ValidateUser checks a user; requirePassword is set on creation.
func ValidateUser(u User, requirePassword bool) error {
	if strings.TrimSpace(u.Username) == "" {
		return Invalid("username", "is required")
	}
	if requirePassword && u.Password == "" {
		return Invalid("password", "is required")
	}
	if _, err := ParseRole(string(u.Role)); err != nil {
		return err
	}
	switch u.Status {
	case UserActive, UserInactive:
	default:
		return Invalid("status", "unknown user status %q", u.Status)
	}
	if u.Email != "" {
		if _, err := mail.ParseAddress(u.Email); err != nil {
			return Invalid("email", "%q is not a valid address", u.Email)
		}
	}
	return nil
}

// ValidateAdjustment checks a manual stock movement before it reaches the store.
func ValidateAdjustment(productID, quantity int64, dir Direction) error {
	if productID <= 0 {
		return Invalid("productId", "must be positive")
	}
	if quantity <= 0 {
		return Invalid("quantity", "must be greater than zero")
	}
	if _, err := ParseDirection(string(dir)); err != nil {
		return err
	}
	return nil
}
