package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateDraft(t *testing.T) {
	t.Run("valid walk-in draft", func(t *testing.T) {
		d := newTestDraft()
		d.Normalize()
		if err := ValidateDraft(d); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
		if d.PaymentMethod != PayCash {
			t.Fatalf("expected default CASH, got %s", d.PaymentMethod)
		}
	})

	t.Run("no line items", func(t *testing.T) {
		d := newTestDraft()
		d.Items = nil
		if err := ValidateDraft(d); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("zero quantity names the line", func(t *testing.T) {
		d := newTestDraft()
		d.Items[1].Quantity = 0
		err := ValidateDraft(d)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected *ValidationError, got %v", err)
		}
		if ve.Line != 1 || ve.ProductID != 2 || ve.Field != "quantity" {
			t.Fatalf("unexpected error detail %+v", ve)
		}
		if !strings.Contains(err.Error(), "line 2") {
			t.Fatalf("expected message to name line 2, got %q", err)
		}
	})

	t.Run("discount above total", func(t *testing.T) {
		d := newTestDraft()
		d.Discount = decimal.RequireFromString("1000")
		if err := ValidateDraft(d); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("negative discount", func(t *testing.T) {
		d := newTestDraft()
		d.Discount = decimal.RequireFromString("-1")
		if err := ValidateDraft(d); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("missing customer", func(t *testing.T) {
		d := newTestDraft()
		d.WalkInName = ""
		if err := ValidateDraft(d); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("both customer forms", func(t *testing.T) {
		d := newTestDraft()
		d.CustomerID = 3
		if err := ValidateDraft(d); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("unknown payment method", func(t *testing.T) {
		d := newTestDraft()
		d.PaymentMethod = "BARTER"
		if err := ValidateDraft(d); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})
}

func TestDraftTotals(t *testing.T) {
	d := newTestDraft()
	if got := d.Items[0].LineTotal(); !got.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("line total: got %s", got)
	}
	if got := d.Subtotal(); !got.Equal(decimal.RequireFromString("25.99")) {
		t.Fatalf("subtotal: got %s", got)
	}
}

func TestInsufficientStockIsValidation(t *testing.T) {
	err := error(InsufficientStock(0, 9, 2, 1))
	if !errors.Is(err, ErrInsufficientStock) || !errors.Is(err, ErrValidation) {
		t.Fatalf("expected both sentinels, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("unexpected ErrNotFound")
	}
}

func TestTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		wantErr  error
	}{
		{OrderPending, OrderCompleted, nil},
		{OrderPending, OrderCancelled, nil},
		{OrderPending, OrderPending, nil},
		{OrderCompleted, OrderCompleted, nil},
		{OrderCompleted, OrderCancelled, ErrInvalidTransition},
		{OrderCompleted, OrderPending, ErrInvalidTransition},
		{OrderCancelled, OrderCompleted, ErrInvalidTransition},
		{OrderCancelled, OrderPending, ErrInvalidTransition},
		{OrderPending, "SHIPPED", ErrValidation},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			err := Transition(tc.from, tc.to)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
	if !Restocks(OrderPending, OrderCancelled) || Restocks(OrderPending, OrderCompleted) {
		t.Fatal("only PENDING -> CANCELLED restocks")
	}
}

func TestParsers(t *testing.T) {
	if pm, err := ParsePaymentMethod(" card "); err != nil || pm != PayCard {
		t.Fatalf("payment method: %v %v", pm, err)
	}
	if d, err := ParseDirection("out"); err != nil || d != StockOut {
		t.Fatalf("direction: %v %v", d, err)
	}
	if _, err := ParseDirection("SIDEWAYS"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := ParseRole("owner"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if st, err := ParseOrderStatus("completed"); err != nil || st != OrderCompleted {
		t.Fatalf("order status: %v %v", st, err)
	}
}

func TestValidateEntities(t *testing.T) {
	if err := ValidateProduct(Product{Name: "Helmet", Price: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("product: %v", err)
	}
	if err := ValidateProduct(Product{Name: " "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank name, got %v", err)
	}
	if err := ValidateCustomer(Customer{FullName: "Tran B", Email: "not-an-email"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for bad email, got %v", err)
	}
	u := User{Username: "staff1", Password: "pw", Role: RoleStaff, Status: UserActive}
	if err := ValidateUser(u, true); err != nil {
		t.Fatalf("user: %v", err)
	}
	u.Password = ""
	if err := ValidateUser(u, true); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing password, got %v", err)
	}
	if err := ValidateAdjustment(1, 0, StockIn); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for zero quantity, got %v", err)
	}
}

func TestNewOrderCodeUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code := NewOrderCode()
		if !strings.HasPrefix(code, OrderCodePrefix) {
			t.Fatalf("missing prefix: %s", code)
		}
		if seen[code] {
			t.Fatalf("duplicate code %s", code)
		}
		seen[code] = true
	}
}

func newTestDraft() OrderDraft {
	return OrderDraft{
		WalkInName:  " Le Van C ",
		WalkInPhone: "0901234567",
		Items: []LineItem{
			{ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("12.50")},
			{ProductID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("0.99")},
		},
	}
}
