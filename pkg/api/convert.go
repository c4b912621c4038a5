package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rexliu/motoshop/pkg/core"
	"github.com/rexliu/motoshop/pkg/ipc"
	"github.com/rexliu/motoshop/pkg/session"
)

// fields reads a payload and keeps the first error, so a decoder can read
// every field and check once.
type fields struct {
	p   *ipc.Payload
	err error
}

func (f *fields) text(key string) string {
	if f.err != nil {
		return ""
	}
	s, err := f.p.OptText(key)
	f.err = err
	return s
}

func (f *fields) mustText(key string) string {
	if f.err != nil {
		return ""
	}
	s, err := f.p.Text(key)
	f.err = err
	return s
}

func (f *fields) int64(key string) int64 {
	if f.err != nil {
		return 0
	}
	n, err := f.p.OptInt64(key)
	f.err = err
	return n
}

func (f *fields) mustInt64(key string) int64 {
	if f.err != nil {
		return 0
	}
	n, err := f.p.Int64(key)
	f.err = err
	return n
}

func (f *fields) money(key string) decimal.Decimal {
	if f.err != nil {
		return decimal.Zero
	}
	d, err := f.p.OptDecimal(key)
	f.err = err
	return d
}

func (f *fields) time(key string) time.Time {
	if f.err != nil {
		return time.Time{}
	}
	if v, ok := f.p.Get(key); !ok || v.IsNull() {
		return time.Time{}
	}
	t, err := f.p.Time(key)
	f.err = err
	return t
}

func (f *fields) list(key string) []ipc.Value {
	if f.err != nil {
		return nil
	}
	l, err := f.p.List(key)
	f.err = err
	return l
}

func (f *fields) mapOf(key string) *ipc.Payload {
	if f.err != nil {
		return nil
	}
	m, err := f.p.Map(key)
	f.err = err
	return m
}

func timeValue(t time.Time) ipc.Value {
	if t.IsZero() {
		return ipc.Null()
	}
	return ipc.TimeValue(t)
}

// listOf encodes a slice element by element.
func listOf[T any](items []T, enc func(T) ipc.Value) ipc.Value {
	vs := make([]ipc.Value, len(items))
	for i, it := range items {
		vs[i] = enc(it)
	}
	return ipc.ListValue(vs...)
}

// decodeList decodes a list of maps.
func decodeList[T any](v ipc.Value, dec func(*ipc.Payload) (T, error)) ([]T, error) {
	if v.IsNull() {
		return nil, nil
	}
	vs, ok := v.AsList()
	if !ok {
		return nil, fmt.Errorf("%w: expected list, got %s", ipc.ErrFieldType, v.Kind())
	}
	out := make([]T, 0, len(vs))
	for i, item := range vs {
		m, ok := item.AsMap()
		if !ok {
			return nil, fmt.Errorf("%w: item %d: expected map, got %s", ipc.ErrFieldType, i, item.Kind())
		}
		t, err := dec(m)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// decodeMap decodes a single map value.
func decodeMap[T any](v ipc.Value, dec func(*ipc.Payload) (T, error)) (T, error) {
	m, ok := v.AsMap()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: expected map, got %s", ipc.ErrFieldType, v.Kind())
	}
	return dec(m)
}

func categoryValue(c core.Category) ipc.Value {
	return ipc.MapValue(ipc.NewPayload().
		Set("id", ipc.Int64Value(c.ID)).
		Set("name", ipc.StringValue(c.Name)).
		Set("description", ipc.StringValue(c.Description)).
		Set("createdAt", timeValue(c.CreatedAt)))
}

func decodeCategory(p *ipc.Payload) (core.Category, error) {
	f := fields{p: p}
	c := core.Category{
		ID:          f.int64("id"),
		Name:        f.text("name"),
		Description: f.text("description"),
		CreatedAt:   f.time("createdAt"),
	}
	return c, f.err
}

func productValue(p core.Product) ipc.Value {
	return ipc.MapValue(ipc.NewPayload().
		Set("id", ipc.Int64Value(p.ID)).
		Set("categoryId", ipc.Int64Value(p.CategoryID)).
		Set("categoryName", ipc.StringValue(p.CategoryName)).
		Set("name", ipc.StringValue(p.Name)).
		Set("model", ipc.StringValue(p.Model)).
		Set("brand", ipc.StringValue(p.Brand)).
		Set("color", ipc.StringValue(p.Color)).
		Set("price", ipc.DecimalValue(p.Price)).
		Set("description", ipc.StringValue(p.Description)).
		Set("imagePath", ipc.StringValue(p.ImagePath)).
		Set("status", ipc.StringValue(string(p.Status))).
		Set("stock", ipc.Int64Value(p.Stock)).
		Set("createdAt", timeValue(p.CreatedAt)).
		Set("updatedAt", timeValue(p.UpdatedAt)))
}

func decodeProduct(p *ipc.Payload) (core.Product, error) {
	f := fields{p: p}
	out := core.Product{
		ID:           f.int64("id"),
		CategoryID:   f.int64("categoryId"),
		CategoryName: f.text("categoryName"),
		Name:         f.text("name"),
		Model:        f.text("model"),
		Brand:        f.text("brand"),
		Color:        f.text("color"),
		Price:        f.money("price"),
		Description:  f.text("description"),
		ImagePath:    f.text("imagePath"),
		Status:       core.ProductStatus(f.text("status")),
		Stock:        f.int64("stock"),
		CreatedAt:    f.time("createdAt"),
		UpdatedAt:    f.time("updatedAt"),
	}
	return out, f.err
}

func customerValue(c core.Customer) ipc.Value {
	return ipc.MapValue(ipc.NewPayload().
		Set("id", ipc.Int64Value(c.ID)).
		Set("fullName", ipc.StringValue(c.FullName)).
		Set("email", ipc.StringValue(c.Email)).
		Set("phone", ipc.StringValue(c.Phone)).
		Set("address", ipc.StringValue(c.Address)).
		Set("city", ipc.StringValue(c.City)).
		Set("district", ipc.StringValue(c.District)).
		Set("createdAt", timeValue(c.CreatedAt)).
		Set("updatedAt", timeValue(c.UpdatedAt)))
}

func decodeCustomer(p *ipc.Payload) (core.Customer, error) {
	f := fields{p: p}
	c := core.Customer{
		ID:        f.int64("id"),
		FullName:  f.text("fullName"),
		Email:     f.text("email"),
		Phone:     f.text("phone"),
		Address:   f.text("address"),
		City:      f.text("city"),
		District:  f.text("district"),
		CreatedAt: f.time("createdAt"),
		UpdatedAt: f.time("updatedAt"),
	}
	return c, f.err
}

// userValue never carries the password.
func userValue(u core.User) ipc.Value {
	return ipc.MapValue(ipc.NewPayload().
		Set("id", ipc.Int64Value(u.ID)).
		Set("username", ipc.StringValue(u.Username)).
		Set("fullName", ipc.StringValue(u.FullName)).
		Set("email", ipc.StringValue(u.Email)).
		Set("phone", ipc.StringValue(u.Phone)).
		Set("role", ipc.StringValue(string(u.Role))).
		Set("status", ipc.StringValue(string(u.Status))).
		Set("createdAt", timeValue(u.CreatedAt)))
}

// userWithPassword is what a client sends to create or update an account.
func userWithPassword(u core.User) ipc.Value {
	v := userValue(u)
	m, _ := v.AsMap()
	if u.Password != "" {
		m.Set("password", ipc.StringValue(u.Password))
	}
	return v
}

func decodeUser(p *ipc.Payload) (core.User, error) {
	f := fields{p: p}
	u := core.User{
		ID:        f.int64("id"),
		Username:  f.text("username"),
		Password:  f.text("password"),
		FullName:  f.text("fullName"),
		Email:     f.text("email"),
		Phone:     f.text("phone"),
		Role:      core.Role(f.text("role")),
		Status:    core.UserStatus(f.text("status")),
		CreatedAt: f.time("createdAt"),
	}
	if f.err == nil && u.Role != "" {
		u.Role, f.err = core.ParseRole(string(u.Role))
	}
	return u, f.err
}

func orderItemValue(it core.OrderItem) ipc.Value {
	return ipc.MapValue(ipc.NewPayload().
		Set("id", ipc.Int64Value(it.ID)).
		Set("orderId", ipc.Int64Value(it.OrderID)).
		Set("productId", ipc.Int64Value(it.ProductID)).
		Set("productName", ipc.StringValue(it.ProductName)).
		Set("quantity", ipc.Int64Value(it.Quantity)).
		Set("unitPrice", ipc.DecimalValue(it.UnitPrice)).
		Set("totalPrice", ipc.DecimalValue(it.TotalPrice)))
}

func decodeOrderItem(p *ipc.Payload) (core.OrderItem, error) {
	f := fields{p: p}
	it := core.OrderItem{
		ID:          f.int64("id"),
		OrderID:     f.int64("orderId"),
		ProductID:   f.int64("productId"),
		ProductName: f.text("productName"),
		Quantity:    f.int64("quantity"),
		UnitPrice:   f.money("unitPrice"),
		TotalPrice:  f.money("totalPrice"),
	}
	return it, f.err
}

func orderValue(o core.Order) ipc.Value {
	p := ipc.NewPayload().
		Set("id", ipc.Int64Value(o.ID)).
		Set("orderCode", ipc.StringValue(o.Code)).
		Set("customerId", ipc.Int64Value(o.CustomerID)).
		Set("customerName", ipc.StringValue(o.CustomerName)).
		Set("walkInName", ipc.StringValue(o.WalkInName)).
		Set("walkInPhone", ipc.StringValue(o.WalkInPhone)).
		Set("userId", ipc.Int64Value(o.UserID)).
		Set("totalAmount", ipc.DecimalValue(o.TotalAmount)).
		Set("discountAmount", ipc.DecimalValue(o.Discount)).
		Set("finalAmount", ipc.DecimalValue(o.FinalAmount)).
		Set("status", ipc.StringValue(string(o.Status))).
		Set("paymentMethod", ipc.StringValue(string(o.PaymentMethod))).
		Set("notes", ipc.StringValue(o.Note)).
		Set("createdAt", timeValue(o.CreatedAt)).
		Set("updatedAt", timeValue(o.UpdatedAt))
	if o.Items != nil {
		p.Set("items", listOf(o.Items, orderItemValue))
	}
	return ipc.MapValue(p)
}

func decodeOrder(p *ipc.Payload) (core.Order, error) {
	f := fields{p: p}
	o := core.Order{
		ID:            f.int64("id"),
		Code:          f.text("orderCode"),
		CustomerID:    f.int64("customerId"),
		CustomerName:  f.text("customerName"),
		WalkInName:    f.text("walkInName"),
		WalkInPhone:   f.text("walkInPhone"),
		UserID:        f.int64("userId"),
		TotalAmount:   f.money("totalAmount"),
		Discount:      f.money("discountAmount"),
		FinalAmount:   f.money("finalAmount"),
		Status:        core.OrderStatus(f.text("status")),
		PaymentMethod: core.PaymentMethod(f.text("paymentMethod")),
		Note:          f.text("notes"),
		CreatedAt:     f.time("createdAt"),
		UpdatedAt:     f.time("updatedAt"),
	}
	if f.err != nil {
		return core.Order{}, f.err
	}
	if v, ok := p.Get("items"); ok {
		items, err := decodeList(v, decodeOrderItem)
		if err != nil {
			return core.Order{}, fmt.Errorf("items: %w", err)
		}
		o.Items = items
	}
	return o, nil
}

func lineItemValue(l core.LineItem) ipc.Value {
	return ipc.MapValue(ipc.NewPayload().
		Set("productId", ipc.Int64Value(l.ProductID)).
		Set("quantity", ipc.Int64Value(l.Quantity)).
		Set("unitPrice", ipc.DecimalValue(l.UnitPrice)))
}

func decodeLineItem(p *ipc.Payload) (core.LineItem, error) {
	f := fields{p: p}
	l := core.LineItem{
		ProductID: f.mustInt64("productId"),
		Quantity:  f.mustInt64("quantity"),
		UnitPrice: f.money("unitPrice"),
	}
	return l, f.err
}

func draftValue(d core.OrderDraft) ipc.Value {
	return ipc.MapValue(ipc.NewPayload().
		Set("customerId", ipc.Int64Value(d.CustomerID)).
		Set("walkInName", ipc.StringValue(d.WalkInName)).
		Set("walkInPhone", ipc.StringValue(d.WalkInPhone)).
		Set("userId", ipc.Int64Value(d.UserID)).
		Set("items", listOf(d.Items, lineItemValue)).
		Set("discountAmount", ipc.DecimalValue(d.Discount)).
		Set("paymentMethod", ipc.StringValue(string(d.PaymentMethod))).
		Set("notes", ipc.StringValue(d.Note)))
}

func decodeDraft(p *ipc.Payload) (core.OrderDraft, error) {
	f := fields{p: p}
	d := core.OrderDraft{
		CustomerID:    f.int64("customerId"),
		WalkInName:    f.text("walkInName"),
		WalkInPhone:   f.text("walkInPhone"),
		UserID:        f.int64("userId"),
		Discount:      f.money("discountAmount"),
		PaymentMethod: core.PaymentMethod(f.text("paymentMethod")),
		Note:          f.text("notes"),
	}
	items := f.list("items")
	if f.err != nil {
		return core.OrderDraft{}, f.err
	}
	for i, v := range items {
		m, ok := v.AsMap()
		if !ok {
			return core.OrderDraft{}, core.InvalidLine(i, 0, "items", "line item must be a map")
		}
		l, err := decodeLineItem(m)
		if err != nil {
			return core.OrderDraft{}, core.InvalidLine(i, 0, "items", err.Error())
		}
		d.Items = append(d.Items, l)
	}
	return d, nil
}

func inventoryValue(r core.InventoryRecord) ipc.Value {
	return ipc.MapValue(ipc.NewPayload().
		Set("id", ipc.Int64Value(r.ID)).
		Set("productId", ipc.Int64Value(r.ProductID)).
		Set("productName", ipc.StringValue(r.ProductName)).
		Set("brand", ipc.StringValue(r.Brand)).
		Set("model", ipc.StringValue(r.Model)).
		Set("quantityIn", ipc.Int64Value(r.QuantityIn)).
		Set("quantityOut", ipc.Int64Value(r.QuantityOut)).
		Set("quantityCurrent", ipc.Int64Value(r.Current)).
		Set("lastUpdated", timeValue(r.UpdatedAt)))
}

func decodeInventory(p *ipc.Payload) (core.InventoryRecord, error) {
	f := fields{p: p}
	r := core.InventoryRecord{
		ID:          f.int64("id"),
		ProductID:   f.int64("productId"),
		ProductName: f.text("productName"),
		Brand:       f.text("brand"),
		Model:       f.text("model"),
		QuantityIn:  f.int64("quantityIn"),
		QuantityOut: f.int64("quantityOut"),
		Current:     f.int64("quantityCurrent"),
		UpdatedAt:   f.time("lastUpdated"),
	}
	return r, f.err
}

func sessionValue(s session.Session, u core.User) ipc.Value {
	return ipc.MapValue(ipc.NewPayload().
		Set("token", ipc.StringValue(s.Token)).
		Set("expiresAt", ipc.TimeValue(s.ExpiresAt)).
		Set("user", userValue(u)))
}
