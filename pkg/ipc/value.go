package ipc

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ValueKind enumerates the loosely typed values a payload may carry.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindInt32
	KindInt64
	KindDecimal
	KindBool
	KindTime
	KindList
	KindMap
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindDecimal:
		return "decimal"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is one payload value. The zero Value is null.
type Value struct {
	kind ValueKind
	str  string
	num  int64
	dec  decimal.Decimal
	b    bool
	t    time.Time
	list []Value
	m    *Payload
}

func Null() Value { return Value{} }
func StringValue(s string) Value { return Value{kind: KindString, str: s} }
func Int32Value(n int32) Value { return Value{kind: KindInt32, num: int64(n)} }
func Int64Value(n int64) Value { return Value{kind: KindInt64, num: n} }
func DecimalValue(d decimal.Decimal) Value { return Value{kind: KindDecimal, dec: d} }
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }
func ListValue(vs ...Value) Value { return Value{kind: KindList, list: vs} }

// TimeValue normalizes t to UTC and drops the monotonic reading.
func TimeValue(t time.Time) Value {
	return Value{kind: KindTime, t: t.UTC().Round(0)}
}

// MapValue wraps a nested payload. A nil payload becomes an empty map.
func MapValue(p *Payload) Value {
	if p == nil {
		p = NewPayload()
	}
	return Value{kind: KindMap, m: p}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsInt64 accepts both integer widths.
func (v Value) AsInt64() (int64, bool) {
	return v.num, v.kind == KindInt64 || v.kind == KindInt32
}

func (v Value) AsDecimal() (decimal.Decimal, bool) {
	switch v.kind {
	case KindDecimal:
		return v.dec, true
	case KindInt32, KindInt64:
		return decimal.NewFromInt(v.num), true
	}
	return decimal.Decimal{}, false
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsTime() (time.Time, bool) {
	return v.t, v.kind == KindTime
}

func (v Value) AsList() ([]Value, bool) {
	return v.list, v.kind == KindList
}

func (v Value) AsMap() (*Payload, bool) {
	return v.m, v.kind == KindMap
}

// Equal reports deep equality. Decimals compare numerically and times by instant.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindInt32, KindInt64:
		return v.num == o.num
	case KindDecimal:
		return v.dec.Equal(o.dec)
	case KindBool:
		return v.b == o.b
	case KindTime:
		return v.t.Equal(o.t)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.m.Equal(o.m)
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindInt32, KindInt64:
		return fmt.Sprintf("%d", v.num)
	case KindDecimal:
		return decimalText(v.dec)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	case KindList:
		return fmt.Sprintf("%v", v.list)
	case KindMap:
		return v.m.String()
	}
	return v.kind.String()
}

// decimalText keeps the scale the value was built with ("12.50" stays "12.50").
func decimalText(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}
