package ipc

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrMissingField indicates a payload key that is absent or null.
	ErrMissingField = errors.New("missing field")
	// ErrFieldType indicates a payload value of the wrong kind.
	ErrFieldType = errors.New("wrong field type")
)

// Payload is an insertion-ordered map of named values.
// The nil *Payload reads as empty.
type Payload struct {
	keys []string
	vals map[string]Value
}

// NewPayload returns an empty payload.
func NewPayload() *Payload {
	return &Payload{vals: make(map[string]Value)}
}

// Set stores v under key. Overwriting keeps the key's original position.
func (p *Payload) Set(key string, v Value) *Payload {
	if p.vals == nil {
		p.vals = make(map[string]Value)
	}
	if _, ok := p.vals[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.vals[key] = v
	return p
}

func (p *Payload) Get(key string) (Value, bool) {
	if p == nil {
		return Value{}, false
	}
	v, ok := p.vals[key]
	return v, ok
}

// Keys returns keys in insertion order.
func (p *Payload) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

func (p *Payload) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Equal compares keys, order and values.
func (p *Payload) Equal(o *Payload) bool {
	if p.Len() != o.Len() {
		return false
	}
	for i, key := range p.Keys() {
		if o.keys[i] != key {
			return false
		}
		if !p.vals[key].Equal(o.vals[key]) {
			return false
		}
	}
	return true
}

func (p *Payload) String() string {
	parts := make([]string, 0, p.Len())
	for _, key := range p.Keys() {
		parts = append(parts, key+": "+p.vals[key].String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (p *Payload) require(key string) (Value, error) {
	v, ok := p.Get(key)
	if !ok || v.IsNull() {
		return Value{}, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	return v, nil
}

func fieldTypeErr(key string, want ValueKind, got Value) error {
	return fmt.Errorf("%w: %s must be %s, got %s", ErrFieldType, key, want, got.Kind())
}

// Text returns the string stored under key.
func (p *Payload) Text(key string) (string, error) {
	v, err := p.require(key)
	if err != nil {
		return "", err
	}
	s, ok := v.AsString()
	if !ok {
		return "", fieldTypeErr(key, KindString, v)
	}
	return s, nil
}

// OptText returns the string under key, or "" when absent or null.
func (p *Payload) OptText(key string) (string, error) {
	if v, ok := p.Get(key); !ok || v.IsNull() {
		return "", nil
	}
	return p.Text(key)
}

func (p *Payload) Int64(key string) (int64, error) {
	v, err := p.require(key)
	if err != nil {
		return 0, err
	}
	n, ok := v.AsInt64()
	if !ok {
		return 0, fieldTypeErr(key, KindInt64, v)
	}
	return n, nil
}

// OptInt64 returns 0 when the key is absent or null.
func (p *Payload) OptInt64(key string) (int64, error) {
	if v, ok := p.Get(key); !ok || v.IsNull() {
		return 0, nil
	}
	return p.Int64(key)
}

func (p *Payload) Int(key string) (int, error) {
	n, err := p.Int64(key)
	return int(n), err
}

func (p *Payload) Decimal(key string) (decimal.Decimal, error) {
	v, err := p.require(key)
	if err != nil {
		return decimal.Decimal{}, err
	}
	d, ok := v.AsDecimal()
	if !ok {
		return decimal.Decimal{}, fieldTypeErr(key, KindDecimal, v)
	}
	return d, nil
}

// OptDecimal returns zero when the key is absent or null.
func (p *Payload) OptDecimal(key string) (decimal.Decimal, error) {
	if v, ok := p.Get(key); !ok || v.IsNull() {
		return decimal.Zero, nil
	}
	return p.Decimal(key)
}

func (p *Payload) Bool(key string) (bool, error) {
	v, err := p.require(key)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, fieldTypeErr(key, KindBool, v)
	}
	return b, nil
}

func (p *Payload) Time(key string) (time.Time, error) {
	v, err := p.require(key)
	if err != nil {
		return time.Time{}, err
	}
	t, ok := v.AsTime()
	if !ok {
		return time.Time{}, fieldTypeErr(key, KindTime, v)
	}
	return t, nil
}

func (p *Payload) List(key string) ([]Value, error) {
	v, err := p.require(key)
	if err != nil {
		return nil, err
	}
	l, ok := v.AsList()
	if !ok {
		return nil, fieldTypeErr(key, KindList, v)
	}
	return l, nil
}

func (p *Payload) Map(key string) (*Payload, error) {
	v, err := p.require(key)
	if err != nil {
		return nil, err
	}
	m, ok := v.AsMap()
	if !ok {
		return nil, fieldTypeErr(key, KindMap, v)
	}
	return m, nil
}
