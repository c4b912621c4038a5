package ipc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
)

// maxDepth bounds list/map nesting in a decoded body.
const maxDepth = 32

var codecJSON = sonic.ConfigStd

// Value tags on the wire.
const (
	tagNull = "null"
	tagStr  = "str"
	tagI32  = "i32"
	tagI64  = "i64"
	tagDec  = "dec"
	tagBool = "bool"
	tagTime = "ts"
	tagList = "list"
	tagMap  = "map"
)

type wireValue struct {
	Type string          `json:"t"`
	Data json.RawMessage `json:"d,omitempty"`
}

type wireField struct {
	Key   string    `json:"k"`
	Value wireValue `json:"v"`
}

type wireRequest struct {
	Kind      string      `json:"kind"`
	Payload   []wireField `json:"payload"`
	AuthToken string      `json:"authToken,omitempty"`
}

type wireResponse struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Data    wireValue `json:"data"`
}

// Encode returns m as a complete frame.
func Encode(m Message) ([]byte, error) {
	body, err := encodeBody(m)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeFrame(&buf, m.frameType(), body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses exactly one complete frame.
func Decode(b []byte) (Message, error) {
	r := bytes.NewReader(b)
	typ, body, err := readFrame(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrMalformedFrame)
		}
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedFrame, r.Len())
	}
	return decodeBody(typ, body)
}

// WriteMessage encodes m and writes it to w as a single frame.
func WriteMessage(w io.Writer, m Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ReadMessage reads and decodes the next frame from r.
func ReadMessage(r io.Reader) (Message, error) {
	typ, body, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	return decodeBody(typ, body)
}

// ReadRequest reads the next frame and requires it to carry a request.
func ReadRequest(r io.Reader) (*Request, error) {
	m, err := ReadMessage(r)
	if err != nil {
		return nil, err
	}
	req, ok := m.(*Request)
	if !ok {
		return nil, fmt.Errorf("%w: expected request frame", ErrMalformedFrame)
	}
	return req, nil
}

// ReadResponse reads the next frame and requires it to carry a response.
func ReadResponse(r io.Reader) (*Response, error) {
	m, err := ReadMessage(r)
	if err != nil {
		return nil, err
	}
	resp, ok := m.(*Response)
	if !ok {
		return nil, fmt.Errorf("%w: expected response frame", ErrMalformedFrame)
	}
	return resp, nil
}

func encodeBody(m Message) ([]byte, error) {
	switch msg := m.(type) {
	case *Request:
		fields, err := encodePayload(msg.Payload)
		if err != nil {
			return nil, err
		}
		return codecJSON.Marshal(wireRequest{Kind: msg.Kind, Payload: fields, AuthToken: msg.AuthToken})
	case *Response:
		if !msg.Status.valid() {
			return nil, fmt.Errorf("encode response: unknown status %q", msg.Status)
		}
		data, err := encodeValue(msg.Data)
		if err != nil {
			return nil, err
		}
		return codecJSON.Marshal(wireResponse{Status: string(msg.Status), Message: msg.Message, Data: data})
	default:
		return nil, fmt.Errorf("encode: unsupported message %T", m)
	}
}

func encodePayload(p *Payload) ([]wireField, error) {
	fields := make([]wireField, 0, p.Len())
	for _, key := range p.Keys() {
		v, _ := p.Get(key)
		wv, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		fields = append(fields, wireField{Key: key, Value: wv})
	}
	return fields, nil
}

func encodeValue(v Value) (wireValue, error) {
	var (
		tag  string
		data []byte
		err  error
	)
	switch v.kind {
	case KindNull:
		return wireValue{Type: tagNull}, nil
	case KindString:
		tag = tagStr
		data, err = codecJSON.Marshal(v.str)
	case KindInt32:
		tag, data = tagI32, strconv.AppendInt(nil, v.num, 10)
	case KindInt64:
		tag, data = tagI64, strconv.AppendInt(nil, v.num, 10)
	case KindDecimal:
		tag = tagDec
		data, err = codecJSON.Marshal(decimalText(v.dec))
	case KindBool:
		tag, data = tagBool, strconv.AppendBool(nil, v.b)
	case KindTime:
		tag = tagTime
		data, err = codecJSON.Marshal(v.t.UTC().Format(time.RFC3339Nano))
	case KindList:
		items := make([]wireValue, 0, len(v.list))
		for i, item := range v.list {
			wv, err := encodeValue(item)
			if err != nil {
				return wireValue{}, fmt.Errorf("list[%d]: %w", i, err)
			}
			items = append(items, wv)
		}
		tag = tagList
		data, err = codecJSON.Marshal(items)
	case KindMap:
		fields, ferr := encodePayload(v.m)
		if ferr != nil {
			return wireValue{}, ferr
		}
		tag = tagMap
		data, err = codecJSON.Marshal(fields)
	default:
		return wireValue{}, fmt.Errorf("encode: unknown value kind %s", v.kind)
	}
	if err != nil {
		return wireValue{}, err
	}
	return wireValue{Type: tag, Data: data}, nil
}

func decodeBody(typ byte, body []byte) (Message, error) {
	switch typ {
	case frameRequest:
		var w wireRequest
		if err := codecJSON.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("%w: request body: %v", ErrMalformedFrame, err)
		}
		p, err := decodePayload(w.Payload, 1)
		if err != nil {
			return nil, err
		}
		return &Request{Kind: w.Kind, Payload: p, AuthToken: w.AuthToken}, nil
	case frameResponse:
		var w wireResponse
		if err := codecJSON.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("%w: response body: %v", ErrMalformedFrame, err)
		}
		status := Status(w.Status)
		if !status.valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedFrame, w.Status)
		}
		data, err := decodeValue(w.Data, 1)
		if err != nil {
			return nil, err
		}
		return &Response{Status: status, Message: w.Message, Data: data}, nil
	default:
		return nil, fmt.Errorf("%w: unknown frame type 0x%02x", ErrMalformedFrame, typ)
	}
}

func decodePayload(fields []wireField, depth int) (*Payload, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting exceeds %d", ErrMalformedFrame, maxDepth)
	}
	p := NewPayload()
	for _, f := range fields {
		if _, dup := p.Get(f.Key); dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrMalformedFrame, f.Key)
		}
		v, err := decodeValue(f.Value, depth+1)
		if err != nil {
			return nil, err
		}
		p.Set(f.Key, v)
	}
	return p, nil
}

func decodeValue(w wireValue, depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, fmt.Errorf("%w: nesting exceeds %d", ErrMalformedFrame, maxDepth)
	}
	raw := bytes.TrimSpace(w.Data)
	bad := func(err error) (Value, error) {
		return Value{}, fmt.Errorf("%w: %s value: %v", ErrMalformedFrame, w.Type, err)
	}
	if w.Type != tagNull && (len(raw) == 0 || string(raw) == "null") {
		return Value{}, fmt.Errorf("%w: %s value without data", ErrMalformedFrame, w.Type)
	}
	switch w.Type {
	case tagNull:
		if len(raw) != 0 && string(raw) != "null" {
			return Value{}, fmt.Errorf("%w: null value with data", ErrMalformedFrame)
		}
		return Null(), nil
	case tagStr:
		var s string
		if err := codecJSON.Unmarshal(raw, &s); err != nil {
			return bad(err)
		}
		return StringValue(s), nil
	case tagI32:
		n, err := strconv.ParseInt(string(raw), 10, 32)
		if err != nil {
			return bad(err)
		}
		return Int32Value(int32(n)), nil
	case tagI64:
		n, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return bad(err)
		}
		return Int64Value(n), nil
	case tagDec:
		var s string
		if err := codecJSON.Unmarshal(raw, &s); err != nil {
			return bad(err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return bad(err)
		}
		return DecimalValue(d), nil
	case tagBool:
		switch string(raw) {
		case "true":
			return BoolValue(true), nil
		case "false":
			return BoolValue(false), nil
		}
		return bad(fmt.Errorf("not a boolean: %s", raw))
	case tagTime:
		var s string
		if err := codecJSON.Unmarshal(raw, &s); err != nil {
			return bad(err)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return bad(err)
		}
		return TimeValue(t), nil
	case tagList:
		var items []wireValue
		if err := codecJSON.Unmarshal(raw, &items); err != nil {
			return bad(err)
		}
		out := make([]Value, 0, len(items))
		for _, item := range items {
			v, err := decodeValue(item, depth+1)
			if err != nil {
				return Value{}, err
			}
			out = append(out, v)
		}
		return ListValue(out...), nil
	case tagMap:
		var fields []wireField
		if err := codecJSON.Unmarshal(raw, &fields); err != nil {
			return bad(err)
		}
		p, err := decodePayload(fields, depth+1)
		if err != nil {
			return Value{}, err
		}
		return MapValue(p), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown value tag %q", ErrMalformedFrame, w.Type)
	}
}
