package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCodecRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 30, 5, 123456789, time.FixedZone("ICT", 7*3600))
	line := func(pid int64, qty int32, price string) Value {
		return MapValue(NewPayload().
			Set("productId", Int64Value(pid)).
			Set("quantity", Int32Value(qty)).
			Set("unitPrice", DecimalValue(decimal.RequireFromString(price))))
	}

	cases := []struct {
		name string
		msg  Message
	}{
		{"empty request", &Request{Kind: "PING"}},
		{"request with token", NewRequest("GET_ALL_ORDERS").With("limit", Int32Value(10)).With("x", Null())},
		{"scalar kinds", &Request{Kind: "K", AuthToken: "tok", Payload: NewPayload().
			Set("s", StringValue("Nguyễn \"A\"\n")).
			Set("i32", Int32Value(-2147483648)).
			Set("i64", Int64Value(9007199254740993)).
			Set("dec", DecimalValue(decimal.RequireFromString("12.50"))).
			Set("yes", BoolValue(true)).
			Set("no", BoolValue(false)).
			Set("at", TimeValue(at)).
			Set("nothing", Null())}},
		{"nested line items", NewRequest("CREATE_ORDER").
			With("customerId", Int64Value(4)).
			With("items", ListValue(line(1, 2, "12.50"), line(2, 1, "0.99"))).
			With("empty", ListValue()).
			With("meta", MapValue(nil))},
		{"success response", Success("ok", MapValue(NewPayload().Set("id", Int64Value(7))))},
		{"error response", Errorf("Unknown action: %s", "FOO")},
		{"not found", NotFound("Order 9 not found")},
		{"unauthorized list data", &Response{Status: StatusUnauthorized, Message: "login", Data: ListValue(Null(), StringValue("x"))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := Encode(tc.msg)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := Decode(frame)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			switch want := tc.msg.(type) {
			case *Request:
				req, ok := got.(*Request)
				if !ok || !req.Equal(want) {
					t.Fatalf("round trip mismatch:\nwant %s %s\ngot  %#v", want.Kind, want.Payload, got)
				}
			case *Response:
				resp, ok := got.(*Response)
				if !ok || !resp.Equal(want) {
					t.Fatalf("round trip mismatch:\nwant %v\ngot  %#v", want, got)
				}
			}
		})
	}
}

func TestCodecKeepsDecimalScaleAndOrder(t *testing.T) {
	req := NewRequest("X").
		With("z", DecimalValue(decimal.RequireFromString("12.50"))).
		With("a", StringValue("first after z"))
	frame, err := Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	msg, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := msg.(*Request)
	if keys := strings.Join(got.Payload.Keys(), ","); keys != "z,a" {
		t.Fatalf("expected key order z,a, got %s", keys)
	}
	v, _ := got.Payload.Get("z")
	if v.String() != "12.50" {
		t.Fatalf("expected 12.50, got %s", v)
	}
}

func TestDecodeMalformed(t *testing.T) {
	deep := `{"t":"i32","d":1}`
	for i := 0; i < maxDepth+2; i++ {
		deep = `{"t":"list","d":[` + deep + `]}`
	}

	oversize := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(oversize, MaxFrameSize+1)
	oversize[4] = frameRequest

	valid, err := Encode(NewRequest("PING"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	cases := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"truncated header", []byte{3, 0}},
		{"truncated body", valid[:len(valid)-2]},
		{"trailing bytes", append(append([]byte{}, valid...), 0)},
		{"oversize length", oversize},
		{"unknown frame type", rawFrame(0x7f, `{}`)},
		{"bad json", rawFrame(frameRequest, `{"kind":`)},
		{"unknown value tag", rawFrame(frameRequest, `{"kind":"K","payload":[{"k":"a","v":{"t":"f64","d":1.5}}]}`)},
		{"i32 out of range", rawFrame(frameRequest, `{"kind":"K","payload":[{"k":"a","v":{"t":"i32","d":2147483648}}]}`)},
		{"fractional integer", rawFrame(frameRequest, `{"kind":"K","payload":[{"k":"a","v":{"t":"i64","d":1.5}}]}`)},
		{"bad decimal", rawFrame(frameRequest, `{"kind":"K","payload":[{"k":"a","v":{"t":"dec","d":"12,50"}}]}`)},
		{"missing data", rawFrame(frameRequest, `{"kind":"K","payload":[{"k":"a","v":{"t":"str"}}]}`)},
		{"duplicate key", rawFrame(frameRequest, `{"kind":"K","payload":[{"k":"a","v":{"t":"null"}},{"k":"a","v":{"t":"null"}}]}`)},
		{"unknown status", rawFrame(frameResponse, `{"status":"MAYBE","message":"","data":{"t":"null"}}`)},
		{"missing response data", rawFrame(frameResponse, `{"status":"SUCCESS","message":""}`)},
		{"nesting too deep", rawFrame(frameResponse, `{"status":"SUCCESS","message":"","data":`+deep+`}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.input)
			if !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("expected ErrMalformedFrame, got %v", err)
			}
		})
	}
}

func TestReadMessageCleanClose(t *testing.T) {
	_, err := ReadMessage(bytes.NewReader(nil))
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadRequestRejectsResponseFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, Success("ok", Null())); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadRequest(&buf); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestPayloadGetters(t *testing.T) {
	p := NewPayload().
		Set("name", StringValue("Helmet")).
		Set("qty", Int32Value(3)).
		Set("price", StringValue("oops")).
		Set("note", Null())

	if s, err := p.Text("name"); err != nil || s != "Helmet" {
		t.Fatalf("Text: %q %v", s, err)
	}
	if n, err := p.Int64("qty"); err != nil || n != 3 {
		t.Fatalf("Int64 should widen int32: %d %v", n, err)
	}
	if d, err := p.Decimal("qty"); err != nil || !d.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("Decimal should accept integers: %s %v", d, err)
	}
	if _, err := p.Decimal("price"); !errors.Is(err, ErrFieldType) {
		t.Fatalf("expected ErrFieldType, got %v", err)
	}
	if _, err := p.Text("note"); !errors.Is(err, ErrMissingField) {
		t.Fatalf("null should read as missing, got %v", err)
	}
	if s, err := p.OptText("note"); err != nil || s != "" {
		t.Fatalf("OptText: %q %v", s, err)
	}
	if _, err := p.Bool("absent"); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	var nilPayload *Payload
	if nilPayload.Len() != 0 || !nilPayload.Equal(NewPayload()) {
		t.Fatal("nil payload should read as empty")
	}
}

func rawFrame(typ byte, body string) []byte {
	var buf bytes.Buffer
	_ = WriteFrame(&buf, typ, []byte(body))
	return buf.Bytes()
}
