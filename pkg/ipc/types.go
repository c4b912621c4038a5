package ipc

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame indicates a corrupt, truncated or unsupported encoding.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrTransport indicates a connect, read or write failure.
	ErrTransport = errors.New("transport error")
	// ErrUnknownKind indicates a request kind with no registered handler.
	ErrUnknownKind = errors.New("unknown request kind")
)

// Status is the outcome class of a Response.
type Status string

const (
	StatusSuccess      Status = "SUCCESS"
	StatusError        Status = "ERROR"
	StatusUnauthorized Status = "UNAUTHORIZED"
	StatusNotFound     Status = "NOT_FOUND"
)

func (s Status) valid() bool {
	switch s {
	case StatusSuccess, StatusError, StatusUnauthorized, StatusNotFound:
		return true
	}
	return false
}

// Message is either a *Request or a *Response.
type Message interface {
	frameType() byte
}

// Request is one unit of client-initiated work.
type Request struct {
	Kind      string
	Payload   *Payload
	AuthToken string
}

// NewRequest returns a request of kind with an empty payload.
func NewRequest(kind string) *Request {
	return &Request{Kind: kind, Payload: NewPayload()}
}

// With sets a payload field and returns the request for chaining.
func (r *Request) With(key string, v Value) *Request {
	if r.Payload == nil {
		r.Payload = NewPayload()
	}
	r.Payload.Set(key, v)
	return r
}

func (*Request) frameType() byte { return frameRequest }

// Equal reports field-by-field equality.
func (r *Request) Equal(o *Request) bool {
	return r.Kind == o.Kind && r.AuthToken == o.AuthToken && r.Payload.Equal(o.Payload)
}

// Response is the single reply to a Request. Data is meaningful only on success.
type Response struct {
	Status  Status
	Message string
	Data    Value
}

func (*Response) frameType() byte { return frameResponse }

func (r *Response) OK() bool {
	return r != nil && r.Status == StatusSuccess
}

func (r *Response) Equal(o *Response) bool {
	return r.Status == o.Status && r.Message == o.Message && r.Data.Equal(o.Data)
}

func (r *Response) String() string {
	return fmt.Sprintf("%s: %s", r.Status, r.Message)
}

// Success builds a SUCCESS response.
func Success(message string, data Value) *Response {
	return &Response{Status: StatusSuccess, Message: message, Data: data}
}

// Errorf builds an ERROR response.
func Errorf(format string, args ...any) *Response {
	return &Response{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(message string) *Response {
	return &Response{Status: StatusUnauthorized, Message: message}
}

func NotFound(message string) *Response {
	return &Response{Status: StatusNotFound, Message: message}
}
