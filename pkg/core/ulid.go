package core

import (
	"io"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// OrderCodePrefix starts every generated order code.
const OrderCodePrefix = "ORD-"

// codeSource hands out monotonic ULIDs; codes minted in the same
// millisecond still sort in creation order.
type codeSource struct {
	mu      sync.Mutex
	entropy io.Reader
}

func (s *codeSource) next(at time.Time) ulid.ULID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), s.entropy)
}

var orderCodes = &codeSource{
	entropy: ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
}

// NewOrderCode generates a unique, time-sortable order code.
func NewOrderCode() string {
	return OrderCodePrefix + orderCodes.next(time.Now()).String()
}
