package order

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/petshop-storefront/internal/domain/catalog"
)

var (
	// ErrNoSession is returned when the visitor has no open order panel.
	ErrNoSession = errors.New("no open order session")
	// ErrNotOrderable is returned when opening a session for an entry that
	// is out of stock or has no numeric price.
	ErrNotOrderable = errors.New("product is not orderable")
)

// Session is the transient state of a single checkout attempt. Price and
// stock are captured when the session opens and are not refreshed if the
// catalog reloads while it is open.
type Session struct {
	PetName   catalog.ProductName
	ImageURL  string
	UnitPrice decimal.Decimal
	Stock     int
	// QuantityInput is the raw quantity field as last edited.
	QuantityInput string
	OpenedAt      time.Time
	TouchedAt     time.Time
}

// MaxQuantity is the upper bound offered by the quantity field.
func (s Session) MaxQuantity() int {
	return s.Stock
}

// PreviewQuantity is the quantity used for the live total: the field value
// when it parses as a positive integer, else 1.
func (s Session) PreviewQuantity() int {
	if q, err := ParseQuantity(s.QuantityInput); err == nil {
		return q
	}
	return 1
}

// Total returns unitPrice × quantity.
func (s Session) Total(quantity int) decimal.Decimal {
	return s.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// PreviewTotal is the running total shown while the panel is open.
func (s Session) PreviewTotal() decimal.Decimal {
	return s.Total(s.PreviewQuantity())
}

// ParseQuantity parses a strictly positive integer.
func ParseQuantity(input string) (int, error) {
	q, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || q <= 0 {
		return 0, ErrInvalidQuantity
	}
	return q, nil
}

// Sessions holds at most one Session per visitor. Opening a new session
// silently replaces the visitor's previous one.
type Sessions struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	slots map[string]*Session
}

// NewSessions creates an empty store. Sessions idle for longer than ttl are
// removed by Sweep; a zero ttl disables expiry.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		ttl:   ttl,
		now:   time.Now,
		slots: make(map[string]*Session),
	}
}

// Open starts a session for entry, resetting quantity to 1.
func (s *Sessions) Open(visitor string, e catalog.Entry) (Session, error) {
	price, ok := e.Price.Amount()
	if !ok || e.Stock <= 0 {
		return Session{}, ErrNotOrderable
	}

	now := s.now()
	sess := &Session{
		PetName:       e.Name,
		ImageURL:      e.ImageURL,
		UnitPrice:     price,
		Stock:         e.Stock,
		QuantityInput: "1",
		OpenedAt:      now,
		TouchedAt:     now,
	}

	s.mu.Lock()
	s.slots[visitor] = sess
	s.mu.Unlock()
	return *sess, nil
}

// Get returns the visitor's open session.
func (s *Sessions) Get(visitor string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.slots[visitor]
	if !ok {
		return Session{}, ErrNoSession
	}
	return *sess, nil
}

// SetQuantity records a quantity edit and returns the updated session so
// the caller can show the recomputed total.
func (s *Sessions) SetQuantity(visitor, input string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.slots[visitor]
	if !ok {
		return Session{}, ErrNoSession
	}
	sess.QuantityInput = input
	sess.TouchedAt = s.now()
	return *sess, nil
}

// Close discards the visitor's session. Closing a closed session is a no-op.
func (s *Sessions) Close(visitor string) {
	s.mu.Lock()
	delete(s.slots, visitor)
	s.mu.Unlock()
}

// Len returns the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Sweep removes sessions idle for longer than the configured TTL and
// returns how many were removed.
func (s *Sessions) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for v, sess := range s.slots {
		if now.Sub(sess.TouchedAt) >= s.ttl {
			delete(s.slots, v)
			removed++
		}
	}
	return removed
}
