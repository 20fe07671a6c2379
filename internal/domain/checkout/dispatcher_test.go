package checkout

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/petshop-storefront/internal/domain/catalog"
	"github.com/xenking/petshop-storefront/internal/domain/order"
	"github.com/xenking/petshop-storefront/internal/format"
)

// --- Mock implementations ---

type mockRecorder struct {
	records []Record
	err     error
}

func (m *mockRecorder) Record(_ context.Context, r Record) error {
	m.records = append(m.records, r)
	return m.err
}

// --- Helpers ---

func testConfig() Config {
	return Config{
		Host:      "wa.me",
		Recipient: "6285608790822",
		Store:     "ApparelZx",
		Tagline:   "Premium Roblox Pets",
		Game:      "Grow A Garden",
	}
}

func newTestDispatcher(t *testing.T, cfg Config, rec Recorder) (*Dispatcher, *order.Sessions, *Notices) {
	t.Helper()
	sessions := order.NewSessions(time.Minute)
	notices := NewNotices()
	d, err := NewDispatcher(cfg, format.New("id-ID"), sessions, notices, rec, zap.NewNop(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	return d, sessions, notices
}

func openKitsune(t *testing.T, sessions *order.Sessions, visitor string) order.Session {
	t.Helper()
	s, err := sessions.Open(visitor, catalog.Entry{
		Name:  "Kitsune",
		Price: catalog.PriceOf(decimal.NewFromInt(50000)),
		Stock: 3,
	})
	require.NoError(t, err)
	return s
}

// --- Tests ---

func TestDispatch_KitsuneCash(t *testing.T) {
	rec := &mockRecorder{}
	d, sessions, notices := newTestDispatcher(t, testConfig(), rec)
	s := openKitsune(t, sessions, "v1")

	out, err := d.Dispatch(context.Background(), "v1", s, 2, "Cash")
	require.NoError(t, err)

	assert.Contains(t, out.Message, "*Pet:* Kitsune")
	assert.Contains(t, out.Message, "*Price:* Rp 50.000 each")
	assert.Contains(t, out.Message, "*Quantity:* 2")
	assert.Contains(t, out.Message, "*Payment Method:* Cash")
	assert.Contains(t, out.Message, "*Total:* Rp 100.000")
	assert.Contains(t, out.Message, "*Store:* ApparelZx - Premium Roblox Pets")
	assert.True(t, decimal.NewFromInt(100000).Equal(out.Total))
	assert.NotEmpty(t, out.ID)

	// Session is closed; reopening starts from quantity 1.
	_, err = sessions.Get("v1")
	require.ErrorIs(t, err, order.ErrNoSession)
	reopened := openKitsune(t, sessions, "v1")
	assert.Equal(t, "1", reopened.QuantityInput)

	got := notices.Take("v1")
	require.Len(t, got, 1)
	assert.Equal(t, SuccessNotice, got[0].Message)
	assert.Equal(t, NoticeSuccess, got[0].Kind)

	require.Len(t, rec.records, 1)
	assert.Equal(t, out.ID, rec.records[0].ID)
	assert.Equal(t, 2, rec.records[0].Quantity)
}

func TestDispatch_Link(t *testing.T) {
	d, sessions, _ := newTestDispatcher(t, testConfig(), nil)
	s := openKitsune(t, sessions, "v1")

	out, err := d.Dispatch(context.Background(), "v1", s, 1, "Bank Transfer")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(out.URL, "https://wa.me/6285608790822?text="), out.URL)
	assert.NotContains(t, out.URL, "+", "spaces are encoded as %20")
	assert.NotContains(t, out.URL, " ")

	u, err := url.Parse(out.URL)
	require.NoError(t, err)
	assert.Equal(t, out.Message, u.Query().Get("text"))
}

func TestDispatch_RecorderFailureIsNotFatal(t *testing.T) {
	rec := &mockRecorder{err: errors.New("db down")}
	d, sessions, _ := newTestDispatcher(t, testConfig(), rec)
	s := openKitsune(t, sessions, "v1")

	out, err := d.Dispatch(context.Background(), "v1", s, 1, "Cash")
	require.NoError(t, err)
	assert.NotEmpty(t, out.URL)
	_, err = sessions.Get("v1")
	require.ErrorIs(t, err, order.ErrNoSession)
}

func TestDispatch_TemplateErrorStillClosesSession(t *testing.T) {
	cfg := testConfig()
	cfg.Template = "{{.Missing}}"
	d, sessions, _ := newTestDispatcher(t, cfg, nil)
	s := openKitsune(t, sessions, "v1")

	_, err := d.Dispatch(context.Background(), "v1", s, 1, "Cash")
	require.Error(t, err)
	_, err = sessions.Get("v1")
	require.ErrorIs(t, err, order.ErrNoSession)
}

func TestNewDispatcher_RequiresRecipient(t *testing.T) {
	cfg := testConfig()
	cfg.Recipient = ""
	_, err := NewDispatcher(cfg, format.New("id-ID"), order.NewSessions(0), NewNotices(), nil, zap.NewNop(), metricnoop.NewMeterProvider())
	require.Error(t, err)
}

func TestNotices_Expire(t *testing.T) {
	n := NewNotices()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return base }

	n.Push("v1", Notice{Message: "hello"}, 3*time.Second)
	n.Push("v2", Notice{Message: "bye"}, 3*time.Second)

	n.Sweep(base.Add(time.Second))
	n.now = func() time.Time { return base.Add(4 * time.Second) }
	assert.Empty(t, n.Take("v1"))

	n.Sweep(base.Add(5 * time.Second))
	n.now = func() time.Time { return base }
	assert.Empty(t, n.Take("v2"))
}

func TestNotices_TakeOnce(t *testing.T) {
	n := NewNotices()
	n.Push("v1", Notice{Message: "hello"}, time.Minute)

	got := n.Take("v1")
	require.Len(t, got, 1)
	assert.Equal(t, NoticeInfo, got[0].Kind)
	assert.Empty(t, n.Take("v1"))
}
