package checkout

import (
	"sync"
	"time"
)

// NoticeKind selects the notice styling.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeInfo    NoticeKind = "info"
)

// DefaultNoticeTTL is how long a notice stays visible.
const DefaultNoticeTTL = 3 * time.Second

// Notice is a transient, self-dismissing message for one visitor.
type Notice struct {
	Message   string
	Kind      NoticeKind
	ExpiresAt time.Time
}

// Notices queues notices per visitor until they are shown or expire.
type Notices struct {
	now func() time.Time

	mu     sync.Mutex
	queues map[string][]Notice
}

// NewNotices creates an empty notice queue.
func NewNotices() *Notices {
	return &Notices{
		now:    time.Now,
		queues: make(map[string][]Notice),
	}
}

// Push queues n for visitor, expiring after ttl.
func (n *Notices) Push(visitor string, notice Notice, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}
	if notice.Kind == "" {
		notice.Kind = NoticeInfo
	}
	notice.ExpiresAt = n.now().Add(ttl)

	n.mu.Lock()
	n.queues[visitor] = append(n.queues[visitor], notice)
	n.mu.Unlock()
}

// Take returns and removes the visitor's unexpired notices.
func (n *Notices) Take(visitor string) []Notice {
	now := n.now()

	n.mu.Lock()
	queued := n.queues[visitor]
	delete(n.queues, visitor)
	n.mu.Unlock()

	var out []Notice
	for _, v := range queued {
		if now.Before(v.ExpiresAt) {
			out = append(out, v)
		}
	}
	return out
}

// Sweep drops expired notices of every visitor.
func (n *Notices) Sweep(now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for visitor, queued := range n.queues {
		kept := queued[:0]
		for _, v := range queued {
			if now.Before(v.ExpiresAt) {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			delete(n.queues, visitor)
			continue
		}
		n.queues[visitor] = kept
	}
}
