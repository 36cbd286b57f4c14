// Package fanout delivers committed thread changes to live
// subscribers. Interest is registered per post; every event carries the
// refreshed post and its full comment set, so a subscriber's display
// tree is always a pure function of the latest event it received.
package fanout

import (
	"sync"
	"time"

	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/store"
)

// Event kinds, one per committed mutation class.
const (
	KindCommentAdded   = "comment_added"
	KindCommentEdited  = "comment_edited"
	KindCommentDeleted = "comment_deleted"
	KindVoteCast       = "vote_cast"
	KindPinChanged     = "pin_changed"
	KindPostDeleted    = "post_deleted"
)

// ThreadEvent is the unit of delivery: the post and its full comment
// set as of the commit that triggered it.
type ThreadEvent struct {
	Kind       string          `json:"kind"`
	PostID     string          `json:"post_id"`
	Post       store.Post      `json:"post"`
	Comments   []store.Comment `json:"comments"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// subscriberBuffer bounds each subscriber channel. A subscriber that
// falls this far behind misses intermediate events; the next one it
// receives still carries the full set, so it cannot desynchronize.
const subscriberBuffer = 16

// Hub is the in-process subscription registry.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan ThreadEvent
	nextID uint64
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]chan ThreadEvent)}
}

// Subscribe registers interest in a post's thread. The returned cancel
// func is idempotent, never blocks, and does not affect in-flight
// mutations.
func (h *Hub) Subscribe(postID string) (<-chan ThreadEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan ThreadEvent, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.nextID++
	id := h.nextID
	if h.subs[postID] == nil {
		h.subs[postID] = make(map[uint64]chan ThreadEvent)
	}
	h.subs[postID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.subs[postID]; ok {
				if c, ok := subs[id]; ok {
					delete(subs, id)
					close(c)
				}
				if len(subs) == 0 {
					delete(h.subs, postID)
				}
			}
		})
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber of its post. Sends are
// non-blocking: a full subscriber buffer drops this event rather than
// stalling the publisher.
func (h *Hub) Publish(ev ThreadEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	for _, ch := range h.subs[ev.PostID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports live subscribers for a post.
func (h *Hub) SubscriberCount(postID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[postID])
}

// Close terminates all subscriptions. Further publishes are dropped and
// further subscribes return closed channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for postID, subs := range h.subs {
		for id, ch := range subs {
			delete(subs, id)
			close(ch)
		}
		delete(h.subs, postID)
	}
}
