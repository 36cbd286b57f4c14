// Package worker consumes committed thread events from NATS JetStream
// and replays them into the local fan-out hub, so subscribers connected
// to this instance observe mutations committed on peers.
package worker

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/events"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/fanout"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/store"
)

// Relay bridges the JetStream event stream into a Hub.
type Relay struct {
	Store store.Store
	Hub   *fanout.Hub
	Log   *zap.Logger
	// Source is this instance's publisher id; events it produced are
	// skipped because the hub was already notified at commit time.
	Source string
}

// Start pull-subscribes to threads.events.* and runs until ctx is
// cancelled. Subscription failures are logged and abort the relay; the
// service keeps running with local-only fan-out.
func (r *Relay) Start(ctx context.Context, nc *nats.Conn) {
	js, err := nc.JetStream()
	if err != nil {
		r.Log.Error("relay: jetstream", zap.Error(err))
		return
	}
	sub, err := js.PullSubscribe(events.SubjectThreadPrefix+"*", "threads_relay")
	if err != nil {
		r.Log.Error("relay: subscribe", zap.Error(err))
		return
	}

	go func() {
		defer func() { _ = sub.Unsubscribe() }()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msgs, err := sub.Fetch(64, nats.MaxWait(2*time.Second))
			if err != nil {
				if err == nats.ErrTimeout {
					continue
				}
				r.Log.Warn("relay: fetch", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			for _, m := range msgs {
				r.handle(ctx, m)
				if err := m.Ack(); err != nil {
					r.Log.Warn("relay: ack", zap.Error(err))
				}
			}
		}
	}()
}

func (r *Relay) handle(ctx context.Context, m *nats.Msg) {
	var ev events.Event
	if err := json.Unmarshal(m.Data, &ev); err != nil {
		r.Log.Warn("relay: invalid event", zap.String("subject", m.Subject), zap.Error(err))
		return
	}
	if ev.Source != "" && ev.Source == r.Source {
		return
	}
	postID := strings.TrimPrefix(m.Subject, events.SubjectThreadPrefix)
	if postID == "" || strings.Contains(postID, ".") {
		r.Log.Warn("relay: unexpected subject", zap.String("subject", m.Subject))
		return
	}

	// Re-read the snapshot locally rather than trusting the payload:
	// the store is the source of truth and the event may be stale by
	// the time it is relayed.
	post, err := r.Store.GetPost(ctx, postID)
	if err != nil {
		if store.IsNotFound(err) && ev.EventName == fanout.KindPostDeleted {
			r.Hub.Publish(fanout.ThreadEvent{
				Kind:       fanout.KindPostDeleted,
				PostID:     postID,
				OccurredAt: ev.OccurredAt,
			})
			return
		}
		if !store.IsNotFound(err) {
			r.Log.Warn("relay: load post", zap.String("post_id", postID), zap.Error(err))
		}
		return
	}
	comments, err := r.Store.ListComments(ctx, postID)
	if err != nil {
		r.Log.Warn("relay: load comments", zap.String("post_id", postID), zap.Error(err))
		return
	}
	r.Hub.Publish(fanout.ThreadEvent{
		Kind:       ev.EventName,
		PostID:     postID,
		Post:       post,
		Comments:   comments,
		OccurredAt: ev.OccurredAt,
	})
}
