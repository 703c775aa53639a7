package workers

import (
	"chatter-box/contract"
	"chatter-box/domain/event"
	"context"
	"log/slog"
	"sync"
	"time"
)

// PresenceFanout broadcasts the online user list to every active connection
// each time someone connects or disconnects. The audience defaults to the
// registry sinks, BroadcastTo widens it to connections the registry no longer
// points at.
//
// Delivery is best effort: a sink that does not accept the event within
// sinkTimeout misses this broadcast and catches up with the next one.
// Changes queued while a broadcast is running are coalesced, the payload is
// always a fresh snapshot of the registry.
type PresenceFanout struct {
	log         *slog.Logger
	registry    contract.IPresenceRegistry
	audience    contract.SinkSource
	changes     chan event.PresenceChanged
	sinkTimeout time.Duration
	onBroadcast func(online int)
}

func NewPresenceFanout(log *slog.Logger, registry contract.IPresenceRegistry,
	bufferSize int, sinkTimeout time.Duration) *PresenceFanout {
	return &PresenceFanout{
		log:         log,
		registry:    registry,
		audience:    registry,
		changes:     make(chan event.PresenceChanged, bufferSize),
		sinkTimeout: sinkTimeout,
	}
}

// OnBroadcast registers a hook called with the size of every broadcast snapshot.
func (w *PresenceFanout) OnBroadcast(fn func(online int)) *PresenceFanout {
	w.onBroadcast = fn
	return w
}

// BroadcastTo replaces the set of sinks receiving online-users.
// It must be called before Run.
func (w *PresenceFanout) BroadcastTo(audience contract.SinkSource) *PresenceFanout {
	w.audience = audience
	return w
}

// Notify queues a presence transition without blocking the connection handler.
// When the queue is full a broadcast is already pending and will carry this change.
func (w *PresenceFanout) Notify(e event.PresenceChanged) {
	select {
	case w.changes <- e:
	default:
		w.log.Debug("Presence queue full, change coalesced", "user_id", e.UserID)
	}
}

func (w *PresenceFanout) Run(ctx context.Context) error {
	for {
		select {
		case change := <-w.changes:
			w.log.Debug("Presence changed", "user_id", change.UserID, "online", change.Online)
			w.drain()
			w.Broadcast(ctx)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence fanout")
			return nil
		}
	}
}

func (w *PresenceFanout) drain() {
	for {
		select {
		case <-w.changes:
		default:
			return
		}
	}
}

// Broadcast sends the current snapshot to every registered sink in parallel
// and waits for all of them, so consecutive broadcasts never overtake each other.
func (w *PresenceFanout) Broadcast(ctx context.Context) {
	evt := event.OnlineUsersChanged{UserIDs: w.registry.SnapshotIDs(), At: time.Now().UTC()}
	sinks := w.audience.Sinks()
	if w.onBroadcast != nil {
		w.onBroadcast(len(evt.UserIDs))
	}

	var wg sync.WaitGroup
	for _, sink := range sinks {
		wg.Add(1)
		go func(sink contract.EventSink) {
			defer wg.Done()
			sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
			defer cancel()
			if err := sink.Consume(sinkCtx, evt); err != nil {
				w.log.Debug("Online users not delivered", "error", err)
			}
		}(sink)
	}
	wg.Wait()
}
