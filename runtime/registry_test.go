package runtime

import (
	"chatter-box/domain"
	"chatter-box/domain/event"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type Sink struct {
	name string
}

func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func TestRegistry_Register_Then_Lookup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink := &Sink{name: "alice"}

	// Given no user is connected
	_, ok := registry.Lookup("alice")
	req.False(ok)
	req.Empty(registry.SnapshotIDs())

	// When a user registers
	registry.Register("alice", sink)

	// Then the sink is reachable
	found, ok := registry.Lookup("alice")
	req.True(ok)
	req.Same(sink, found)
	req.Equal([]domain.UserID{"alice"}, registry.SnapshotIDs())
	req.Len(registry.Sinks(), 1)
}

func TestRegistry_Last_Connect_Wins(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first := &Sink{name: "first"}
	second := &Sink{name: "second"}

	registry.Register("alice", first)
	registry.Register("alice", second)

	found, ok := registry.Lookup("alice")
	req.True(ok)
	req.Same(second, found)

	// The replaced connection closing must not evict the new one
	req.False(registry.UnregisterSink("alice", first))
	found, ok = registry.Lookup("alice")
	req.True(ok)
	req.Same(second, found)

	req.True(registry.UnregisterSink("alice", second))
	_, ok = registry.Lookup("alice")
	req.False(ok)
}

func TestRegistry_Unregister_Absent_Is_Noop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Register("bob", &Sink{})

	registry.Unregister("alice")
	registry.Unregister("bob")
	registry.Unregister("bob")

	req.Empty(registry.SnapshotIDs())
}

func TestRegistry_SnapshotIDs_Sorted(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	for _, id := range []domain.UserID{"carol", "alice", "bob"} {
		registry.Register(id, &Sink{})
	}
	req.Equal([]domain.UserID{"alice", "bob", "carol"}, registry.SnapshotIDs())
}

func TestRegistry_Concurrent_Interleaving(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	stable := &Sink{name: "stable"}
	registry.Register("stable", stable)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := domain.UserID(fmt.Sprintf("user-%d", i))
			sink := &Sink{name: string(id)}
			registry.Register(id, sink)
			found, ok := registry.Lookup(id)
			if ok && found == sink {
				registry.Unregister(id)
			}
			_ = registry.SnapshotIDs()
		}(i)
	}
	wg.Wait()

	found, ok := registry.Lookup("stable")
	req.True(ok)
	req.Same(stable, found)
	req.Equal([]domain.UserID{"stable"}, registry.SnapshotIDs())
}
