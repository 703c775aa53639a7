//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chatter-box/domain"
	"chatter-box/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the push side of a live connection.
// Consume must never block past ctx and must not fail once the connection is gone.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IPresenceRegistry maps a user to the connection currently reachable for push delivery.
// Absence only means no live connection is registered.
type IPresenceRegistry interface {
	Register(userID domain.UserID, sink EventSink)
	Unregister(userID domain.UserID)
	UnregisterSink(userID domain.UserID, sink EventSink) bool
	Lookup(userID domain.UserID) (EventSink, bool)
	SnapshotIDs() []domain.UserID
	Sinks() []EventSink
}

// SinkSource lists the sinks a broadcast has to reach.
type SinkSource interface {
	Sinks() []EventSink
}

// PresenceNotifier receives connect and disconnect transitions.
type PresenceNotifier interface {
	Notify(e event.PresenceChanged)
}
