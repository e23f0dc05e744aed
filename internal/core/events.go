package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/orderimport/internal/logging"
)

// ImportEvent is broadcast after an import commits or a session is toggled.
type ImportEvent struct {
	TenantID    string       `json:"tenantId"`
	Action      ImportAction `json:"action"`
	SessionID   uuid.UUID    `json:"sessionId"`
	FileName    string       `json:"fileName"`
	Timestamp   time.Time    `json:"timestamp"`
	OrdersCount *int         `json:"ordersCount,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// Observer consumes import events. Failures are logged and never reach the
// code that dispatched the event.
type Observer interface {
	Name() string
	Handle(ctx context.Context, event ImportEvent) error
}

// Dispatcher fans events out to observers.
type Dispatcher struct {
	observers []Observer
}

// NewDispatcher registers observers. Nil entries are skipped.
func NewDispatcher(observers ...Observer) *Dispatcher {
	d := &Dispatcher{}
	for _, o := range observers {
		if o != nil {
			d.observers = append(d.observers, o)
		}
	}
	return d
}

// Observers returns the registered observer names.
func (d *Dispatcher) Observers() []string {
	names := make([]string, len(d.observers))
	for i, o := range d.observers {
		names[i] = o.Name()
	}
	return names
}

// Dispatch runs every observer concurrently and waits for all of them.
// Observers see a context that is not cancelled with the request, since the
// change they report has already happened.
func (d *Dispatcher) Dispatch(ctx context.Context, event ImportEvent) {
	if len(d.observers) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	logger := logging.WithFields(ctx, "action", event.Action, "session_id", event.SessionID)

	var g errgroup.Group
	for _, o := range d.observers {
		g.Go(func() error {
			if err := d.notify(ctx, o, event); err != nil {
				observerFailures.WithLabelValues(o.Name()).Inc()
				logger.Error("observer failed", "observer", o.Name(), "error", err)
			}
			// Never fail the group; siblings must all run.
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) notify(ctx context.Context, o Observer, event ImportEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return o.Handle(ctx, event)
}
