package reconciler

import (
	"context"
	"sync"
	"time"

	"market-agent/src/logger"
	"market-agent/src/models"

	"github.com/google/uuid"
)

const (
	timedOutReason = "timed out"

	// How often Run checks the loading deadline
	expireInterval = 250 * time.Millisecond
)

// -----------------------------------------------------------------------------

// Reconciler holds the display state of one client. One submission is pending
// at a time; relay events for it fill the slots independently.
type Reconciler struct {
	LoadingTimeout time.Duration // 0 waits forever
	Logger         *logger.Logger
	Now            func() time.Time

	mu        sync.Mutex
	requestID string
	deadline  time.Time
	slots     map[string]*Slot
	changed   chan struct{}
}

func NewReconciler(loadingTimeout time.Duration, log *logger.Logger) *Reconciler {
	r := &Reconciler{
		LoadingTimeout: loadingTimeout,
		Logger:         log,
		Now:            time.Now,
		slots:          make(map[string]*Slot, len(Slots)),
		changed:        make(chan struct{}, 1),
	}
	for _, name := range Slots {
		r.slots[name] = &Slot{}
	}
	return r
}

// -----------------------------------------------------------------------------

// Submit starts a new submission and returns its request id. Every slot
// becomes Loading with its previous value cleared, in one step.
func (r *Reconciler) Submit() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requestID = uuid.NewString()
	r.deadline = time.Time{}
	if r.LoadingTimeout > 0 {
		r.deadline = r.Now().Add(r.LoadingTimeout)
	}
	for _, name := range Slots {
		*r.slots[name] = Slot{Status: Loading}
	}
	r.notify()
	return r.requestID
}

// -----------------------------------------------------------------------------

// Receive applies one relay event. Events for another submission are dropped;
// events without a request id are accepted. It reports whether state changed.
func (r *Reconciler) Receive(event models.MRelayEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.RequestID != "" && event.RequestID != r.requestID {
		r.Logger.Debug("Ignoring %s event for request %s", event.Kind, event.RequestID)
		return false
	}

	switch event.Kind {
	case models.EventChart, models.EventTicker, models.EventMessage:
		*r.slots[event.Kind] = Slot{Status: Ready, Value: event.Payload}

	case models.EventError:
		reason := "request failed"
		if p, ok := event.Payload.(models.MErrorPayload); ok && p.Message != "" {
			reason = p.Message
		}
		if !r.fail(reason) {
			return false
		}

	default:
		r.Logger.Debug("Ignoring unknown event kind %q", event.Kind)
		return false
	}

	r.notify()
	return true
}

// -----------------------------------------------------------------------------

// Expire fails every slot still loading once the deadline has passed
func (r *Reconciler) Expire(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deadline.IsZero() || now.Before(r.deadline) {
		return false
	}
	if !r.fail(timedOutReason) {
		return false
	}
	r.Logger.Warning("Request %s timed out", r.requestID)
	r.notify()
	return true
}

// fail marks the loading slots Failed. Callers hold mu.
func (r *Reconciler) fail(reason string) bool {
	changed := false
	for _, name := range Slots {
		if slot := r.slots[name]; slot.Status == Loading {
			*slot = Slot{Status: Failed, Reason: reason}
			changed = true
		}
	}
	return changed
}

// -----------------------------------------------------------------------------

func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		RequestID: r.requestID,
		Chart:     *r.slots[SlotChart],
		Ticker:    *r.slots[SlotTicker],
		Message:   *r.slots[SlotMessage],
	}
}

// Changed is signalled after every state change. Signals coalesce.
func (r *Reconciler) Changed() <-chan struct{} {
	return r.changed
}

func (r *Reconciler) notify() {
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------

// Run applies events and expires the loading deadline until ctx ends. A
// closed stream stops delivery but not expiry, so a dropped relay still
// settles pending slots as Failed.
func (r *Reconciler) Run(ctx context.Context, events <-chan models.MRelayEvent) {
	ticker := time.NewTicker(expireInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				r.Logger.Warning("Event stream closed")
				events = nil
				continue
			}
			r.Receive(event)
		case <-ticker.C:
			r.Expire(r.Now())
		}
	}
}
