// Package lifecycle defines the seams between the Engage SDK and the host
// application's runtime: browser-style lifecycle signals, a scheduler for
// repeating and delayed work, and an injectable clock.
//
// The SDK never touches ambient globals. The embedding application (or its
// wasm shim) translates real visibility/focus/unload events into Signal
// values and feeds them through a SignalSource; tests inject signals and
// virtual time deterministically.
package lifecycle

import "sync"

// Kind identifies a lifecycle signal.
type Kind int

const (
	// VisibilityHidden fires when the page/tab is no longer visible.
	VisibilityHidden Kind = iota
	// VisibilityVisible fires when the page/tab becomes visible again.
	VisibilityVisible
	// FocusGained fires when the window gains input focus.
	FocusGained
	// FocusLost fires when the window loses input focus. The signal carries
	// enough detail to distinguish a real "user left" blur from an in-page
	// focus shift (clicking an iframe or embedded video player).
	FocusLost
	// PageHide fires when the page is being hidden for navigation or unload.
	PageHide
	// PageFreeze fires when the browser freezes the page (bfcache, resource
	// reclamation).
	PageFreeze
	// BeforeUnload fires synchronously before the page is torn down. This is
	// the only signal whose handler must complete synchronously.
	BeforeUnload
	// Online fires when network connectivity returns.
	Online
	// Offline fires when network connectivity is lost.
	Offline
	// PowerChange fires on a battery charging-state change.
	PowerChange
)

// String returns the snake_case name of the signal kind.
func (k Kind) String() string {
	switch k {
	case VisibilityHidden:
		return "visibility_hidden"
	case VisibilityVisible:
		return "visibility_visible"
	case FocusGained:
		return "focus_gained"
	case FocusLost:
		return "focus_lost"
	case PageHide:
		return "page_hide"
	case PageFreeze:
		return "page_freeze"
	case BeforeUnload:
		return "before_unload"
	case Online:
		return "online"
	case Offline:
		return "offline"
	case PowerChange:
		return "power_change"
	default:
		return "unknown"
	}
}

// Signal is one lifecycle event delivered to the SDK.
type Signal struct {
	Kind Kind

	// WithinPage is set on FocusLost when focus moved to another element
	// inside the same document. Such blurs are not "user left" signals.
	WithinPage bool

	// ActiveElement is the tag name of the element holding focus after a
	// FocusLost (e.g. "IFRAME", "VIDEO"). Embedded players keep the session
	// alive even though the window reports a blur.
	ActiveElement string
}

// Handler receives lifecycle signals.
type Handler func(Signal)

// SignalSource delivers lifecycle signals to subscribers. Implementations
// must deliver signals in the order they occurred; delivery may be
// synchronous with the originating event (and is, for BeforeUnload).
type SignalSource interface {
	// Subscribe registers a handler and returns a function that removes it.
	// The returned unsubscribe must be safe to call more than once.
	Subscribe(Handler) (unsubscribe func())
}

// Dispatcher is a basic SignalSource fed by the host application.
// It is safe for concurrent use.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[int]Handler
	order    []int
	nextID   int
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[int]Handler),
	}
}

// Subscribe implements SignalSource.
func (d *Dispatcher) Subscribe(h Handler) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.handlers[id] = h
	d.order = append(d.order, id)
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if _, ok := d.handlers[id]; !ok {
			return
		}
		delete(d.handlers, id)
		for i, v := range d.order {
			if v == id {
				d.order = append(d.order[:i], d.order[i+1:]...)
				break
			}
		}
	}
}

// Emit delivers a signal synchronously to all current subscribers, in
// subscription order. Handlers run outside the dispatcher lock so a handler
// may subscribe or unsubscribe without deadlocking.
func (d *Dispatcher) Emit(sig Signal) {
	d.mu.Lock()
	handlers := make([]Handler, 0, len(d.order))
	for _, id := range d.order {
		handlers = append(handlers, d.handlers[id])
	}
	d.mu.Unlock()

	for _, h := range handlers {
		h(sig)
	}
}
