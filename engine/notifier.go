// Package engine provides the building blocks shared by event-driven
// components: the wake-up notifier and the bounded message queue (in the
// fifoqueue subpackage).
package engine

// Notifier is a concurrency primitive for buffering the information that an
// event has occurred, without buffering the events themselves: any number of
// Notify calls collapse into at most one pending notification. Passing a
// Notifier by value is safe.
type Notifier struct {
	notifier chan struct{}
}

// NewNotifier instantiates a Notifier with no pending notification.
func NewNotifier() Notifier {
	return Notifier{notifier: make(chan struct{}, 1)}
}

// Notify marks that an event has occurred. Never blocks.
func (n Notifier) Notify() {
	select {
	case n.notifier <- struct{}{}:
	default:
	}
}

// Channel returns the channel a consumer selects on to be woken up.
func (n Notifier) Channel() <-chan struct{} {
	return n.notifier
}
