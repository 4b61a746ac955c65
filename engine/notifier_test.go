package engine

import (
	"sync"
	"testing"
)

// TestNotifier_PassByValue verifies that passing Notifier by value is safe.
func TestNotifier_PassByValue(t *testing.T) {
	t.Parallel()
	notifier := NewNotifier()

	var sent sync.WaitGroup
	sent.Add(1)
	go func(n Notifier) {
		n.Notify()
		sent.Done()
	}(notifier)
	sent.Wait()

	select {
	case <-notifier.Channel(): // expected
	default:
		t.Fail()
	}
}

// TestNotifier_NoNotificationsInitialization verifies that a Notifier starts
// without a pending notification.
func TestNotifier_NoNotificationsInitialization(t *testing.T) {
	t.Parallel()
	notifier := NewNotifier()
	select {
	case <-notifier.Channel():
		t.Fail()
	default: // expected
	}
}

// TestNotifier_ManyNotifications verifies that repeated notifications
// without a consumer collapse into a single pending one.
func TestNotifier_ManyNotifications(t *testing.T) {
	t.Parallel()
	notifier := NewNotifier()

	var sent sync.WaitGroup
	for i := 0; i < 10; i++ {
		sent.Add(1)
		go func() {
			notifier.Notify()
			sent.Done()
		}()
	}
	sent.Wait()

	select {
	case <-notifier.Channel(): // expected
	default:
		t.Fail()
	}
	select {
	case <-notifier.Channel():
		t.Fail()
	default: // expected
	}
}
