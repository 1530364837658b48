package eventbus

import "testing"

func TestPublishFansOut(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(4)
	c, unsubC := b.Subscribe(4)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: SceneRestarted, Frame: 21})

	for _, ch := range []<-chan Event{a, c} {
		e := <-ch
		if e.Type != SceneRestarted || e.Frame != 21 {
			t.Fatalf("got %+v", e)
		}
		if e.Time.IsZero() {
			t.Fatal("Publish should stamp Time")
		}
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: TaskFailed})
	b.Publish(Event{Type: TaskFailed})
	b.Publish(Event{Type: TaskFailed})

	if got := b.Dropped(); got != 2 {
		t.Fatalf("Dropped() = %d, want 2", got)
	}
}

func TestUnsubscribeClosesAndStopsDelivery(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub() // idempotent

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	// Must not panic after unsubscribe.
	b.Publish(Event{Type: RenderFailed})
}
