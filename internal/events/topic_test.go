package events

import "testing"

func TestPublishReachesSubscribersInOrder(t *testing.T) {
	topic := NewTopic[int]()
	var got []string
	topic.Subscribe(func(v int) { got = append(got, "a") })
	topic.Subscribe(func(v int) { got = append(got, "b") })

	topic.Publish(1)

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	topic := NewTopic[string]()
	calls := 0
	unsub := topic.Subscribe(func(string) { calls++ })

	topic.Publish("x")
	unsub()
	unsub()
	topic.Publish("y")

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestLastTracksMostRecentValue(t *testing.T) {
	topic := NewTopic[int]()
	if _, ok := topic.Last(); ok {
		t.Fatal("expected no value before first publish")
	}
	topic.Publish(3)
	topic.Publish(7)
	if v, ok := topic.Last(); !ok || v != 7 {
		t.Fatalf("expected last value 7, got %d (ok=%v)", v, ok)
	}
}

func TestChanKeepsLatestWhenFull(t *testing.T) {
	topic := NewTopic[int]()
	ch, cancel := topic.Chan(1)
	defer cancel()

	topic.Publish(1)
	topic.Publish(2)
	topic.Publish(3)

	if v := <-ch; v != 3 {
		t.Fatalf("expected latest value 3, got %d", v)
	}
}

func TestChanCancelClosesChannel(t *testing.T) {
	topic := NewTopic[int]()
	ch, cancel := topic.Chan(4)
	cancel()
	cancel()

	topic.Publish(1)
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
}
