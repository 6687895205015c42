package eventbus

import (
	"sync"
	"testing"
	"time"
)

func TestAsyncEventBusDeliversInOrder(t *testing.T) {
	bus := NewAsyncEventBus(1, nil)
	bus.Start()
	defer bus.Stop()

	var (
		mu  sync.Mutex
		got []int
	)
	if err := bus.Subscribe(EventSessionUpdated, func(n int) {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	for i := 0; i < 50; i++ {
		bus.PublishAsync(EventSessionUpdated, i)
	}
	bus.WaitAsync()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 50 {
		t.Fatalf("delivered %d events, want 50", len(got))
	}
	for i, n := range got {
		if n != i {
			t.Fatalf("event %d delivered as %d", i, n)
		}
	}
}

func TestAsyncEventBusRecoversFromPanic(t *testing.T) {
	bus := NewAsyncEventBus(1, nil)
	bus.Start()
	defer bus.Stop()

	calls := 0
	_ = bus.Subscribe(EventSettingsChanged, func(id string) {
		calls++
		if id == "boom" {
			panic("subscriber failure")
		}
	})

	bus.PublishAsync(EventSettingsChanged, "boom")
	bus.PublishAsync(EventSettingsChanged, "ok")
	bus.WaitAsync()

	if calls != 2 {
		t.Fatalf("calls=%d, worker must survive a panicking subscriber", calls)
	}
}

func TestSyncPublishAndUnsubscribe(t *testing.T) {
	bus := NewAsyncEventBus(0, nil)
	calls := 0
	fn := func() { calls++ }
	_ = bus.Subscribe("t", fn)
	if !bus.HasCallback("t") {
		t.Fatal("expected subscriber")
	}
	bus.Publish("t")
	if err := bus.Unsubscribe("t", fn); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	bus.Publish("t")
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
	bus.Stop()
	bus.Stop()
}

func TestPublishLatestKeepsNewestUnderSaturation(t *testing.T) {
	bus := NewAsyncEventBus(1, nil)
	bus.Start()
	defer bus.Stop()

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var (
		mu  sync.Mutex
		got []int
	)
	_ = bus.Subscribe(EventSessionUpdated, func(n int) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	})

	bus.PublishLatest(EventSessionUpdated, "c1", 0)
	<-entered
	for i := 1; i < defaultQueueSize+100; i++ {
		bus.PublishLatest(EventSessionUpdated, "c1", i)
	}
	close(release)
	bus.WaitAsync()

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 || got[len(got)-1] != defaultQueueSize+99 {
		t.Fatalf("last delivered=%v, want %d", got, defaultQueueSize+99)
	}
	if len(got) != 2 {
		t.Fatalf("backlog must coalesce to one event, delivered %v", got)
	}
}

func TestPublishLatestIsPerKey(t *testing.T) {
	bus := NewAsyncEventBus(1, nil)

	var got []string
	_ = bus.Subscribe(EventSessionUpdated, func(id string, n int) {
		got = append(got, id)
		if n != 2 {
			t.Errorf("client %s delivered %d, want newest 2", id, n)
		}
	})

	for n := 0; n < 3; n++ {
		bus.PublishLatest(EventSessionUpdated, "a", "a", n)
		bus.PublishLatest(EventSessionUpdated, "b", "b", n)
	}
	bus.Start()
	defer bus.Stop()
	bus.WaitAsync()

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected delivery order %v", got)
	}
}

func TestWaitAsyncReturnsAfterStop(t *testing.T) {
	bus := NewAsyncEventBus(1, nil)
	_ = bus.Subscribe(EventSessionUpdated, func(int) {})

	for i := 0; i < 5; i++ {
		bus.PublishAsync(EventSessionUpdated, i)
	}
	bus.PublishLatest(EventSessionUpdated, "c1", 9)
	bus.Stop()

	done := make(chan struct{})
	go func() {
		bus.WaitAsync()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitAsync blocked after Stop")
	}

	bus.PublishAsync(EventSessionUpdated, 1)
	bus.PublishLatest(EventSessionUpdated, "c1", 1)
	bus.WaitAsync()
}
