package progress

import (
	"sync"
	"testing"
	"time"
)

func collect(t *testing.T, ch <-chan Event, n int) []Event {
	t.Helper()
	events := make([]Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

func TestSubscribeReplaysSnapshot(t *testing.T) {
	h := NewHub()
	h.Open("job-1")

	ch, unsub := h.Subscribe("job-1")
	defer unsub()

	events := collect(t, ch, 1)
	if events[0].Kind != KindInit {
		t.Errorf("expected init replay, got %s", events[0].Kind)
	}
}

func TestFullLifecycle(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe("job-1")
	defer unsub()

	h.Start("job-1", 3)
	h.Report("job-1", 1, 3, "a.jpg")
	h.Report("job-1", 2, 3, "b.jpg")
	h.Report("job-1", 3, 3, "c.jpg")
	h.Complete("job-1")

	// snapshot init + start init + 3 progress + complete
	events := collect(t, ch, 6)

	kinds := []Kind{KindInit, KindInit, KindProgress, KindProgress, KindProgress, KindComplete}
	for i, want := range kinds {
		if events[i].Kind != want {
			t.Errorf("event %d: expected %s, got %s", i, want, events[i].Kind)
		}
	}

	// current must be monotonically non-decreasing.
	last := -1
	for i, ev := range events {
		if ev.Current < last {
			t.Errorf("event %d: current went backwards (%d -> %d)", i, last, ev.Current)
		}
		last = ev.Current
	}

	// channel must be closed after the terminal event.
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after complete")
	}
}

func TestFailBroadcastsErrorAndCloses(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe("job-1")
	defer unsub()

	h.Start("job-1", 5)
	h.Report("job-1", 2, 5, "b.jpg")
	h.Fail("job-1", "c.jpg: unreadable image")

	events := collect(t, ch, 4)
	last := events[len(events)-1]
	if last.Kind != KindError {
		t.Fatalf("expected terminal error event, got %s", last.Kind)
	}
	if last.Message != "c.jpg: unreadable image" {
		t.Errorf("unexpected message %q", last.Message)
	}
	if last.Current != 2 || last.Total != 5 {
		t.Errorf("expected terminal counters 2/5, got %d/%d", last.Current, last.Total)
	}
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after fail")
	}
}

func TestTerminalJobIsForgotten(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe("job-1")
	h.Start("job-1", 1)
	h.Complete("job-1")
	collect(t, ch, 3)
	unsub()

	h.mu.Lock()
	_, exists := h.jobs["job-1"]
	h.mu.Unlock()
	if exists {
		t.Error("terminal job should have been garbage collected")
	}
}

func TestStaleUnsubscribeLeavesReusedJobIDAlone(t *testing.T) {
	h := NewHub()
	ch1, unsub1 := h.Subscribe("job-1")
	h.Start("job-1", 1)
	h.Complete("job-1")
	collect(t, ch1, 3)

	// The id is reused by a fresh job with its own subscriber.
	ch2, unsub2 := h.Subscribe("job-1")
	defer unsub2()
	h.Start("job-1", 2)

	// The stale unsubscribe must not remove the live job.
	unsub1()

	h.mu.Lock()
	_, exists := h.jobs["job-1"]
	h.mu.Unlock()
	if !exists {
		t.Fatal("live job was removed by a stale unsubscribe")
	}

	h.Report("job-1", 1, 2, "a.jpg")
	h.Complete("job-1")

	// The live subscriber still sees the full lifecycle and a closed channel.
	deadline := time.After(2 * time.Second)
	var last Event
	for {
		select {
		case ev, ok := <-ch2:
			if !ok {
				if last.Kind != KindComplete {
					t.Errorf("expected terminal complete event, got %s", last.Kind)
				}
				return
			}
			last = ev
		case <-deadline:
			t.Fatal("subscriber channel never closed after completion")
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe("job-1")
	collect(t, ch, 1)
	unsub()

	h.Start("job-1", 10)
	h.Report("job-1", 1, 10, "a.jpg")

	// The channel closes without delivering the post-unsubscribe events.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel never closed after unsubscribe")
		}
	}
}

func TestSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	h := NewHub()
	_, unsub := h.Subscribe("job-1")
	defer unsub()

	// Nobody reads the channel; publishing must still return promptly.
	done := make(chan struct{})
	go func() {
		h.Start("job-1", 100)
		for i := 1; i <= 100; i++ {
			h.Report("job-1", i, 100, "x.jpg")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
}

func TestConcurrentReporters(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe("job-1")
	defer unsub()
	h.Start("job-1", 50)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			h.Report("job-1", n, 50, "")
		}(i)
	}
	wg.Wait()
	h.Complete("job-1")

	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}

	last := -1
	for i, ev := range events {
		if ev.Current < last {
			t.Errorf("event %d: current went backwards (%d -> %d)", i, last, ev.Current)
		}
		last = ev.Current
	}
	if events[len(events)-1].Kind != KindComplete {
		t.Errorf("expected complete terminal event, got %s", events[len(events)-1].Kind)
	}
}
