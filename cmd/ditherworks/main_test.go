package main

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/omervk/ditherworks/pkg/progress"
)

func TestWatchBatchReturnsOnPreStartFailure(t *testing.T) {
	// A rejected manifest means the job never starts and the event stream
	// never closes.
	events := make(chan progress.Event)
	done := make(chan error, 1)
	done <- errors.New("invalid manifest: no uploaded source matches \"missing.jpg\"")

	type result struct {
		failure string
		err     error
	}
	got := make(chan result, 1)
	go func() {
		failure, err := watchBatch(events, done, io.Discard)
		got <- result{failure, err}
	}()

	select {
	case r := <-got:
		if r.err == nil {
			t.Fatal("expected the conversion error")
		}
		if r.failure != "" {
			t.Errorf("no batch failure event was published, got %q", r.failure)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watchBatch hung on a batch that never started")
	}
}

func TestWatchBatchDrainsStreamOnSuccess(t *testing.T) {
	events := make(chan progress.Event, 4)
	events <- progress.Event{Kind: progress.KindInit, Total: 2}
	events <- progress.Event{Kind: progress.KindProgress, Current: 1, Total: 2, FileName: "a.jpg"}
	events <- progress.Event{Kind: progress.KindProgress, Current: 2, Total: 2, FileName: "b.jpg"}
	events <- progress.Event{Kind: progress.KindComplete, Current: 2, Total: 2}
	close(events)

	done := make(chan error, 1)
	done <- nil

	failure, err := watchBatch(events, done, io.Discard)
	if err != nil {
		t.Fatalf("watchBatch failed: %v", err)
	}
	if failure != "" {
		t.Errorf("unexpected failure message %q", failure)
	}
}

func TestWatchBatchReportsFailureMessage(t *testing.T) {
	events := make(chan progress.Event, 2)
	events <- progress.Event{Kind: progress.KindInit, Total: 3}
	events <- progress.Event{Kind: progress.KindError, Current: 1, Total: 3, Message: "c.jpg: unreadable image"}
	close(events)

	done := make(chan error, 1)
	done <- errors.New("c.jpg: unreadable image")

	failure, err := watchBatch(events, done, io.Discard)
	if err == nil {
		t.Fatal("expected the batch error")
	}
	if failure != "c.jpg: unreadable image" {
		t.Errorf("unexpected failure message %q", failure)
	}
}
