package practice

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeSubmitter records submitted events. When gated, SubmitPractice
// blocks until the gate closes.
type fakeSubmitter struct {
	mu      sync.Mutex
	events  []Event
	err     error
	started chan struct{}
	gate    chan struct{}
}

func (f *fakeSubmitter) SubmitPractice(_ context.Context, ev Event) error {
	f.mu.Lock()
	started := f.started
	gate := f.gate
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeSubmitter) submitted() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.events))
	copy(out, f.events)
	return out
}

func TestSubmitPostsEvent(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	var completed []Event
	rec := NewRecorder(sub, func(ev Event) { completed = append(completed, ev) })

	ev := Event{SongID: 7, FragmentID: "alicia|measure3", Rating: RatingMedium, DurationSeconds: 42}
	if err := rec.Submit(context.Background(), ev); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got := sub.submitted()
	if len(got) != 1 || got[0] != ev {
		t.Errorf("submitted = %+v, want [%+v]", got, ev)
	}
	if len(completed) != 1 {
		t.Errorf("completion hook ran %d times, want 1", len(completed))
	}
}

func TestSubmitNoOpsWithoutTarget(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	hookRan := false
	rec := NewRecorder(sub, func(Event) { hookRan = true })

	cases := []Event{
		{SongID: 0, FragmentID: "alicia|measure3", Rating: RatingEasy},
		{SongID: 7, FragmentID: "", Rating: RatingEasy},
		{},
	}
	for _, ev := range cases {
		if err := rec.Submit(context.Background(), ev); err != nil {
			t.Errorf("Submit(%+v) = %v, want nil no-op", ev, err)
		}
	}
	if len(sub.submitted()) != 0 {
		t.Errorf("no-op submits reached the wire: %+v", sub.submitted())
	}
	if hookRan {
		t.Error("completion hook ran for a no-op submit")
	}
}

func TestSubmitRejectsUnknownRating(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	rec := NewRecorder(sub, nil)

	for _, bad := range []Rating{"", "impossible", "EASY", "easy "} {
		ev := Event{SongID: 7, FragmentID: "alicia|measure3", Rating: bad}
		if err := rec.Submit(context.Background(), ev); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("Submit(rating=%q) = %v, want ErrInvalidRating", bad, err)
		}
	}
	if len(sub.submitted()) != 0 {
		t.Errorf("invalid ratings reached the wire: %+v", sub.submitted())
	}
}

func TestSubmitSingleInFlight(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{
		started: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	rec := NewRecorder(sub, nil)
	ev := Event{SongID: 7, FragmentID: "alicia|measure3", Rating: RatingHard}

	done := make(chan error, 1)
	go func() {
		done <- rec.Submit(context.Background(), ev)
	}()

	<-sub.started
	if !rec.Pending() {
		t.Error("Pending() = false during in-flight submit")
	}

	// Second click while the first is pending: rejected, not queued.
	if err := rec.Submit(context.Background(), ev); !errors.Is(err, ErrSubmitPending) {
		t.Errorf("second Submit = %v, want ErrSubmitPending", err)
	}

	close(sub.gate)
	if err := <-done; err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	if got := sub.submitted(); len(got) != 1 {
		t.Errorf("%d events on the wire, want exactly 1", len(got))
	}
	if rec.Pending() {
		t.Error("Pending() = true after completion")
	}

	// After completion the recorder accepts again.
	if err := rec.Submit(context.Background(), ev); err != nil {
		t.Errorf("Submit after completion: %v", err)
	}
}

func TestSubmitTransportFailureNotRetried(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{err: errors.New("connection reset")}
	hookRan := false
	rec := NewRecorder(sub, func(Event) { hookRan = true })

	ev := Event{SongID: 7, FragmentID: "alicia|measure3", Rating: RatingSnooze}
	err := rec.Submit(context.Background(), ev)
	if err == nil {
		t.Fatal("Submit should surface transport failure")
	}
	if hookRan {
		t.Error("completion hook ran on failure")
	}
	if rec.Pending() {
		t.Error("recorder stuck pending after failure")
	}

	// A failed event is reported lost, and the recorder stays usable.
	sub.mu.Lock()
	sub.err = nil
	sub.mu.Unlock()
	if err := rec.Submit(context.Background(), ev); err != nil {
		t.Errorf("Submit after failure: %v", err)
	}
}

func TestCompletionOrdering(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	var order []string
	rec := NewRecorder(sub, func(Event) {
		// By hook time the event must already be on the wire.
		if len(sub.submitted()) != 1 {
			t.Error("completion hook ran before the POST landed")
		}
		order = append(order, "hook")
	})

	ev := Event{SongID: 7, FragmentID: "alicia|measure3", Rating: RatingEasy}
	if err := rec.Submit(context.Background(), ev); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	order = append(order, "returned")

	if len(order) != 2 || order[0] != "hook" || order[1] != "returned" {
		t.Errorf("order = %v, want [hook returned]", order)
	}
}
