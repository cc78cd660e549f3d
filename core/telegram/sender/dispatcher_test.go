package sender

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestDispatcherRunsJobs(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2})
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		if err := d.Enqueue(context.Background(), Job{Action: "send", Run: func(context.Context) error {
			ran.Add(1)
			return nil
		}}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	d.Close()

	if got := ran.Load(); got != 5 {
		t.Fatalf("ran %d jobs, want 5", got)
	}
	if d.Completed() != 5 || d.ErrorCount() != 0 {
		t.Fatalf("completed=%d errors=%d", d.Completed(), d.ErrorCount())
	}
}

func TestDispatcherRetriesServerErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	err := d.Enqueue(context.Background(), Job{Action: "send", Run: func(context.Context) error {
		if calls.Add(1) < 3 {
			return &tele.Error{Code: 502, Description: "Bad Gateway"}
		}
		return nil
	}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d.Close()

	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("unexpected failure count %d", d.ErrorCount())
	}
}

func TestDispatcherDoesNotRetryClientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	_ = d.Enqueue(context.Background(), Job{Action: "send", Run: func(context.Context) error {
		calls.Add(1)
		return &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}
	}})
	d.Close()

	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("error count = %d, want 1", d.ErrorCount())
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	err := d.Enqueue(context.Background(), Job{Run: func(context.Context) error { return nil }})
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
	if err := d.Enqueue(context.Background(), Job{}); !errors.Is(err, ErrNilJob) {
		t.Fatalf("err = %v, want ErrNilJob", err)
	}
}

func TestSanitizeRedactsToken(t *testing.T) {
	got := sanitize(errors.New(`Post "https://api.telegram.org/bot123:ABC_def/sendMessage": timeout`))
	want := `Post "https://api.telegram.org/bot<redacted>/sendMessage": timeout`
	if got != want {
		t.Fatalf("got %q", got)
	}
}
