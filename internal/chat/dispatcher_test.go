package chat

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitForEditDelivers(t *testing.T) {
	d := NewDispatcher()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Give the waiter time to register before publishing.
		time.Sleep(10 * time.Millisecond)
		d.PublishEdit(Edit{
			Old: Message{ID: "m1", Content: "old"},
			New: Message{ID: "m1", Content: "new"},
		})
	}()

	e, err := d.WaitForEdit(context.Background(), time.Second, func(e Edit) bool {
		return e.New.ID == "m1" && e.Old.Content != e.New.Content
	})
	if err != nil {
		t.Fatalf("WaitForEdit: %v", err)
	}
	if e.New.Content != "new" {
		t.Errorf("got content %q, want %q", e.New.Content, "new")
	}
	<-done
}

func TestWaitForEditIgnoresNonMatching(t *testing.T) {
	d := NewDispatcher()

	go func() {
		time.Sleep(10 * time.Millisecond)
		d.PublishEdit(Edit{
			Old: Message{ID: "other", Content: "a"},
			New: Message{ID: "other", Content: "b"},
		})
	}()

	_, err := d.WaitForEdit(context.Background(), 50*time.Millisecond, func(e Edit) bool {
		return e.New.ID == "m1"
	})
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("err = %v, want ErrWaitTimeout", err)
	}
}

func TestWaitForReactionTimeout(t *testing.T) {
	d := NewDispatcher()

	start := time.Now()
	_, err := d.WaitForReaction(context.Background(), 20*time.Millisecond, func(Reaction) bool {
		return true
	})
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("err = %v, want ErrWaitTimeout", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("returned before timeout elapsed")
	}
}

func TestWaitForReactionContextCancel(t *testing.T) {
	d := NewDispatcher()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := d.WaitForReaction(ctx, time.Minute, func(Reaction) bool { return true })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDispatcherMultipleWaiters(t *testing.T) {
	d := NewDispatcher()

	results := make(chan string, 2)
	for _, id := range []string{"a", "b"} {
		id := id
		go func() {
			r, err := d.WaitForReaction(context.Background(), time.Second, func(r Reaction) bool {
				return r.MessageID == id
			})
			if err != nil {
				results <- "err:" + err.Error()
				return
			}
			results <- r.MessageID
		}()
	}

	time.Sleep(10 * time.Millisecond)
	d.PublishReaction(Reaction{MessageID: "a", UserID: "u", Emoji: "🔁"})
	d.PublishReaction(Reaction{MessageID: "b", UserID: "u", Emoji: "🔁"})

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			got[r] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for waiters")
		}
	}
	if !got["a"] || !got["b"] {
		t.Errorf("waiters got %v, want both a and b", got)
	}
}

func TestWaiterRemovedAfterDelivery(t *testing.T) {
	d := NewDispatcher()

	go func() {
		time.Sleep(10 * time.Millisecond)
		d.PublishEdit(Edit{New: Message{ID: "m"}})
	}()

	if _, err := d.WaitForEdit(context.Background(), time.Second, func(e Edit) bool { return true }); err != nil {
		t.Fatalf("WaitForEdit: %v", err)
	}

	d.mu.Lock()
	n := len(d.edits)
	d.mu.Unlock()
	if n != 0 {
		t.Errorf("%d edit waiters still registered, want 0", n)
	}
}
