package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()

	item := "test-item-1"
	err := q.Enqueue(ctx, item)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	items, err := q.Dequeue(ctx, 1)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}

	if items[0].(string) != item {
		t.Errorf("Expected %s, got %v", item, items[0])
	}
}

func TestMemoryQueue_FIFOOrder(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if err := q.Enqueue(ctx, i); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	var got []int
	for len(got) < 20 {
		items, err := q.Dequeue(ctx, 7)
		if err != nil {
			t.Fatalf("Dequeue failed: %v", err)
		}
		for _, item := range items {
			got = append(got, item.(int))
		}
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("Order broken at %d: got %d", i, v)
		}
	}
}

func TestMemoryQueue_DequeueWithTimeout(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()

	// Timeout with no items
	start := time.Now()
	items, err := q.DequeueWithTimeout(ctx, 1, 100*time.Millisecond)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("DequeueWithTimeout failed: %v", err)
	}

	if len(items) != 0 {
		t.Errorf("Expected 0 items, got %d", len(items))
	}

	if elapsed < 100*time.Millisecond {
		t.Errorf("Expected timeout, but returned early: %v", elapsed)
	}

	// With an item available
	if err := q.Enqueue(ctx, "test"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	items, err = q.DequeueWithTimeout(ctx, 1, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("DequeueWithTimeout failed: %v", err)
	}

	if len(items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(items))
	}
}

func TestMemoryQueue_Length(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()

	length, err := q.Length(ctx)
	if err != nil {
		t.Fatalf("Length failed: %v", err)
	}
	if length != 0 {
		t.Errorf("Expected length 0, got %d", length)
	}

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(ctx, i); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	length, err = q.Length(ctx)
	if err != nil {
		t.Fatalf("Length failed: %v", err)
	}
	if length != 5 {
		t.Errorf("Expected length 5, got %d", length)
	}
}

func TestMemoryQueue_EnqueueNeverBlocks(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()

	// No consumer: the queue is unbounded, so a large burst must not
	// slow enqueueing down.
	start := time.Now()
	for i := 0; i < 100000; i++ {
		if err := q.Enqueue(ctx, i); err != nil {
			t.Fatalf("Enqueue failed at %d: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Errorf("Enqueue of 100000 items took %v, expected near-instant", elapsed)
	}

	length, _ := q.Length(ctx)
	if length != 100000 {
		t.Errorf("Expected length 100000, got %d", length)
	}
}

func TestMemoryQueue_Concurrent(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()
	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := q.Enqueue(ctx, i); err != nil {
					t.Errorf("Enqueue failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	total := 0
	for total < producers*perProducer {
		items, err := q.DequeueWithTimeout(ctx, 64, 100*time.Millisecond)
		if err != nil {
			t.Fatalf("Dequeue failed: %v", err)
		}
		if len(items) == 0 {
			break
		}
		total += len(items)
	}

	if total != producers*perProducer {
		t.Errorf("Expected %d items, got %d", producers*perProducer, total)
	}
}

func TestMemoryQueue_Closed(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))

	ctx := context.Background()

	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := q.Enqueue(ctx, "late"); err != ErrQueueClosed {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}

	if _, err := q.Dequeue(ctx, 1); err != ErrQueueClosed {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}
}

func TestMemoryQueue_DequeueUnblocksOnEnqueue(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()

	done := make(chan []interface{}, 1)
	go func() {
		items, err := q.Dequeue(ctx, 1)
		if err != nil {
			t.Errorf("Dequeue failed: %v", err)
		}
		done <- items
	}()

	time.Sleep(20 * time.Millisecond)
	if err := q.Enqueue(ctx, "wake"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	select {
	case items := <-done:
		if len(items) != 1 || items[0].(string) != "wake" {
			t.Errorf("Unexpected items: %v", items)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Dequeue did not unblock after Enqueue")
	}
}
