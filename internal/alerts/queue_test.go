package alerts

import (
	"fmt"
	"sync"
	"testing"
)

type depthSpy struct {
	mu   sync.Mutex
	last int
	hits int
}

func (d *depthSpy) SetQueueDepth(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = n
	d.hits++
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(nil)
	for i := range 5 {
		q.Enqueue(fmt.Sprintf("/data/intruders/%d.jpg", i))
	}
	if q.Len() != 5 {
		t.Fatalf("expected 5 jobs, got %d", q.Len())
	}

	for i := range 5 {
		job, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: queue unexpectedly empty", i)
		}
		want := fmt.Sprintf("/data/intruders/%d.jpg", i)
		if job.Path != want {
			t.Errorf("pop %d: got %s, want %s", i, job.Path, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("expected empty queue")
	}
}

func TestQueue_EnqueueAssignsIdentity(t *testing.T) {
	q := NewQueue(nil)
	a := q.Enqueue("a.jpg")
	b := q.Enqueue("b.jpg")
	if a.ID == b.ID {
		t.Error("expected distinct job ids")
	}
	if a.EnqueuedAt.IsZero() {
		t.Error("expected enqueue time to be set")
	}
}

func TestQueue_ReadySignal(t *testing.T) {
	q := NewQueue(nil)

	select {
	case <-q.Ready():
		t.Fatal("ready signalled on empty queue")
	default:
	}

	// several enqueues collapse into one pending signal and never block
	for range 10 {
		q.Enqueue("x.jpg")
	}
	select {
	case <-q.Ready():
	default:
		t.Fatal("expected ready signal after enqueue")
	}
	select {
	case <-q.Ready():
		t.Fatal("expected a single buffered signal")
	default:
	}
}

func TestQueue_ConcurrentEnqueue(t *testing.T) {
	q := NewQueue(nil)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(fmt.Sprintf("%d.jpg", i))
		}()
	}
	wg.Wait()

	if q.Len() != 50 {
		t.Fatalf("expected 50 jobs, got %d", q.Len())
	}
	seen := make(map[string]bool)
	for {
		job, ok := q.Pop()
		if !ok {
			break
		}
		if seen[job.Path] {
			t.Errorf("duplicate job %s", job.Path)
		}
		seen[job.Path] = true
	}
	if len(seen) != 50 {
		t.Errorf("expected 50 distinct jobs, got %d", len(seen))
	}
}

func TestQueue_RecordsDepth(t *testing.T) {
	spy := &depthSpy{}
	q := NewQueue(spy)
	q.Enqueue("a.jpg")
	q.Enqueue("b.jpg")
	if spy.last != 2 {
		t.Errorf("expected depth 2, got %d", spy.last)
	}
	q.Pop()
	if spy.last != 1 {
		t.Errorf("expected depth 1, got %d", spy.last)
	}
	if spy.hits != 3 {
		t.Errorf("expected 3 depth updates, got %d", spy.hits)
	}
}
