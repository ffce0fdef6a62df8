package audio

import (
	"testing"
	"time"
)

func chunkOf(vals ...int16) Chunk {
	return Chunk{Samples: vals, Frames: len(vals)}
}

func TestFrameQueueFIFO(t *testing.T) {
	q := NewFrameQueue()
	q.Push(chunkOf(1))
	q.Push(chunkOf(2))
	q.Push(chunkOf(3))

	for _, want := range []int16{1, 2, 3} {
		c, ok := q.Pop(time.Second)
		if !ok {
			t.Fatalf("expected chunk %d, queue empty", want)
		}
		if c.Samples[0] != want {
			t.Fatalf("expected %d, got %d", want, c.Samples[0])
		}
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, len=%d", q.Len())
	}
}

func TestFrameQueuePopTimeout(t *testing.T) {
	q := NewFrameQueue()

	start := time.Now()
	_, ok := q.Pop(50 * time.Millisecond)
	if ok {
		t.Fatalf("expected no data")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("pop returned too early: %v", elapsed)
	}

	// Non-positive timeout returns immediately.
	if _, ok := q.Pop(0); ok {
		t.Fatalf("expected no data on immediate pop")
	}
	q.Push(chunkOf(7))
	if c, ok := q.Pop(0); !ok || c.Samples[0] != 7 {
		t.Fatalf("expected queued chunk on immediate pop, got ok=%v", ok)
	}
}

func TestFrameQueuePopWakesOnPush(t *testing.T) {
	q := NewFrameQueue()
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push(chunkOf(9))
	}()

	c, ok := q.Pop(time.Second)
	if !ok || c.Samples[0] != 9 {
		t.Fatalf("expected pushed chunk, got ok=%v", ok)
	}
}

func TestFrameQueueConcurrentOrder(t *testing.T) {
	q := NewFrameQueue()
	const n = 200

	go func() {
		for i := 0; i < n; i++ {
			q.Push(chunkOf(int16(i)))
		}
	}()

	for i := 0; i < n; i++ {
		c, ok := q.Pop(time.Second)
		if !ok {
			t.Fatalf("queue dried up at %d", i)
		}
		if c.Samples[0] != int16(i) {
			t.Fatalf("out of order: expected %d, got %d", i, c.Samples[0])
		}
	}
}
