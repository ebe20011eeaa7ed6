package csmaca

import "testing"

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue(10)
	for i := 0; i < 5; i++ {
		q.Enqueue(NewDataFrame(BroadcastAddr, BroadcastAddr, 0, []byte{byte(i)}), 0)
	}
	for i := 0; i < 5; i++ {
		item, ok := q.Dequeue()
		if !ok {
			t.Fatalf("expected item %d", i)
		}
		if item.Frame.Payload[0] != byte(i) {
			t.Fatalf("out of order: got %d want %d", item.Frame.Payload[0], i)
		}
	}
	if !q.IsEmpty() {
		t.Fatal("expected queue empty after draining")
	}
}

func TestQueueBoundedOverflowDropsSilently(t *testing.T) {
	q := NewQueue(3)
	for i := 0; i < 5; i++ {
		q.Enqueue(NewDataFrame(BroadcastAddr, BroadcastAddr, 0, nil), 0)
	}
	if q.Size() != 3 {
		t.Fatalf("expected size capped at 3, got %d", q.Size())
	}
}

func TestQueueRemoveByPayloadRef(t *testing.T) {
	q := NewQueue(10)
	ref1 := q.Enqueue(NewDataFrame(BroadcastAddr, BroadcastAddr, 0, []byte{1}), 0)
	ref2 := q.Enqueue(NewDataFrame(BroadcastAddr, BroadcastAddr, 0, []byte{2}), 0)
	_ = ref1

	if !q.Remove(ref2) {
		t.Fatal("expected Remove to find ref2")
	}
	if q.Size() != 1 {
		t.Fatalf("expected 1 item left, got %d", q.Size())
	}
	item, _ := q.Peek()
	if item.Frame.Payload[0] != 1 {
		t.Fatalf("expected remaining item to be the first one enqueued")
	}
}

func TestQueueFlush(t *testing.T) {
	q := NewQueue(10)
	q.Enqueue(NewDataFrame(BroadcastAddr, BroadcastAddr, 0, nil), 0)
	q.Enqueue(NewDataFrame(BroadcastAddr, BroadcastAddr, 0, nil), 0)
	q.Flush()
	if !q.IsEmpty() {
		t.Fatal("expected queue empty after Flush")
	}
}
