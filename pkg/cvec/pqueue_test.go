package cvec

import "testing"

func TestPQueueMinFirst(t *testing.T) {
	q := newPQueue(pqMinFirst, 0)
	_ = q.TryPush(1, 5.0)
	_ = q.TryPush(2, 1.0)
	_ = q.TryPush(3, 3.0)

	item, ok := q.PopItem()
	if !ok || item.slot != 2 {
		t.Fatalf("first pop = %+v, want slot 2 (lowest score)", item)
	}
}

func TestPQueueMaxFirst(t *testing.T) {
	q := newPQueue(pqMaxFirst, 0)
	_ = q.TryPush(1, 5.0)
	_ = q.TryPush(2, 1.0)
	_ = q.TryPush(3, 3.0)

	item, ok := q.PopItem()
	if !ok || item.slot != 1 {
		t.Fatalf("first pop = %+v, want slot 1 (highest score)", item)
	}
}

func TestPQueueCapacity(t *testing.T) {
	q := newPQueue(pqMinFirst, 2)
	if err := q.TryPush(1, 1.0); err != nil {
		t.Fatal(err)
	}
	if err := q.TryPush(2, 2.0); err != nil {
		t.Fatal(err)
	}
	if err := q.TryPush(3, 3.0); err == nil {
		t.Error("expected error pushing past capacity")
	}
}

func TestPQueuePushBoundedEvictsWorst(t *testing.T) {
	// A pqMinFirst queue's root is its worst-kept candidate, so bounding
	// it should evict the lowest score on overflow.
	q := newPQueue(pqMinFirst, 0)
	q.PushBounded(1, 5.0, 2)
	q.PushBounded(2, 1.0, 2)
	q.PushBounded(3, 3.0, 2)

	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}
	slots := q.Slots()
	for _, s := range slots {
		if s == 2 {
			t.Error("lowest-scored slot 2 should have been evicted")
		}
	}
}

func TestPQueuePeekDoesNotRemove(t *testing.T) {
	q := newPQueue(pqMinFirst, 0)
	_ = q.TryPush(1, 1.0)
	_, ok := q.Peek()
	if !ok {
		t.Fatal("expected Peek to find an item")
	}
	if q.Len() != 1 {
		t.Errorf("Len after Peek = %d, want 1", q.Len())
	}
}

func TestPQueueEmptyPopAndPeek(t *testing.T) {
	q := newPQueue(pqMinFirst, 0)
	if _, ok := q.PopItem(); ok {
		t.Error("PopItem on empty queue should report ok=false")
	}
	if _, ok := q.Peek(); ok {
		t.Error("Peek on empty queue should report ok=false")
	}
}
