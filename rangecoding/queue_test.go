package rangecoding

import "testing"

func TestQueuePushPop(t *testing.T) {
	q := NewQueue(4)
	if !q.Push('a') || !q.Push('b') || !q.Push('c') || !q.Push('d') {
		t.Fatal("push should succeed within capacity")
	}
	if q.Push('e') {
		t.Fatal("push should fail once full")
	}
	for _, want := range []byte{'a', 'b', 'c', 'd'} {
		b, ok := q.Pop()
		if !ok || b != want {
			t.Fatalf("Pop() = %q, %v, want %q, true", b, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop() on empty queue should report false")
	}
}

func TestQueueWrapsAround(t *testing.T) {
	q := NewQueue(3)
	q.Push(1)
	q.Push(2)
	q.Pop()
	q.Push(3)
	q.Push(4)
	var got []byte
	for {
		b, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, b)
	}
	want := []byte{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestQueuePushFromPopInto(t *testing.T) {
	q := NewQueue(8)
	src := []byte("hello!!!")
	n := q.PushFrom(src)
	if n != len(src) {
		t.Fatalf("PushFrom consumed %d, want %d", n, len(src))
	}
	dst := make([]byte, 8)
	n = q.PopInto(dst)
	if n != 8 || string(dst) != "hello!!!" {
		t.Fatalf("PopInto = %q (%d), want %q", dst, n, src)
	}
}

func TestQueuePushFromPartial(t *testing.T) {
	q := NewQueue(2)
	n := q.PushFrom([]byte("abcd"))
	if n != 2 {
		t.Fatalf("PushFrom = %d, want 2", n)
	}
}
