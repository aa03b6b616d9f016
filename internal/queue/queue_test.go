package queue

import (
	"testing"

	"github.com/ndcc/ndcc/internal/reqpool"
)

func TestAppendSequenceIsContiguous(t *testing.T) {
	q := NewDriverQueue(100)
	q.SetMax(4)

	for i := 0; i < 3; i++ {
		d := &reqpool.Descriptor{Kind: reqpool.KindSend}
		q.Append(d)
	}

	want := uint32(100)
	for _, d := range q.Items() {
		if d.Seq != want {
			t.Errorf("descriptor seq = %d, want %d", d.Seq, want)
		}
		want++
	}
}

func TestRemoveHeadIfMatchesKindAndSeq(t *testing.T) {
	q := NewDriverQueue(0)
	q.SetMax(2)
	d := &reqpool.Descriptor{Kind: reqpool.KindSend}
	q.Append(d)

	if _, ok := q.RemoveHeadIf(reqpool.KindSend, 1); ok {
		t.Fatal("RemoveHeadIf matched wrong seq")
	}
	if _, ok := q.RemoveHeadIf(reqpool.KindReceive, 0); ok {
		t.Fatal("RemoveHeadIf matched wrong kind")
	}
	got, ok := q.RemoveHeadIf(reqpool.KindSend, 0)
	if !ok || got != d {
		t.Fatal("RemoveHeadIf failed to match correct kind+seq")
	}
	if q.Count() != 0 || q.Head() != 1 {
		t.Fatalf("post-match state = count %d head %d, want 0 1", q.Count(), q.Head())
	}
}

func TestResetBumpsHeadPastStaleSequences(t *testing.T) {
	q := NewDriverQueue(0)
	q.SetMax(4)
	q.Append(&reqpool.Descriptor{Kind: reqpool.KindSend})
	q.Append(&reqpool.Descriptor{Kind: reqpool.KindSend})

	q.Reset()

	if q.Max() != 0 || q.Count() != 0 {
		t.Fatalf("reset left max=%d count=%d, want 0 0", q.Max(), q.Count())
	}
	if q.Head() <= 1 {
		t.Fatalf("head = %d after reset, want > highest pre-reset seq (1)", q.Head())
	}
	if _, ok := q.RemoveHeadIf(reqpool.KindSend, 0); ok {
		t.Fatal("stale pre-reset sequence still matched after reset")
	}
}
