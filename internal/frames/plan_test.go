package frames_test

import (
	"testing"

	"iomanager/internal/frames"
)

func TestPlanSplitsLongRanges(t *testing.T) {
	got := frames.Plan(frames.Range{Start: 1001, End: 7500}, 5000)
	want := []frames.Range{{Start: 1001, End: 6000}, {Start: 6001, End: 7500}}
	if len(got) != len(want) {
		t.Fatalf("expected %d chunks, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPlanSingleChunkWhenShort(t *testing.T) {
	r := frames.Range{Start: 1001, End: 1100}
	got := frames.Plan(r, 5000)
	if len(got) != 1 || got[0] != r {
		t.Fatalf("expected single chunk %v, got %v", r, got)
	}
	if got := frames.Plan(r, 100); len(got) != 1 {
		t.Fatalf("expected exact-fit range to stay whole, got %v", got)
	}
	if got := frames.Plan(r, 0); len(got) != 1 || got[0] != r {
		t.Fatalf("expected chunkSize 0 to disable chunking, got %v", got)
	}
	if got := frames.Plan(frames.Range{Start: 5, End: 4}, 10); got != nil {
		t.Fatalf("expected no chunks for invalid range, got %v", got)
	}
}

func TestPlanPartitionsRangeExactly(t *testing.T) {
	for start := -3; start <= 3; start++ {
		for end := start; end <= start+40; end++ {
			for size := 1; size <= 12; size++ {
				chunks := frames.Plan(frames.Range{Start: start, End: end}, size)
				next := start
				for _, c := range chunks {
					if c.Start != next {
						t.Fatalf("plan(%d,%d,%d): chunk %v does not continue at %d", start, end, size, c, next)
					}
					if c.Duration() < 1 || c.Duration() > size {
						t.Fatalf("plan(%d,%d,%d): chunk %v has size %d", start, end, size, c, c.Duration())
					}
					next = c.End + 1
				}
				if next != end+1 {
					t.Fatalf("plan(%d,%d,%d): chunks end at %d", start, end, size, next-1)
				}
			}
		}
	}
}
