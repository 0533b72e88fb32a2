package history_test

import (
	"sync"
	"testing"

	"github.com/saveenergy/brofiler/internal/history"
)

func TestLogAppendAndRead(t *testing.T) {
	l := history.New[int]()
	if _, ok := l.Latest(); ok {
		t.Fatal("Latest() on empty log should fail")
	}

	for i := 1; i <= 5; i++ {
		l.Append(i * 10)
	}
	if l.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", l.Len())
	}
	if v, ok := l.Latest(); !ok || v != 50 {
		t.Fatalf("Latest() = %d/%v, want 50/true", v, ok)
	}
	if v, ok := l.At(0); !ok || v != 10 {
		t.Fatalf("At(0) = %d/%v, want 10/true", v, ok)
	}
	if _, ok := l.At(5); ok {
		t.Fatal("At(5) should be out of range")
	}
	if _, ok := l.At(-1); ok {
		t.Fatal("At(-1) should be out of range")
	}

	want := 10
	for i, v := range l.All() {
		if v != want {
			t.Fatalf("All()[%d] = %d, want %d", i, v, want)
		}
		want += 10
	}
}

func TestViewIsStableAcrossAppends(t *testing.T) {
	l := history.New[string]()
	l.Append("a")
	l.Append("b")

	view := l.View()
	l.Append("c")

	if view.Len() != 2 {
		t.Fatalf("view.Len() = %d, want 2", view.Len())
	}
	if v, _ := view.Latest(); v != "b" {
		t.Fatalf("view.Latest() = %q, want b", v)
	}
	if l.Len() != 3 {
		t.Fatalf("log.Len() = %d, want 3", l.Len())
	}
}

func TestViewTail(t *testing.T) {
	l := history.New[int]()
	for i := 0; i < 10; i++ {
		l.Append(i)
	}
	tail := l.View().Tail(3)
	if tail.Len() != 3 {
		t.Fatalf("Tail(3).Len() = %d, want 3", tail.Len())
	}
	if v, _ := tail.At(0); v != 7 {
		t.Fatalf("Tail(3).At(0) = %d, want 7", v)
	}
	if l.View().Tail(100).Len() != 10 {
		t.Fatal("Tail larger than log should return everything")
	}
	if l.View().Tail(0).Len() != 0 {
		t.Fatal("Tail(0) should be empty")
	}
}

func TestAllStopsEarly(t *testing.T) {
	l := history.New[int]()
	for i := 0; i < 10; i++ {
		l.Append(i)
	}
	seen := 0
	for _, v := range l.All() {
		seen++
		if v == 3 {
			break
		}
	}
	if seen != 4 {
		t.Fatalf("seen = %d, want 4", seen)
	}
}

func TestConcurrentReaders(t *testing.T) {
	l := history.New[int]()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			l.Append(i)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				view := l.View()
				prev := -1
				for _, v := range view.All() {
					if v != prev+1 {
						t.Errorf("out of order entry %d after %d", v, prev)
						return
					}
					prev = v
				}
			}
		}()
	}
	wg.Wait()

	if l.Len() != 1000 {
		t.Fatalf("Len() = %d, want 1000", l.Len())
	}
}
