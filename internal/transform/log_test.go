package transform

import (
	"sync"
	"testing"
)

func TestLog_RecordAndGet(t *testing.T) {
	l := NewLog()

	first := l.Record("int-1", "draw a cat", "draw a cat, watercolor style", TypeStyleInjection, []string{"style:watercolor"}, nil)
	second := l.Record("int-1", "draw a cat, watercolor style", "System: be concise.\ndraw a cat, watercolor style", TypeSystemPromptAddition, nil, map[string]string{"stage": "2"})
	other := l.Record("int-2", "hello", "hello!", TypeEnhancement, nil, nil)

	if first == "" || second == "" || other == "" {
		t.Fatal("Record returned empty id")
	}
	if first == second {
		t.Fatal("Record returned duplicate ids")
	}

	entries := l.Get("int-1")
	if len(entries) != 2 {
		t.Fatalf("got %d entries for int-1, want 2", len(entries))
	}
	if entries[0].ID != first || entries[1].ID != second {
		t.Error("entries not in insertion order")
	}
	if entries[1].Metadata["stage"] != "2" {
		t.Errorf("metadata = %v", entries[1].Metadata)
	}

	if got := len(l.All()); got != 3 {
		t.Errorf("All returned %d entries, want 3", got)
	}
	if got := l.Get("int-404"); len(got) != 0 {
		t.Errorf("Get for unknown interaction returned %d entries", len(got))
	}
}

func TestLog_Clear(t *testing.T) {
	l := NewLog()
	l.Record("int-1", "a", "b", TypeEnhancement, nil, nil)
	l.Clear()

	if got := len(l.All()); got != 0 {
		t.Errorf("entries after Clear = %d, want 0", got)
	}
}

func TestLog_ConcurrentRecord(t *testing.T) {
	l := NewLog()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record("int-1", "in", "out", TypeContextAddition, nil, nil)
		}()
	}
	wg.Wait()

	if got := len(l.Get("int-1")); got != 50 {
		t.Errorf("entries = %d, want 50", got)
	}
}
