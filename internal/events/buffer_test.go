package events

import (
	"fmt"
	"sync"
	"testing"

	"browseriq/internal/model"
)

func TestAppendAndAll(t *testing.T) {
	b := NewBuffer()
	b.StartSession("s1")

	for i := 0; i < 5; i++ {
		b.Append("s1", model.NewConsoleEvent("s1", model.LevelInfo, fmt.Sprintf("msg-%d", i), "test"))
	}

	all := b.All("s1")
	if len(all) != 5 {
		t.Fatalf("expected 5 events, got %d", len(all))
	}
	for i, ev := range all {
		want := fmt.Sprintf("msg-%d", i)
		if ev.Message != want {
			t.Errorf("event %d: expected message %q, got %q", i, want, ev.Message)
		}
	}
	if b.TotalCount() != 5 {
		t.Errorf("expected total count 5, got %d", b.TotalCount())
	}
}

func TestAppendUnknownSessionDropped(t *testing.T) {
	b := NewBuffer()
	b.Append("nope", model.NewConsoleEvent("nope", model.LevelInfo, "dropped", "test"))

	if got := b.TotalCount(); got != 0 {
		t.Fatalf("expected no events counted, got %d", got)
	}
	if events := b.All("nope"); events != nil {
		t.Fatalf("expected nil for unknown session, got %d events", len(events))
	}
}

func TestAppendAfterStopDropped(t *testing.T) {
	b := NewBuffer()
	b.StartSession("s1")
	b.Append("s1", model.NewConsoleEvent("s1", model.LevelInfo, "before", "test"))
	b.StopSession("s1")
	b.Append("s1", model.NewConsoleEvent("s1", model.LevelInfo, "after", "test"))

	all := b.All("s1")
	if len(all) != 1 {
		t.Fatalf("expected 1 event after stop, got %d", len(all))
	}
	if all[0].Message != "before" {
		t.Errorf("expected surviving event %q, got %q", "before", all[0].Message)
	}
	if b.TotalCount() != 1 {
		t.Errorf("expected total count 1, got %d", b.TotalCount())
	}
}

func TestRecentReturnsTail(t *testing.T) {
	b := NewBuffer()
	b.StartSession("s1")
	for i := 0; i < 30; i++ {
		b.Append("s1", model.NewConsoleEvent("s1", model.LevelInfo, fmt.Sprintf("msg-%d", i), "test"))
	}

	recent := b.Recent("s1", 10)
	if len(recent) != 10 {
		t.Fatalf("expected 10 recent events, got %d", len(recent))
	}
	if recent[0].Message != "msg-20" || recent[9].Message != "msg-29" {
		t.Errorf("expected tail msg-20..msg-29, got %q..%q", recent[0].Message, recent[9].Message)
	}

	// Shorter log than the limit returns everything.
	b.StartSession("s2")
	b.Append("s2", model.NewConsoleEvent("s2", model.LevelInfo, "only", "test"))
	if got := b.Recent("s2", 10); len(got) != 1 {
		t.Errorf("expected 1 event, got %d", len(got))
	}

	if got := b.Recent("s1", 0); got != nil {
		t.Errorf("expected nil for zero limit, got %d events", len(got))
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	b := NewBuffer()
	b.StartSession("s1")
	b.Append("s1", model.NewConsoleEvent("s1", model.LevelInfo, "original", "test"))

	snap := b.All("s1")
	snap[0].Message = "mutated"

	if got := b.All("s1")[0].Message; got != "original" {
		t.Fatalf("snapshot mutation leaked into buffer: %q", got)
	}
}

func TestConcurrentProducers(t *testing.T) {
	b := NewBuffer()
	b.StartSession("s1")
	b.StartSession("s2")

	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			sessionID := "s1"
			if p%2 == 1 {
				sessionID = "s2"
			}
			for i := 0; i < perProducer; i++ {
				b.Append(sessionID, model.NewConsoleEvent(sessionID, model.LevelInfo, "msg", "test"))
			}
		}(p)
	}

	// Readers race with the producers; only checking for data races and
	// internally consistent snapshots here.
	for i := 0; i < 20; i++ {
		_ = b.Recent("s1", 5)
		_ = b.All("s2")
	}
	wg.Wait()

	total := int64(producers * perProducer)
	if got := b.TotalCount(); got != total {
		t.Fatalf("expected total count %d, got %d", total, got)
	}
	if got := len(b.All("s1")) + len(b.All("s2")); int64(got) != total {
		t.Fatalf("expected %d events across sessions, got %d", total, got)
	}
}

func TestSeedFallback(t *testing.T) {
	b := NewBuffer()
	b.StartSession("s1")
	b.SeedFallback("s1")

	all := b.All("s1")
	if len(all) != 5 {
		t.Fatalf("expected 5 seeded events, got %d", len(all))
	}

	var warned bool
	for _, ev := range all {
		if ev.Type == model.EventConsole && ev.Level == model.LevelWarn {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a WARN console event marking degraded monitoring")
	}
	if all[0].Type != model.EventConsole || all[1].Type != model.EventPerformance {
		t.Errorf("unexpected leading sequence: %s, %s", all[0].Type, all[1].Type)
	}
}
