package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestGetOrCreateIdempotent(t *testing.T) {
	s := NewStore(5 * time.Minute)

	first := s.GetOrCreate("abc")
	second := s.GetOrCreate("abc")

	if first.ID != "abc" {
		t.Errorf("ID = %q, want %q", first.ID, "abc")
	}
	if !first.CreatedAt.Equal(second.CreatedAt) {
		t.Error("second GetOrCreate changed CreatedAt")
	}
	if second.Outcome.Terminal() {
		t.Error("fresh session should not be terminal")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestTakeTerminalUnknownSession(t *testing.T) {
	s := NewStore(5 * time.Minute)

	if _, found := s.TakeTerminal("never-seen"); found {
		t.Error("TakeTerminal on untouched id should report not found")
	}
}

func TestTakeTerminalPendingDoesNotConsume(t *testing.T) {
	s := NewStore(5 * time.Minute)
	s.GetOrCreate("abc")

	o, found := s.TakeTerminal("abc")
	if !found {
		t.Fatal("session should exist")
	}
	if o.Terminal() {
		t.Errorf("outcome = %+v, want pending", o)
	}
	if s.Len() != 1 {
		t.Error("pending take must not delete the record")
	}
}

func TestTakeTerminalConsumesExactlyOnce(t *testing.T) {
	s := NewStore(5 * time.Minute)
	s.SetSuccess("abc", "XYZ")

	o, found := s.TakeTerminal("abc")
	if !found || o.Status != Succeeded || o.Code != "XYZ" {
		t.Fatalf("first take = %+v found=%v, want success XYZ", o, found)
	}
	if _, found := s.TakeTerminal("abc"); found {
		t.Error("second take should report not found")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d after consumption, want 0", s.Len())
	}
}

func TestSetSuccessFirstWriteWins(t *testing.T) {
	s := NewStore(5 * time.Minute)

	first := s.SetSuccess("abc", "one")
	second := s.SetSuccess("abc", "two")

	if first.Code != "one" {
		t.Errorf("first outcome code = %q, want %q", first.Code, "one")
	}
	if second.Code != "one" {
		t.Errorf("duplicate callback returned %q, want original %q", second.Code, "one")
	}

	o, _ := s.TakeTerminal("abc")
	if o.Code != "one" {
		t.Errorf("stored code = %q, want %q", o.Code, "one")
	}
}

func TestSetFailureDoesNotOverrideSuccess(t *testing.T) {
	s := NewStore(5 * time.Minute)

	s.SetSuccess("abc", "XYZ")
	o := s.SetFailure("abc", "late error")

	if o.Status != Succeeded || o.Code != "XYZ" {
		t.Errorf("outcome = %+v, want original success", o)
	}
}

func TestSetFailure(t *testing.T) {
	s := NewStore(5 * time.Minute)

	s.SetFailure("abc", "User denied")
	o, found := s.TakeTerminal("abc")
	if !found {
		t.Fatal("session should exist")
	}
	if o.Status != Failed || o.Err != "User denied" {
		t.Errorf("outcome = %+v, want error %q", o, "User denied")
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	s := NewStore(5 * time.Minute)
	s.SetSuccess("abc", "XYZ")

	for i := 0; i < 3; i++ {
		o, found := s.Peek("abc")
		if !found || o.Code != "XYZ" {
			t.Fatalf("Peek #%d = %+v found=%v", i, o, found)
		}
	}
	if s.Len() != 1 {
		t.Error("Peek must not delete the record")
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	s := NewStore(5 * time.Minute)
	s.GetOrCreate("old")
	s.SetSuccess("old-resolved", "XYZ")

	expired := s.Sweep(time.Now().Add(6 * time.Minute))

	if len(expired) != 2 {
		t.Fatalf("expired = %v, want both sessions", expired)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d after sweep, want 0", s.Len())
	}
	if _, found := s.TakeTerminal("old-resolved"); found {
		t.Error("expired session should be gone even though it was never polled")
	}
}

func TestSweepKeepsFresh(t *testing.T) {
	s := NewStore(5 * time.Minute)
	s.GetOrCreate("fresh")

	if expired := s.Sweep(time.Now()); len(expired) != 0 {
		t.Errorf("expired = %v, want none", expired)
	}
	if s.Len() != 1 {
		t.Error("fresh session must survive the sweep")
	}
}

func TestConcurrentTakersExactlyOneWinner(t *testing.T) {
	const pollers = 32

	s := NewStore(5 * time.Minute)
	s.SetSuccess("abc", "XYZ")

	var wg sync.WaitGroup
	wins := make(chan Outcome, pollers)
	start := make(chan struct{})

	for i := 0; i < pollers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if o, found := s.TakeTerminal("abc"); found {
				wins <- o
			}
		}()
	}
	close(start)
	wg.Wait()
	close(wins)

	var got []Outcome
	for o := range wins {
		got = append(got, o)
	}
	if len(got) != 1 {
		t.Fatalf("%d pollers observed the outcome, want exactly 1", len(got))
	}
	if got[0].Code != "XYZ" {
		t.Errorf("winner got code %q, want %q", got[0].Code, "XYZ")
	}
}

func TestConcurrentMixedOperations(t *testing.T) {
	// Hammer distinct and shared ids from many goroutines; the race
	// detector is the real assertion here.
	s := NewStore(5 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", n%4)
			s.GetOrCreate(id)
			s.SetSuccess(id, "code")
			s.Peek(id)
			s.TakeTerminal(id)
			s.Sweep(time.Now())
			s.Len()
		}(i)
	}
	wg.Wait()
}

func TestStatusJSONRoundTrip(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{Waiting, "waiting"},
		{Succeeded, "success"},
		{Failed, "error"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("%v.String() = %q, want %q", tt.status, got, tt.want)
		}
		data, err := tt.status.MarshalJSON()
		if err != nil {
			t.Fatalf("marshal %v: %v", tt.status, err)
		}
		var back Status
		if err := back.UnmarshalJSON(data); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != tt.status {
			t.Errorf("round trip %v -> %s -> %v", tt.status, data, back)
		}
	}
}
