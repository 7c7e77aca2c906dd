package monitor

import (
	"testing"
	"time"

	"github.com/sweeney/andon-agent/internal/gpio"
)

// collector returns a sink that appends transitions to a slice.
func collector(t *testing.T) (Sink, *[]Transition) {
	t.Helper()
	var got []Transition
	return func(tr Transition) {
		got = append(got, tr)
	}, &got
}

func TestSeedDoesNotEmit(t *testing.T) {
	sink, got := collector(t)
	m := New(sink)

	m.Seed(23, gpio.High, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	if len(*got) != 0 {
		t.Errorf("expected no transitions from seed, got %d", len(*got))
	}
}

func TestFirstEdgeReportsHeldSinceSeed(t *testing.T) {
	sink, got := collector(t)
	m := New(sink)

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.Seed(23, gpio.High, t0)

	m.HandleEdge(gpio.Edge{Pin: 23, Level: gpio.Low, Time: t0.Add(90 * time.Second)})

	if len(*got) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(*got))
	}
	tr := (*got)[0]
	if tr.Pin != 23 {
		t.Errorf("expected pin 23, got %d", tr.Pin)
	}
	if tr.Level != gpio.Low {
		t.Errorf("expected Low, got %v", tr.Level)
	}
	if tr.Held != 90*time.Second {
		t.Errorf("expected held 90s, got %v", tr.Held)
	}
	if !tr.Time.Equal(t0.Add(90 * time.Second)) {
		t.Errorf("unexpected time: %v", tr.Time)
	}
}

func TestEdgeSequenceHolds(t *testing.T) {
	sink, got := collector(t)
	m := New(sink)

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.Seed(24, gpio.High, t0)

	// Pressed 30s after seed, released 2.5s later.
	press := t0.Add(30 * time.Second)
	release := press.Add(2500 * time.Millisecond)
	m.HandleEdge(gpio.Edge{Pin: 24, Level: gpio.Low, Time: press})
	m.HandleEdge(gpio.Edge{Pin: 24, Level: gpio.High, Time: release})

	if len(*got) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(*got))
	}
	if (*got)[0].Held != 30*time.Second {
		t.Errorf("press: expected held 30s, got %v", (*got)[0].Held)
	}
	if (*got)[1].Held != 2500*time.Millisecond {
		t.Errorf("release: expected held 2.5s, got %v", (*got)[1].Held)
	}
	if (*got)[1].Level != gpio.High {
		t.Errorf("release: expected High, got %v", (*got)[1].Level)
	}
}

func TestRepeatedLevelStillReported(t *testing.T) {
	sink, got := collector(t)
	m := New(sink)

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.Seed(25, gpio.High, t0)

	// A High edge on a line already recorded High (the matching Low edge was
	// missed) must still be reported with the elapsed time.
	m.HandleEdge(gpio.Edge{Pin: 25, Level: gpio.High, Time: t0.Add(5 * time.Second)})

	if len(*got) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(*got))
	}
	if (*got)[0].Level != gpio.High {
		t.Errorf("expected High, got %v", (*got)[0].Level)
	}
	if (*got)[0].Held != 5*time.Second {
		t.Errorf("expected held 5s, got %v", (*got)[0].Held)
	}
}

func TestUnseededEdgeZeroHold(t *testing.T) {
	sink, got := collector(t)
	m := New(sink)

	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.HandleEdge(gpio.Edge{Pin: 12, Level: gpio.Low, Time: at})

	if len(*got) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(*got))
	}
	if (*got)[0].Held != 0 {
		t.Errorf("expected zero hold for unseeded pin, got %v", (*got)[0].Held)
	}

	// The edge became the baseline for the next measurement.
	m.HandleEdge(gpio.Edge{Pin: 12, Level: gpio.High, Time: at.Add(time.Second)})
	if (*got)[1].Held != time.Second {
		t.Errorf("expected held 1s after adopted baseline, got %v", (*got)[1].Held)
	}
}

func TestPinsTrackedIndependently(t *testing.T) {
	sink, got := collector(t)
	m := New(sink)

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.Seed(23, gpio.High, t0)
	m.Seed(24, gpio.High, t0.Add(10*time.Second))

	m.HandleEdge(gpio.Edge{Pin: 24, Level: gpio.Low, Time: t0.Add(40 * time.Second)})
	m.HandleEdge(gpio.Edge{Pin: 23, Level: gpio.Low, Time: t0.Add(60 * time.Second)})

	if len(*got) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(*got))
	}
	if (*got)[0].Pin != 24 || (*got)[0].Held != 30*time.Second {
		t.Errorf("pin 24: expected held 30s, got %+v", (*got)[0])
	}
	if (*got)[1].Pin != 23 || (*got)[1].Held != 60*time.Second {
		t.Errorf("pin 23: expected held 60s, got %+v", (*got)[1])
	}
}

func TestStatesSnapshot(t *testing.T) {
	sink, _ := collector(t)
	m := New(sink)

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.Seed(23, gpio.High, t0)
	m.Seed(24, gpio.High, t0)
	m.HandleEdge(gpio.Edge{Pin: 23, Level: gpio.Low, Time: t0.Add(time.Second)})

	states := m.States()
	if len(states) != 2 {
		t.Fatalf("expected 2 pins, got %d", len(states))
	}
	if states[23] != gpio.Low {
		t.Errorf("pin 23: expected Low, got %v", states[23])
	}
	if states[24] != gpio.High {
		t.Errorf("pin 24: expected High, got %v", states[24])
	}

	// Snapshot is a copy; mutating it must not affect the monitor.
	states[24] = gpio.Low
	if m.States()[24] != gpio.High {
		t.Error("snapshot mutation leaked into monitor state")
	}
}
