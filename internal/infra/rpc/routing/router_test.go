package routing

import (
	"errors"
	"testing"
	"time"
)

func TestRouter_RotateRoundRobin(t *testing.T) {
	router := NewRouter()
	router.AddProvider(testChain, newMockProvider("a"))
	router.AddProvider(testChain, newMockProvider("b"))
	router.AddProvider(testChain, newMockProvider("c"))

	var got []string
	for i := 0; i < 4; i++ {
		p, err := router.RotateProvider(testChain)
		if err != nil {
			t.Fatalf("rotate: %v", err)
		}
		got = append(got, p.GetName())
	}

	want := []string{"b", "c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation = %v, want %v", got, want)
		}
	}

	all := router.GetAllProviders(testChain)
	if len(all) != 3 || all[0].GetName() != "b" {
		t.Errorf("GetAllProviders should start at the current provider, got %v", all[0].GetName())
	}
}

func TestRouter_CircuitBreaker(t *testing.T) {
	now := time.Now()
	router := NewRouter()
	router.now = func() time.Time { return now }

	router.AddProvider(testChain, newMockProvider("a"))
	router.AddProvider(testChain, newMockProvider("b"))

	for i := 0; i < circuitThreshold; i++ {
		router.RecordFailure("a", errors.New("connection refused"))
	}
	if !router.CircuitOpen("a") {
		t.Fatal("expected circuit open after consecutive failures")
	}

	p, err := router.GetProvider(testChain)
	if err != nil || p.GetName() != "b" {
		t.Errorf("expected b while a is open, got %v (%v)", p, err)
	}

	now = now.Add(circuitCooldown + time.Second)
	if router.CircuitOpen("a") {
		t.Error("circuit should half-open after cooldown")
	}

	router.RecordSuccess("a", time.Millisecond)
	if p, _ := router.GetProvider(testChain); p.GetName() != "a" {
		t.Errorf("expected a after recovery, got %s", p.GetName())
	}
}

func TestRouter_NoProviders(t *testing.T) {
	router := NewRouter()
	if _, err := router.GetProvider(testChain); err == nil {
		t.Error("expected error without providers")
	}

	m := newMockProvider("down")
	m.available = false
	router.AddProvider(testChain, m)
	if _, err := router.GetProvider(testChain); err == nil {
		t.Error("expected error when every provider is unavailable")
	}
}
