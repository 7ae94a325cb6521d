package tokens

import (
	"strings"
	"testing"
)

func TestEstimator_Count(t *testing.T) {
	e := NewEstimator()

	if got := e.Count(""); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}

	short := e.Count("Explain this API interaction.")
	if short <= 0 {
		t.Fatalf("expected positive count, got %d", short)
	}

	long := e.Count(strings.Repeat("Explain this API interaction. ", 20))
	if long <= short {
		t.Errorf("longer text should count more tokens: short=%d long=%d", short, long)
	}
}

func TestEstimator_CountPrompt(t *testing.T) {
	e := NewEstimator()

	system := "You are an API demo explainer."
	user := "Explain this API interaction."

	got := e.CountPrompt(system, user)
	want := e.Count(system) + e.Count(user) + 8
	if got != want {
		t.Errorf("CountPrompt() = %d, want %d", got, want)
	}
}

func TestEstimator_Heuristic(t *testing.T) {
	e := &Estimator{CharsPerToken: 4}
	if got := e.heuristic("abcdefghi"); got != 3 {
		t.Errorf("heuristic() = %d, want 3", got)
	}

	zero := &Estimator{}
	if got := zero.heuristic("abcd"); got != 1 {
		t.Errorf("heuristic() with zero ratio = %d, want 1", got)
	}
}
