package game

import (
	"testing"
	"time"
)

func TestTallyRound(t *testing.T) {
	l := newLedger("round-1")
	now := time.Now()
	a1, _, _ := l.addAnswer("alice", "a", now)
	a2, _, _ := l.addAnswer("bob", "b", now)
	l.addAnswer("carol", "c", now)
	l.freeze()

	l.addVote("bob", a1.ID)
	l.addVote("carol", a1.ID)
	l.addVote("alice", a2.ID)

	points := tallyRound(l, VotesAsPoints)
	if points["alice"] != 2 {
		t.Fatalf("expected alice to score 2, got %d", points["alice"])
	}
	if points["bob"] != 1 {
		t.Fatalf("expected bob to score 1, got %d", points["bob"])
	}
	if _, ok := points["carol"]; ok {
		t.Fatal("carol received no votes and should not appear")
	}
}

func TestBuildLeaderboardOrdering(t *testing.T) {
	roster := []*Participant{
		{ID: "alice", Username: "Alice"},
		{ID: "bob", Username: "Bob"},
		{ID: "carol", Username: "Carol"},
	}
	scores := map[string]int{"alice": 2, "bob": 5, "carol": 2}

	lb := buildLeaderboard(scores, roster)
	if len(lb) != 3 {
		t.Fatalf("expected all roster members, got %d", len(lb))
	}
	if lb[0].UserID != "bob" {
		t.Fatalf("expected bob first, got %s", lb[0].UserID)
	}
	// alice and carol are tied; alice joined earlier
	if lb[1].UserID != "alice" || lb[2].UserID != "carol" {
		t.Fatalf("tie should break by join order, got %s then %s", lb[1].UserID, lb[2].UserID)
	}
}

func TestBuildLeaderboardIncludesZeroScores(t *testing.T) {
	roster := []*Participant{
		{ID: "alice", Username: "Alice"},
		{ID: "bob", Username: "Bob"},
	}
	lb := buildLeaderboard(map[string]int{}, roster)
	if len(lb) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(lb))
	}
	for _, e := range lb {
		if e.Score != 0 {
			t.Fatalf("expected zero score for %s, got %d", e.UserID, e.Score)
		}
	}
}
