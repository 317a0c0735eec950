package game

import (
	"strings"
	"testing"
	"time"
)

func TestLedgerAnswerDedup(t *testing.T) {
	l := newLedger("round-1")
	now := time.Now()

	a, seq, err := l.addAnswer("alice", "first", now)
	if err != nil {
		t.Fatalf("should accept first answer: %v", err)
	}
	if a.ID == "" {
		t.Fatal("answer ID should not be empty")
	}
	if seq != 1 {
		t.Fatalf("expected sequence 1, got %d", seq)
	}

	_, _, err = l.addAnswer("alice", "second attempt", now)
	if err != ErrDuplicateSubmission {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}
	if l.answerCount() != 1 {
		t.Fatalf("expected 1 answer after duplicate, got %d", l.answerCount())
	}

	_, seq, err = l.addAnswer("bob", "bob's answer", now)
	if err != nil {
		t.Fatalf("should accept answer from another author: %v", err)
	}
	if seq != 2 {
		t.Fatalf("expected sequence 2, got %d", seq)
	}
}

func TestLedgerAnswerContentBounds(t *testing.T) {
	l := newLedger("round-1")
	now := time.Now()

	if _, _, err := l.addAnswer("alice", "", now); err != ErrInvalidContent {
		t.Fatalf("expected ErrInvalidContent for empty answer, got %v", err)
	}
	long := strings.Repeat("x", MaxAnswerLen+1)
	if _, _, err := l.addAnswer("alice", long, now); err != ErrInvalidContent {
		t.Fatalf("expected ErrInvalidContent for oversized answer, got %v", err)
	}
	// exactly at the limit is fine
	if _, _, err := l.addAnswer("alice", strings.Repeat("y", MaxAnswerLen), now); err != nil {
		t.Fatalf("answer at the limit should be accepted: %v", err)
	}
}

func TestLedgerFreezeIdempotent(t *testing.T) {
	l := newLedger("round-1")
	now := time.Now()
	l.addAnswer("alice", "a", now)
	l.addAnswer("bob", "b", now)

	first := l.freeze()
	if len(first) != 2 {
		t.Fatalf("expected 2 frozen answers, got %d", len(first))
	}
	second := l.freeze()
	if len(second) != len(first) {
		t.Fatal("freeze should return the existing snapshot")
	}
}

func TestLedgerVoteRules(t *testing.T) {
	l := newLedger("round-1")
	now := time.Now()
	a1, _, _ := l.addAnswer("alice", "a", now)
	a2, _, _ := l.addAnswer("bob", "b", now)

	// voting before freeze targets nothing
	if _, _, err := l.addVote("carol", a1.ID); err != ErrInvalidTarget {
		t.Fatalf("expected ErrInvalidTarget before freeze, got %v", err)
	}

	l.freeze()

	if _, _, err := l.addVote("alice", a1.ID); err != ErrInvalidTarget {
		t.Fatalf("expected ErrInvalidTarget for self-vote, got %v", err)
	}
	if _, _, err := l.addVote("alice", "no-such-answer"); err != ErrInvalidTarget {
		t.Fatalf("expected ErrInvalidTarget for unknown answer, got %v", err)
	}

	_, count, err := l.addVote("alice", a2.ID)
	if err != nil {
		t.Fatalf("should accept vote: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}

	if _, _, err := l.addVote("alice", a1.ID); err != ErrDuplicateSubmission {
		t.Fatalf("expected ErrDuplicateSubmission on second vote, got %v", err)
	}

	_, count, err = l.addVote("carol", a2.ID)
	if err != nil {
		t.Fatalf("non-author should be able to vote: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}

	if !l.hasVoted("alice") || l.hasVoted("bob") {
		t.Fatal("hasVoted should track accepted votes only")
	}
}
