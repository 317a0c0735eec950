package game

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ledger records at most one accepted action per participant for a single
// round-phase. It is owned by the room state machine and only ever touched
// inside the room's critical section, which is what makes the dedup
// guarantee hold under concurrent identical requests.
type ledger struct {
	roundID string

	answers  map[string]*Answer // answerID -> answer
	byAuthor map[string]string  // authorID -> answerID

	votes      map[string]*Vote // voterID -> vote
	voteCounts map[string]int   // answerID -> count

	// frozen is the anonymized answer set snapshotted when voting opens.
	// Votes are only valid against this set.
	frozen []AnswerPublic

	seq int
}

func newLedger(roundID string) *ledger {
	return &ledger{
		roundID:    roundID,
		answers:    make(map[string]*Answer),
		byAuthor:   make(map[string]string),
		votes:      make(map[string]*Vote),
		voteCounts: make(map[string]int),
	}
}

// addAnswer accepts one answer per author and returns the accepted answer
// with the submission sequence number.
func (l *ledger) addAnswer(authorID, content string, now time.Time) (*Answer, int, error) {
	if _, dup := l.byAuthor[authorID]; dup {
		return nil, 0, ErrDuplicateSubmission
	}
	if content == "" || utf8.RuneCountInString(content) > MaxAnswerLen {
		return nil, 0, ErrInvalidContent
	}
	a := &Answer{
		ID:          uuid.NewString(),
		RoundID:     l.roundID,
		AuthorID:    authorID,
		Content:     content,
		SubmittedAt: now,
	}
	l.answers[a.ID] = a
	l.byAuthor[authorID] = a.ID
	l.seq++
	return a, l.seq, nil
}

// freeze snapshots the anonymized answers for voting. Calling it again
// returns the existing snapshot.
func (l *ledger) freeze() []AnswerPublic {
	if l.frozen != nil {
		return l.frozen
	}
	frozen := make([]AnswerPublic, 0, len(l.answers))
	for _, id := range l.byAuthor {
		a := l.answers[id]
		frozen = append(frozen, AnswerPublic{ID: a.ID, Content: a.Content})
	}
	l.frozen = frozen
	return frozen
}

// addVote accepts one vote per voter, only for answers in the frozen
// snapshot, and never for the voter's own answer.
func (l *ledger) addVote(voterID, answerID string) (*Vote, int, error) {
	if _, dup := l.votes[voterID]; dup {
		return nil, 0, ErrDuplicateSubmission
	}
	target, ok := l.answers[answerID]
	if !ok || !l.inFrozen(answerID) {
		return nil, 0, ErrInvalidTarget
	}
	if target.AuthorID == voterID {
		return nil, 0, ErrInvalidTarget
	}
	v := &Vote{RoundID: l.roundID, VoterID: voterID, AnswerID: answerID}
	l.votes[voterID] = v
	l.voteCounts[answerID]++
	return v, l.voteCounts[answerID], nil
}

func (l *ledger) inFrozen(answerID string) bool {
	for _, a := range l.frozen {
		if a.ID == answerID {
			return true
		}
	}
	return false
}

func (l *ledger) answerCount() int { return len(l.byAuthor) }

func (l *ledger) hasAnswered(userID string) bool {
	_, ok := l.byAuthor[userID]
	return ok
}

func (l *ledger) hasVoted(userID string) bool {
	_, ok := l.votes[userID]
	return ok
}
