// Package memory holds game records in process memory. Used by tests and
// single-node deployments that don't need durability.
package memory

import (
	"context"
	"sync"

	"github.com/quipround/quipround/internal/game"
)

type Store struct {
	mu           sync.RWMutex
	rooms        map[string]game.RoomRecord
	participants map[string]map[string]game.ParticipantRecord // roomCode -> userID
	rounds       map[string]game.RoundRecord                  // roundID
	answers      map[string]game.AnswerRecord                 // answerID
	votes        map[string]map[string]game.VoteRecord        // roundID -> voterID
	scores       map[string]map[string]game.ScoreRecord       // roomCode -> userID
}

func New() *Store {
	return &Store{
		rooms:        make(map[string]game.RoomRecord),
		participants: make(map[string]map[string]game.ParticipantRecord),
		rounds:       make(map[string]game.RoundRecord),
		answers:      make(map[string]game.AnswerRecord),
		votes:        make(map[string]map[string]game.VoteRecord),
		scores:       make(map[string]map[string]game.ScoreRecord),
	}
}

func (s *Store) SaveRoom(_ context.Context, rec game.RoomRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[rec.Code] = rec
	return nil
}

func (s *Store) DeleteRoom(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	delete(s.participants, code)
	delete(s.scores, code)
	for id, rd := range s.rounds {
		if rd.RoomCode == code {
			delete(s.rounds, id)
			delete(s.votes, id)
		}
	}
	for id, a := range s.answers {
		if _, ok := s.rounds[a.RoundID]; !ok {
			delete(s.answers, id)
		}
	}
	return nil
}

func (s *Store) SaveParticipant(_ context.Context, rec game.ParticipantRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.participants[rec.RoomCode] == nil {
		s.participants[rec.RoomCode] = make(map[string]game.ParticipantRecord)
	}
	s.participants[rec.RoomCode][rec.UserID] = rec
	return nil
}

func (s *Store) DeleteParticipant(_ context.Context, roomCode, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants[roomCode], userID)
	return nil
}

func (s *Store) SaveRound(_ context.Context, rec game.RoundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds[rec.ID] = rec
	return nil
}

func (s *Store) SaveAnswer(_ context.Context, rec game.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[rec.ID] = rec
	return nil
}

func (s *Store) SaveVote(_ context.Context, rec game.VoteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.votes[rec.RoundID] == nil {
		s.votes[rec.RoundID] = make(map[string]game.VoteRecord)
	}
	s.votes[rec.RoundID][rec.VoterID] = rec
	return nil
}

func (s *Store) SaveScore(_ context.Context, rec game.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scores[rec.RoomCode] == nil {
		s.scores[rec.RoomCode] = make(map[string]game.ScoreRecord)
	}
	s.scores[rec.RoomCode][rec.UserID] = rec
	return nil
}

// Room returns the stored room record, if present.
func (s *Store) Room(code string) (game.RoomRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rooms[code]
	return rec, ok
}

// Round returns the stored round record, if present.
func (s *Store) Round(id string) (game.RoundRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rounds[id]
	return rec, ok
}

// AnswerCount reports how many answers are stored for a round.
func (s *Store) AnswerCount(roundID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.answers {
		if a.RoundID == roundID {
			n++
		}
	}
	return n
}

// VoteCount reports how many votes are stored for a round.
func (s *Store) VoteCount(roundID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.votes[roundID])
}

// Score returns the stored cumulative score for a user in a room.
func (s *Store) Score(roomCode, userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scores[roomCode][userID].Points
}
