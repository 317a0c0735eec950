package game

import (
	"context"
	"time"
)

// Store is the durable record store the state machine writes through to.
// Implementations live under internal/store. All writes are upserts keyed
// by the record's identity; the state machine remains authoritative and a
// storage failure never corrupts in-memory room state.
type Store interface {
	SaveRoom(ctx context.Context, rec RoomRecord) error
	DeleteRoom(ctx context.Context, code string) error
	SaveParticipant(ctx context.Context, rec ParticipantRecord) error
	DeleteParticipant(ctx context.Context, roomCode, userID string) error
	SaveRound(ctx context.Context, rec RoundRecord) error
	SaveAnswer(ctx context.Context, rec AnswerRecord) error
	SaveVote(ctx context.Context, rec VoteRecord) error
	SaveScore(ctx context.Context, rec ScoreRecord) error
}

type RoomRecord struct {
	Code         string
	HostID       string
	MaxPlayers   int
	TotalRounds  int
	CurrentRound int
	Status       RoomStatus
	CreatedAt    time.Time
}

type ParticipantRecord struct {
	RoomCode string
	UserID   string
	Username string
	JoinedAt time.Time
}

type RoundRecord struct {
	ID       string
	RoomCode string
	Number   int
	Question string
	Phase    Phase
	Deadline *time.Time
}

type AnswerRecord struct {
	ID          string
	RoundID     string
	UserID      string
	Content     string
	SubmittedAt time.Time
}

type VoteRecord struct {
	RoundID  string
	VoterID  string
	AnswerID string
}

type ScoreRecord struct {
	RoomCode string
	UserID   string
	Points   int
}
