package game

import (
	"time"
)

type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

type Phase string

const (
	PhaseAnswering Phase = "answering"
	PhaseVoting    Phase = "voting"
	PhaseResults   Phase = "results"
)

// MaxAnswerLen bounds answer content length in runes.
const MaxAnswerLen = 500

type RoomConfig struct {
	MaxPlayers  int `json:"maxPlayers"`
	TotalRounds int `json:"totalRounds"`
	AnswerTime  int `json:"answerTime"` // seconds, 0 disables the deadline
	VoteTime    int `json:"voteTime"`   // seconds, 0 disables the deadline
}

type Participant struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	JoinedAt  time.Time `json:"joinedAt"`
	Connected bool      `json:"connected"`
}

// Round is immutable after creation except for its phase and deadline.
type Round struct {
	ID       string     `json:"id"`
	Number   int        `json:"number"`
	Question string     `json:"question"`
	Phase    Phase      `json:"phase"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type Answer struct {
	ID          string    `json:"id"`
	RoundID     string    `json:"roundId"`
	AuthorID    string    `json:"authorId"`
	Content     string    `json:"content"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type Vote struct {
	RoundID  string `json:"roundId"`
	VoterID  string `json:"voterId"`
	AnswerID string `json:"answerId"`
}

// AnswerPublic is the anonymized view voters see. The author is never
// included.
type AnswerPublic struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type LeaderboardEntry struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}
