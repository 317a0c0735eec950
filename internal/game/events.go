package game

// Event is a state-change notification fanned out to every member of a
// room, in the order the state machine produced it.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	EventPlayerJoined    = "player_joined"
	EventPlayerLeft      = "player_left"
	EventGameStarted     = "game_started"
	EventRoundStarted    = "round_started"
	EventAnswerSubmitted = "answer_submitted"
	EventVotingStarted   = "voting_started"
	EventVoteUpdate      = "vote_update"
	EventRoundEnded      = "round_ended"
	EventGameEnded       = "game_ended"
	EventRoomState       = "room_state"
	EventError           = "error"
)

// EventSink receives ordered room events from the state machine. RoomEvent
// is called from inside a room's critical section and must not block;
// implementations queue and fan out elsewhere.
type EventSink interface {
	RoomEvent(roomCode string, ev Event)
	RoomClosed(roomCode string)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RoomEvent(string, Event) {}
func (NopSink) RoomClosed(string)       {}

type PlayerJoinedData struct {
	UserID           string        `json:"user_id"`
	Username         string        `json:"username"`
	Participants     []Participant `json:"participants"`
	ParticipantCount int           `json:"participant_count"`
}

type PlayerLeftData struct {
	UserID           string        `json:"user_id"`
	Username         string        `json:"username"`
	NewHostID        string        `json:"new_host_id,omitempty"`
	Participants     []Participant `json:"participants"`
	ParticipantCount int           `json:"participant_count"`
}

type RoundStartedData struct {
	RoundID     string `json:"round_id"`
	RoundNumber int    `json:"round_number"`
	Question    string `json:"question"`
	TimeLimit   int    `json:"time_limit"` // seconds, 0 means none
}

type AnswerSubmittedData struct {
	SubmittedCount int `json:"submitted_count"`
}

type VotingStartedData struct {
	RoundID   string         `json:"round_id"`
	Answers   []AnswerPublic `json:"answers"`
	TimeLimit int            `json:"time_limit"`
}

type VoteUpdateData struct {
	AnswerID  string `json:"answer_id"`
	VoteCount int    `json:"vote_count"`
}

type RoundEndedData struct {
	RoundNumber int                `json:"round_number"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

type GameEndedData struct {
	FinalLeaderboard []LeaderboardEntry `json:"final_leaderboard"`
}

// Snapshot is the full-state view sent to a connection attaching to a
// room, so a reconnecting client never rebuilds from partial history.
type Snapshot struct {
	Code             string             `json:"code"`
	Status           RoomStatus         `json:"status"`
	HostID           string             `json:"host_id"`
	Config           RoomConfig         `json:"config"`
	Participants     []Participant      `json:"participants"`
	ParticipantCount int                `json:"participant_count"`
	Round            *Round             `json:"round,omitempty"`
	Answers          []AnswerPublic     `json:"answers,omitempty"` // frozen voting set
	VoteCounts       map[string]int     `json:"vote_counts,omitempty"`
	SubmittedCount   int                `json:"submitted_count"`
	Leaderboard      []LeaderboardEntry `json:"leaderboard"`
	YouAnswered      bool               `json:"you_answered"`
	YouVoted         bool               `json:"you_voted"`
}
