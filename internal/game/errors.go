package game

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoundNotFound       = errors.New("round not found")
	ErrNotHost             = errors.New("only the host may do that")
	ErrNotMember           = errors.New("not a member of this room")
	ErrInvalidPhase        = errors.New("invalid phase for action")
	ErrDuplicateSubmission = errors.New("already submitted in this round")
	ErrInvalidTarget       = errors.New("vote target is not a valid answer")
	ErrNotEnoughPlayers    = errors.New("not enough players to start")
	ErrRoomFull            = errors.New("room is full")
	ErrRoomNotJoinable     = errors.New("room is not accepting new players")
	ErrInvalidContent      = errors.New("answer content is empty or too long")
)

// Code maps an error to the stable code reported to clients. Unknown
// errors collapse to "internal" so callers never leak internals.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrRoundNotFound):
		return "not_found"
	case errors.Is(err, ErrNotHost), errors.Is(err, ErrNotMember):
		return "forbidden"
	case errors.Is(err, ErrInvalidPhase), errors.Is(err, ErrRoomNotJoinable):
		return "invalid_phase"
	case errors.Is(err, ErrDuplicateSubmission):
		return "duplicate_submission"
	case errors.Is(err, ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, ErrNotEnoughPlayers):
		return "precondition_failed"
	case errors.Is(err, ErrRoomFull):
		return "capacity_exceeded"
	case errors.Is(err, ErrInvalidContent):
		return "invalid_argument"
	default:
		return "internal"
	}
}
