package gateway

import (
	"encoding/json"

	"github.com/quipround/quipround/internal/game"
)

// Envelope is the wire frame for client commands: a type tag and an
// op-specific payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	opJoinRoom     = "join_room"
	opLeaveRoom    = "leave_room"
	opStartGame    = "start_game"
	opSubmitAnswer = "submit_answer"
	opStartVoting  = "start_voting"
	opSubmitVote   = "submit_vote"
	opEndRound     = "end_round"
	opNextRound    = "next_round"
)

type joinRoomPayload struct {
	RoomCode string `json:"room_code"`
}

type submitAnswerPayload struct {
	Content string `json:"content"`
}

type submitVotePayload struct {
	AnswerID string `json:"answer_id"`
}

// AckData is the per-command reply sent back to the issuing connection.
// Broadcast events carry the actual state change; the ack only reports
// whether the command was accepted.
type AckData struct {
	Op    string     `json:"op"`
	OK    bool       `json:"ok"`
	Error *ErrorInfo `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func encodeEvent(ev game.Event) ([]byte, error) {
	return json.Marshal(ev)
}

func ackFrame(op string, err error) []byte {
	data := AckData{Op: op, OK: err == nil}
	if err != nil {
		data.Error = &ErrorInfo{Code: game.Code(err), Message: err.Error()}
	}
	buf, _ := json.Marshal(game.Event{Type: "ack", Data: data})
	return buf
}

func errorFrame(code, message string) []byte {
	buf, _ := json.Marshal(game.Event{Type: game.EventError, Data: ErrorInfo{Code: code, Message: message}})
	return buf
}
