package game

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const storeTimeout = 5 * time.Second

// Room is one serialization domain: every state mutation for a room
// happens under its mutex, so at most one answer and one vote per
// participant per round hold even when identical requests race. Events
// are emitted to the sink inside the critical section, which fixes the
// broadcast order; durable writes happen after the lock is released.
type Room struct {
	Code      string
	CreatedAt time.Time
	Config    RoomConfig

	sched   *Scheduler
	store   Store
	sink    EventSink
	scoring ScoreFunc
	log     zerolog.Logger

	mu          sync.Mutex
	status      RoomStatus
	hostID      string
	roster      []*Participant
	questions   []string
	rounds      []*Round
	current     *Round
	led         *ledger
	scores      map[string]int
	leaderboard []LeaderboardEntry
	closed      bool
}

func (r *Room) emit(ev Event) {
	r.sink.RoomEvent(r.Code, ev)
}

// save writes records through to the durable store. Failures are logged
// and reported nowhere else: the in-memory state machine stays
// authoritative and other rooms are unaffected.
func (r *Room) save(ctx context.Context, recs ...any) {
	if r.store == nil || len(recs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	for _, rec := range recs {
		var err error
		switch v := rec.(type) {
		case RoomRecord:
			err = r.store.SaveRoom(ctx, v)
		case ParticipantRecord:
			err = r.store.SaveParticipant(ctx, v)
		case RoundRecord:
			err = r.store.SaveRound(ctx, v)
		case AnswerRecord:
			err = r.store.SaveAnswer(ctx, v)
		case VoteRecord:
			err = r.store.SaveVote(ctx, v)
		case ScoreRecord:
			err = r.store.SaveScore(ctx, v)
		}
		if err != nil {
			r.log.Error().Err(err).Str("room", r.Code).Msg("store write failed")
		}
	}
}

func (r *Room) memberLocked(userID string) *Participant {
	for _, p := range r.roster {
		if p.ID == userID {
			return p
		}
	}
	return nil
}

func (r *Room) participantsLocked() []Participant {
	out := make([]Participant, 0, len(r.roster))
	for _, p := range r.roster {
		out = append(out, *p)
	}
	return out
}

func (r *Room) roomRecordLocked() RoomRecord {
	currentRound := 0
	if r.current != nil {
		currentRound = r.current.Number
	}
	return RoomRecord{
		Code:         r.Code,
		HostID:       r.hostID,
		MaxPlayers:   r.Config.MaxPlayers,
		TotalRounds:  r.Config.TotalRounds,
		CurrentRound: currentRound,
		Status:       r.status,
		CreatedAt:    r.CreatedAt,
	}
}

func roundRecord(code string, rd *Round) RoundRecord {
	return RoundRecord{
		ID:       rd.ID,
		RoomCode: code,
		Number:   rd.Number,
		Question: rd.Question,
		Phase:    rd.Phase,
		Deadline: rd.Deadline,
	}
}

// Join adds a participant to the roster. Rejoining an already-joined room
// is idempotent and never duplicates the participant; fresh joins are only
// accepted while the room is waiting and below capacity.
func (r *Room) Join(ctx context.Context, userID, username string) ([]Participant, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	if r.memberLocked(userID) != nil {
		parts := r.participantsLocked()
		r.mu.Unlock()
		return parts, nil
	}
	if r.status != StatusWaiting {
		r.mu.Unlock()
		return nil, ErrRoomNotJoinable
	}
	if len(r.roster) >= r.Config.MaxPlayers {
		r.mu.Unlock()
		return nil, ErrRoomFull
	}
	p := &Participant{ID: userID, Username: username, JoinedAt: r.sched.Now()}
	r.roster = append(r.roster, p)
	parts := r.participantsLocked()
	r.emit(Event{Type: EventPlayerJoined, Data: PlayerJoinedData{
		UserID:           userID,
		Username:         username,
		Participants:     parts,
		ParticipantCount: len(parts),
	}})
	rec := ParticipantRecord{RoomCode: r.Code, UserID: userID, Username: username, JoinedAt: p.JoinedAt}
	r.mu.Unlock()

	r.save(ctx, rec)
	return parts, nil
}

// Leave removes a participant. If the host leaves and others remain, the
// host role transfers to the earliest-joined remaining participant. The
// second return value reports whether the roster is now empty, in which
// case the caller tears the room down.
func (r *Room) Leave(ctx context.Context, userID string) (empty bool, err error) {
	r.mu.Lock()
	p := r.memberLocked(userID)
	if p == nil {
		r.mu.Unlock()
		return false, ErrNotMember
	}
	roster := r.roster[:0]
	for _, m := range r.roster {
		if m.ID != userID {
			roster = append(roster, m)
		}
	}
	r.roster = roster

	if len(r.roster) == 0 {
		r.closed = true
		r.sched.Cancel(r.Code)
		r.mu.Unlock()
		return true, nil
	}

	var recs []any
	newHost := ""
	if r.hostID == userID {
		// roster keeps join order, so the first entry is earliest-joined
		r.hostID = r.roster[0].ID
		newHost = r.hostID
		recs = append(recs, r.roomRecordLocked())
	}
	parts := r.participantsLocked()
	r.emit(Event{Type: EventPlayerLeft, Data: PlayerLeftData{
		UserID:           userID,
		Username:         p.Username,
		NewHostID:        newHost,
		Participants:     parts,
		ParticipantCount: len(parts),
	}})
	r.mu.Unlock()

	r.save(ctx, recs...)
	if r.store != nil {
		dctx, cancel := context.WithTimeout(ctx, storeTimeout)
		if derr := r.store.DeleteParticipant(dctx, r.Code, userID); derr != nil {
			r.log.Error().Err(derr).Str("room", r.Code).Msg("store write failed")
		}
		cancel()
	}
	return false, nil
}

// SetConnected flags a participant's connection liveness. It is owned by
// the gateway attach/detach path and never affects roster membership.
func (r *Room) SetConnected(userID string, connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.memberLocked(userID); p != nil {
		p.Connected = connected
	}
}

// StartGame moves the room from waiting into round 1 answering. Host only,
// requires at least two participants. A duplicate start on a room already
// playing is a no-op that reports success.
func (r *Room) StartGame(ctx context.Context, userID string) error {
	r.mu.Lock()
	if userID != r.hostID {
		r.mu.Unlock()
		return ErrNotHost
	}
	switch r.status {
	case StatusPlaying:
		r.mu.Unlock()
		return nil
	case StatusFinished:
		r.mu.Unlock()
		return ErrInvalidPhase
	}
	if len(r.roster) < 2 {
		r.mu.Unlock()
		return ErrNotEnoughPlayers
	}

	r.status = StatusPlaying
	rd := r.startRoundLocked(1)
	r.emit(Event{Type: EventGameStarted, Data: RoundStartedData{
		RoundID:     rd.ID,
		RoundNumber: rd.Number,
		Question:    rd.Question,
		TimeLimit:   r.Config.AnswerTime,
	}})
	recs := []any{r.roomRecordLocked(), roundRecord(r.Code, rd)}
	r.mu.Unlock()

	r.save(ctx, recs...)
	return nil
}

func (r *Room) startRoundLocked(number int) *Round {
	question := ""
	if number-1 < len(r.questions) {
		question = r.questions[number-1]
	}
	rd := &Round{
		ID:       uuid.NewString(),
		Number:   number,
		Question: question,
		Phase:    PhaseAnswering,
	}
	if r.Config.AnswerTime > 0 {
		d := time.Duration(r.Config.AnswerTime) * time.Second
		deadline := r.sched.Now().Add(d)
		rd.Deadline = &deadline
		roundID := rd.ID
		r.sched.Schedule(r.Code, d, func() { r.deadlineElapsed(roundID, PhaseAnswering) })
	}
	r.rounds = append(r.rounds, rd)
	r.current = rd
	r.led = newLedger(rd.ID)
	return rd
}

// deadlineElapsed is the scheduler callback. A deadline that fires after
// the round already moved past the expected phase is discarded without
// error; the phase guards inside startVoting/endRound handle it.
func (r *Room) deadlineElapsed(roundID string, phase Phase) {
	ctx := context.Background()
	switch phase {
	case PhaseAnswering:
		if err := r.startVoting(ctx, "", true, roundID); err != nil {
			r.log.Error().Err(err).Str("room", r.Code).Msg("deadline transition failed")
		}
	case PhaseVoting:
		if err := r.endRound(ctx, "", true, roundID); err != nil {
			r.log.Error().Err(err).Str("room", r.Code).Msg("deadline transition failed")
		}
	}
}

// StartVoting freezes the answer snapshot and opens voting. Triggered by
// the host or by the answering deadline; whichever reaches the critical
// section first wins and the other becomes a no-op.
func (r *Room) StartVoting(ctx context.Context, userID string) error {
	return r.startVoting(ctx, userID, false, "")
}

func (r *Room) startVoting(ctx context.Context, userID string, byTimer bool, roundID string) error {
	r.mu.Lock()
	if !byTimer && userID != r.hostID {
		r.mu.Unlock()
		return ErrNotHost
	}
	if r.current == nil {
		r.mu.Unlock()
		if byTimer {
			return nil
		}
		return ErrInvalidPhase
	}
	if byTimer && r.current.ID != roundID {
		r.mu.Unlock()
		return nil
	}
	if r.current.Phase != PhaseAnswering {
		// already voting or sealed: duplicate trigger, report success
		r.mu.Unlock()
		return nil
	}

	r.sched.Cancel(r.Code)
	frozen := r.led.freeze()

	if len(frozen) == 0 {
		// Nobody answered. Voting over an empty set is pointless, so the
		// round seals straight into results with an empty tally.
		recs := r.sealRoundLocked()
		r.mu.Unlock()
		r.save(ctx, recs...)
		return nil
	}

	r.current.Phase = PhaseVoting
	r.current.Deadline = nil
	if r.Config.VoteTime > 0 {
		d := time.Duration(r.Config.VoteTime) * time.Second
		deadline := r.sched.Now().Add(d)
		r.current.Deadline = &deadline
		id := r.current.ID
		r.sched.Schedule(r.Code, d, func() { r.deadlineElapsed(id, PhaseVoting) })
	}
	r.emit(Event{Type: EventVotingStarted, Data: VotingStartedData{
		RoundID:   r.current.ID,
		Answers:   frozen,
		TimeLimit: r.Config.VoteTime,
	}})
	rec := roundRecord(r.Code, r.current)
	r.mu.Unlock()

	r.save(ctx, rec)
	return nil
}

// EndRound seals the current round: freezes votes, runs the tally, updates
// cumulative scores and broadcasts the leaderboard. On the final round the
// room becomes finished.
func (r *Room) EndRound(ctx context.Context, userID string) error {
	return r.endRound(ctx, userID, false, "")
}

func (r *Room) endRound(ctx context.Context, userID string, byTimer bool, roundID string) error {
	r.mu.Lock()
	if !byTimer && userID != r.hostID {
		r.mu.Unlock()
		return ErrNotHost
	}
	if r.current == nil {
		r.mu.Unlock()
		if byTimer {
			return nil
		}
		return ErrInvalidPhase
	}
	if byTimer && r.current.ID != roundID {
		r.mu.Unlock()
		return nil
	}
	switch r.current.Phase {
	case PhaseResults:
		r.mu.Unlock()
		return nil
	case PhaseAnswering:
		r.mu.Unlock()
		if byTimer {
			return nil
		}
		return ErrInvalidPhase
	}

	r.sched.Cancel(r.Code)
	recs := r.sealRoundLocked()
	r.mu.Unlock()

	r.save(ctx, recs...)
	return nil
}

// sealRoundLocked moves the current round into results, applies round
// points to cumulative scores and rebuilds the leaderboard. No further
// answers or votes are accepted for the round afterwards.
func (r *Room) sealRoundLocked() []any {
	r.current.Phase = PhaseResults
	r.current.Deadline = nil

	points := tallyRound(r.led, r.scoring)
	for id, pts := range points {
		r.scores[id] += pts
	}
	r.leaderboard = buildLeaderboard(r.scores, r.roster)

	r.emit(Event{Type: EventRoundEnded, Data: RoundEndedData{
		RoundNumber: r.current.Number,
		Leaderboard: r.leaderboard,
	}})

	recs := []any{roundRecord(r.Code, r.current)}
	for _, e := range r.leaderboard {
		recs = append(recs, ScoreRecord{RoomCode: r.Code, UserID: e.UserID, Points: e.Score})
	}

	if r.current.Number >= r.Config.TotalRounds {
		r.status = StatusFinished
		r.emit(Event{Type: EventGameEnded, Data: GameEndedData{FinalLeaderboard: r.leaderboard}})
	}
	recs = append(recs, r.roomRecordLocked())
	return recs
}

// NextRound advances from results into the next round's answering phase.
// Host only; a duplicate request when the next round is already answering
// is a no-op.
func (r *Room) NextRound(ctx context.Context, userID string) error {
	r.mu.Lock()
	if userID != r.hostID {
		r.mu.Unlock()
		return ErrNotHost
	}
	if r.status == StatusFinished {
		r.mu.Unlock()
		return ErrInvalidPhase
	}
	if r.current == nil {
		r.mu.Unlock()
		return ErrInvalidPhase
	}
	if r.current.Phase == PhaseAnswering && r.current.Number > 1 && r.led.answerCount() == 0 {
		// likely a duplicate next_round retry that already succeeded
		r.mu.Unlock()
		return nil
	}
	if r.current.Phase != PhaseResults {
		r.mu.Unlock()
		return ErrInvalidPhase
	}
	if r.current.Number >= r.Config.TotalRounds {
		r.mu.Unlock()
		return ErrInvalidPhase
	}

	rd := r.startRoundLocked(r.current.Number + 1)
	r.emit(Event{Type: EventRoundStarted, Data: RoundStartedData{
		RoundID:     rd.ID,
		RoundNumber: rd.Number,
		Question:    rd.Question,
		TimeLimit:   r.Config.AnswerTime,
	}})
	recs := []any{r.roomRecordLocked(), roundRecord(r.Code, rd)}
	r.mu.Unlock()

	r.save(ctx, recs...)
	return nil
}

// SubmitAnswer records one answer per participant for the active round and
// returns the answer id with the submission sequence number. The count
// broadcast never reveals content.
func (r *Room) SubmitAnswer(ctx context.Context, userID, content string) (string, int, error) {
	r.mu.Lock()
	if r.memberLocked(userID) == nil {
		r.mu.Unlock()
		return "", 0, ErrNotMember
	}
	if r.current == nil || r.current.Phase != PhaseAnswering {
		r.mu.Unlock()
		return "", 0, ErrInvalidPhase
	}
	a, seq, err := r.led.addAnswer(userID, content, r.sched.Now())
	if err != nil {
		r.mu.Unlock()
		return "", 0, err
	}
	r.emit(Event{Type: EventAnswerSubmitted, Data: AnswerSubmittedData{SubmittedCount: seq}})
	rec := AnswerRecord{ID: a.ID, RoundID: a.RoundID, UserID: a.AuthorID, Content: a.Content, SubmittedAt: a.SubmittedAt}
	r.mu.Unlock()

	r.save(ctx, rec)
	return a.ID, seq, nil
}

// SubmitVote records one vote per participant against the frozen answer
// snapshot and broadcasts the updated count for the target answer.
func (r *Room) SubmitVote(ctx context.Context, userID, answerID string) (int, error) {
	r.mu.Lock()
	if r.memberLocked(userID) == nil {
		r.mu.Unlock()
		return 0, ErrNotMember
	}
	if r.current == nil || r.current.Phase != PhaseVoting {
		r.mu.Unlock()
		return 0, ErrInvalidPhase
	}
	v, count, err := r.led.addVote(userID, answerID)
	if err != nil {
		r.mu.Unlock()
		return 0, err
	}
	r.emit(Event{Type: EventVoteUpdate, Data: VoteUpdateData{AnswerID: answerID, VoteCount: count}})
	rec := VoteRecord{RoundID: v.RoundID, VoterID: v.VoterID, AnswerID: v.AnswerID}
	r.mu.Unlock()

	r.save(ctx, rec)
	return count, nil
}

// SnapshotFor builds the full-state view for one participant, including
// their own already-submitted flags so clients re-derive optimistic UI
// state from the server after a reconnect.
func (r *Room) SnapshotFor(userID string) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Code:             r.Code,
		Status:           r.status,
		HostID:           r.hostID,
		Config:           r.Config,
		Participants:     r.participantsLocked(),
		ParticipantCount: len(r.roster),
		Leaderboard:      append([]LeaderboardEntry(nil), r.leaderboard...),
	}
	if r.current != nil {
		rd := *r.current
		snap.Round = &rd
		snap.SubmittedCount = r.led.answerCount()
		snap.YouAnswered = r.led.hasAnswered(userID)
		snap.YouVoted = r.led.hasVoted(userID)
		if rd.Phase != PhaseAnswering {
			snap.Answers = append([]AnswerPublic(nil), r.led.frozen...)
			counts := make(map[string]int, len(r.led.voteCounts))
			for id, n := range r.led.voteCounts {
				counts[id] = n
			}
			snap.VoteCounts = counts
		}
	}
	return snap
}

// AnswerView is the per-viewer REST projection of a round's answers.
type AnswerView struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	VoteCount int    `json:"vote_count"`
	IsOwn     bool   `json:"is_own_answer"`
}

// RoundAnswers returns the frozen answers of the active round for one
// viewer. Only available once voting has started; answer authorship is
// revealed solely as the viewer's own flag.
func (r *Room) RoundAnswers(roundID, userID string) ([]AnswerView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil || r.current.ID != roundID {
		return nil, ErrRoundNotFound
	}
	if r.current.Phase == PhaseAnswering {
		return nil, ErrInvalidPhase
	}
	views := make([]AnswerView, 0, len(r.led.frozen))
	for _, a := range r.led.frozen {
		full := r.led.answers[a.ID]
		views = append(views, AnswerView{
			ID:        a.ID,
			Content:   a.Content,
			VoteCount: r.led.voteCounts[a.ID],
			IsOwn:     full != nil && full.AuthorID == userID,
		})
	}
	return views, nil
}

func (r *Room) Status() RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

func (r *Room) Participants() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participantsLocked()
}

func (r *Room) CurrentRound() *Round {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	rd := *r.current
	return &rd
}

func (r *Room) Leaderboard() []LeaderboardEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LeaderboardEntry(nil), r.leaderboard...)
}

func (r *Room) IsMember(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memberLocked(userID) != nil
}
