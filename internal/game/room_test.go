package game

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// sinkRecorder captures emitted events for assertions. Emits happen under
// the room lock, sometimes from a deadline goroutine, so it locks.
type sinkRecorder struct {
	mu     sync.Mutex
	events []Event
	closed []string
}

func (s *sinkRecorder) RoomEvent(_ string, ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *sinkRecorder) RoomClosed(code string) {
	s.mu.Lock()
	s.closed = append(s.closed, code)
	s.mu.Unlock()
}

func (s *sinkRecorder) count(eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

func (s *sinkRecorder) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

func testManager(clock clockwork.Clock, sink EventSink, defaults RoomConfig) *Manager {
	return NewManager(ManagerConfig{
		Clock:     clock,
		Sink:      sink,
		Questions: NewDeck([]string{"q1", "q2", "q3", "q4", "q5"}),
		Defaults:  defaults,
		Logger:    zerolog.Nop(),
	})
}

// waitForPhase polls until the active round reaches the phase or the room
// status matches; deadline callbacks fire on their own goroutine.
func waitForPhase(t *testing.T, r *Room, phase Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rd := r.CurrentRound(); rd != nil && rd.Phase == phase {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("round never reached phase %s", phase)
}

func TestFullGameTwoRounds(t *testing.T) {
	ctx := context.Background()
	sink := &sinkRecorder{}
	m := testManager(clockwork.NewFakeClock(), sink, RoomConfig{TotalRounds: 2})

	room, err := m.CreateRoom(ctx, "alice", "Alice", RoomConfig{TotalRounds: 2})
	if err != nil {
		t.Fatalf("should be able to create room: %v", err)
	}
	if _, err := room.Join(ctx, "bob", "Bob"); err != nil {
		t.Fatalf("bob should be able to join: %v", err)
	}
	if _, err := room.Join(ctx, "carol", "Carol"); err != nil {
		t.Fatalf("carol should be able to join: %v", err)
	}

	if err := room.StartGame(ctx, "bob"); err != ErrNotHost {
		t.Fatalf("expected ErrNotHost for non-host start, got %v", err)
	}
	if err := room.StartGame(ctx, "alice"); err != nil {
		t.Fatalf("host should be able to start: %v", err)
	}
	if room.Status() != StatusPlaying {
		t.Fatalf("expected status playing, got %s", room.Status())
	}
	rd := room.CurrentRound()
	if rd == nil || rd.Number != 1 || rd.Phase != PhaseAnswering {
		t.Fatalf("expected round 1 answering, got %+v", rd)
	}
	if rd.Question == "" {
		t.Fatal("round should carry a question")
	}

	// duplicate start is a no-op that reports success
	if err := room.StartGame(ctx, "alice"); err != nil {
		t.Fatalf("duplicate start should be a no-op: %v", err)
	}
	if sink.count(EventGameStarted) != 1 {
		t.Fatalf("expected exactly one game_started, got %d", sink.count(EventGameStarted))
	}

	aliceAns, _, err := room.SubmitAnswer(ctx, "alice", "alice round 1")
	if err != nil {
		t.Fatalf("alice should be able to answer: %v", err)
	}
	bobAns, seq, err := room.SubmitAnswer(ctx, "bob", "bob round 1")
	if err != nil {
		t.Fatalf("bob should be able to answer: %v", err)
	}
	if seq != 2 {
		t.Fatalf("expected submitted count 2, got %d", seq)
	}
	if _, _, err := room.SubmitAnswer(ctx, "bob", "again"); err != ErrDuplicateSubmission {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}
	if _, _, err := room.SubmitAnswer(ctx, "mallory", "not a member"); err != ErrNotMember {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if _, err := room.SubmitVote(ctx, "alice", bobAns); err != ErrInvalidPhase {
		t.Fatalf("voting during answering should fail with ErrInvalidPhase, got %v", err)
	}

	if err := room.StartVoting(ctx, "alice"); err != nil {
		t.Fatalf("host should be able to open voting: %v", err)
	}
	if _, _, err := room.SubmitAnswer(ctx, "carol", "too late"); err != ErrInvalidPhase {
		t.Fatalf("answering during voting should fail with ErrInvalidPhase, got %v", err)
	}

	if _, err := room.SubmitVote(ctx, "bob", bobAns); err != ErrInvalidTarget {
		t.Fatalf("expected ErrInvalidTarget for self-vote, got %v", err)
	}
	if count, err := room.SubmitVote(ctx, "bob", aliceAns); err != nil || count != 1 {
		t.Fatalf("expected vote count 1, got %d, %v", count, err)
	}
	if count, err := room.SubmitVote(ctx, "carol", aliceAns); err != nil || count != 2 {
		t.Fatalf("expected vote count 2, got %d, %v", count, err)
	}
	if _, err := room.SubmitVote(ctx, "carol", bobAns); err != ErrDuplicateSubmission {
		t.Fatalf("expected ErrDuplicateSubmission on second vote, got %v", err)
	}

	if err := room.EndRound(ctx, "alice"); err != nil {
		t.Fatalf("host should be able to end round: %v", err)
	}
	lb := room.Leaderboard()
	if len(lb) != 3 {
		t.Fatalf("expected 3 leaderboard entries, got %d", len(lb))
	}
	if lb[0].UserID != "alice" || lb[0].Score != 2 {
		t.Fatalf("expected alice leading with 2 points, got %+v", lb[0])
	}
	if room.Status() != StatusPlaying {
		t.Fatal("game should continue after a non-final round")
	}

	if err := room.NextRound(ctx, "alice"); err != nil {
		t.Fatalf("host should be able to advance: %v", err)
	}
	rd = room.CurrentRound()
	if rd.Number != 2 || rd.Phase != PhaseAnswering {
		t.Fatalf("expected round 2 answering, got %+v", rd)
	}
	// duplicate next_round after the new round opened is a no-op
	if err := room.NextRound(ctx, "alice"); err != nil {
		t.Fatalf("duplicate next_round should be a no-op: %v", err)
	}
	if sink.count(EventRoundStarted) != 1 {
		t.Fatalf("expected one round_started, got %d", sink.count(EventRoundStarted))
	}

	carolAns, _, err := room.SubmitAnswer(ctx, "carol", "carol round 2")
	if err != nil {
		t.Fatalf("carol should be able to answer round 2: %v", err)
	}
	if err := room.StartVoting(ctx, "alice"); err != nil {
		t.Fatalf("should open voting for round 2: %v", err)
	}
	if _, err := room.SubmitVote(ctx, "alice", carolAns); err != nil {
		t.Fatalf("alice should vote in round 2: %v", err)
	}
	if err := room.EndRound(ctx, "alice"); err != nil {
		t.Fatalf("should end final round: %v", err)
	}

	if room.Status() != StatusFinished {
		t.Fatalf("expected finished after final round, got %s", room.Status())
	}
	if sink.count(EventGameEnded) != 1 {
		t.Fatalf("expected one game_ended, got %d", sink.count(EventGameEnded))
	}
	final := room.Leaderboard()
	if final[0].UserID != "alice" || final[0].Score != 2 {
		t.Fatalf("expected alice to win with 2, got %+v", final[0])
	}
	if err := room.NextRound(ctx, "alice"); err != ErrInvalidPhase {
		t.Fatalf("expected ErrInvalidPhase after game end, got %v", err)
	}
}

func TestJoinRules(t *testing.T) {
	ctx := context.Background()
	m := testManager(clockwork.NewFakeClock(), &sinkRecorder{}, RoomConfig{})

	room, _ := m.CreateRoom(ctx, "alice", "Alice", RoomConfig{MaxPlayers: 2})
	if _, err := room.Join(ctx, "bob", "Bob"); err != nil {
		t.Fatalf("bob should join: %v", err)
	}
	if _, err := room.Join(ctx, "carol", "Carol"); err != ErrRoomFull {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}

	// rejoin is idempotent
	parts, err := room.Join(ctx, "bob", "Bob")
	if err != nil {
		t.Fatalf("rejoin should succeed: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("rejoin should not duplicate, got %d participants", len(parts))
	}

	if err := room.StartGame(ctx, "alice"); err != nil {
		t.Fatalf("should start: %v", err)
	}
	if _, err := room.Join(ctx, "dave", "Dave"); err != ErrRoomNotJoinable {
		t.Fatalf("expected ErrRoomNotJoinable after start, got %v", err)
	}
	// members can still rejoin mid-game for reconnects
	if _, err := room.Join(ctx, "bob", "Bob"); err != nil {
		t.Fatalf("member rejoin mid-game should succeed: %v", err)
	}
}

func TestConcurrentDuplicateSubmissions(t *testing.T) {
	ctx := context.Background()
	m := testManager(clockwork.NewFakeClock(), &sinkRecorder{}, RoomConfig{})

	room, _ := m.CreateRoom(ctx, "alice", "Alice", RoomConfig{})
	room.Join(ctx, "bob", "Bob")
	if err := room.StartGame(ctx, "alice"); err != nil {
		t.Fatalf("should start: %v", err)
	}

	const n = 16
	var accepted, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := room.SubmitAnswer(ctx, "bob", "bob's answer")
			switch err {
			case nil:
				accepted.Add(1)
			case ErrDuplicateSubmission:
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted.Load() != 1 {
		t.Fatalf("expected exactly 1 accepted answer, got %d", accepted.Load())
	}
	if rejected.Load() != n-1 {
		t.Fatalf("expected %d rejections, got %d", n-1, rejected.Load())
	}

	aliceAns, _, err := room.SubmitAnswer(ctx, "alice", "alice's answer")
	if err != nil {
		t.Fatalf("alice should answer: %v", err)
	}
	if err := room.StartVoting(ctx, "alice"); err != nil {
		t.Fatalf("should open voting: %v", err)
	}

	accepted.Store(0)
	rejected.Store(0)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := room.SubmitVote(ctx, "bob", aliceAns)
			switch err {
			case nil:
				accepted.Add(1)
			case ErrDuplicateSubmission:
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted.Load() != 1 {
		t.Fatalf("expected exactly 1 accepted vote, got %d", accepted.Load())
	}
}

func TestHostHandoffAndTeardown(t *testing.T) {
	ctx := context.Background()
	sink := &sinkRecorder{}
	m := testManager(clockwork.NewFakeClock(), sink, RoomConfig{})

	room, _ := m.CreateRoom(ctx, "alice", "Alice", RoomConfig{})
	room.Join(ctx, "bob", "Bob")
	room.Join(ctx, "carol", "Carol")

	if err := m.Leave(ctx, room.Code, "alice"); err != nil {
		t.Fatalf("host should be able to leave: %v", err)
	}
	if room.HostID() != "bob" {
		t.Fatalf("host should transfer to earliest-joined, got %s", room.HostID())
	}

	if err := m.Leave(ctx, room.Code, "mallory"); err != ErrNotMember {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}

	m.Leave(ctx, room.Code, "bob")
	m.Leave(ctx, room.Code, "carol")
	if m.RoomCount() != 0 {
		t.Fatalf("empty room should be removed, %d rooms remain", m.RoomCount())
	}
	if _, err := m.Get(room.Code); err != ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound after teardown, got %v", err)
	}
	sink.mu.Lock()
	closed := len(sink.closed)
	sink.mu.Unlock()
	if closed != 1 {
		t.Fatalf("expected one RoomClosed, got %d", closed)
	}
}

func TestAnsweringDeadlineAdvancesToVoting(t *testing.T) {
	ctx := context.Background()
	sink := &sinkRecorder{}
	fc := clockwork.NewFakeClock()
	m := testManager(fc, sink, RoomConfig{AnswerTime: 30, VoteTime: 20})

	room, _ := m.CreateRoom(ctx, "alice", "Alice", RoomConfig{})
	room.Join(ctx, "bob", "Bob")
	room.StartGame(ctx, "alice")

	rd := room.CurrentRound()
	if rd.Deadline == nil {
		t.Fatal("answering round should carry a deadline")
	}
	if _, _, err := room.SubmitAnswer(ctx, "bob", "in time"); err != nil {
		t.Fatalf("bob should answer before the deadline: %v", err)
	}

	fc.Advance(30 * time.Second)
	waitForPhase(t, room, PhaseVoting)

	// the host retrying after the timer won is a no-op
	if err := room.StartVoting(ctx, "alice"); err != nil {
		t.Fatalf("host retry after timer should be a no-op: %v", err)
	}
	if sink.count(EventVotingStarted) != 1 {
		t.Fatalf("expected one voting_started, got %d", sink.count(EventVotingStarted))
	}

	// voting deadline seals the round
	fc.Advance(20 * time.Second)
	waitForPhase(t, room, PhaseResults)
	if sink.count(EventRoundEnded) != 1 {
		t.Fatalf("expected one round_ended, got %d", sink.count(EventRoundEnded))
	}
}

func TestZeroAnswerRoundSealsDirectly(t *testing.T) {
	ctx := context.Background()
	sink := &sinkRecorder{}
	m := testManager(clockwork.NewFakeClock(), sink, RoomConfig{})

	room, _ := m.CreateRoom(ctx, "alice", "Alice", RoomConfig{})
	room.Join(ctx, "bob", "Bob")
	room.StartGame(ctx, "alice")

	if err := room.StartVoting(ctx, "alice"); err != nil {
		t.Fatalf("opening voting with zero answers should not error: %v", err)
	}
	rd := room.CurrentRound()
	if rd.Phase != PhaseResults {
		t.Fatalf("zero-answer round should seal straight into results, got %s", rd.Phase)
	}
	if sink.count(EventVotingStarted) != 0 {
		t.Fatal("no voting_started should be emitted for an empty round")
	}
	if sink.count(EventRoundEnded) != 1 {
		t.Fatalf("expected one round_ended, got %d", sink.count(EventRoundEnded))
	}
	for _, e := range room.Leaderboard() {
		if e.Score != 0 {
			t.Fatalf("expected all-zero leaderboard, got %+v", e)
		}
	}
}

func TestSnapshotForReconnect(t *testing.T) {
	ctx := context.Background()
	m := testManager(clockwork.NewFakeClock(), &sinkRecorder{}, RoomConfig{})

	room, _ := m.CreateRoom(ctx, "alice", "Alice", RoomConfig{})
	room.Join(ctx, "bob", "Bob")
	room.StartGame(ctx, "alice")

	aliceAns, _, _ := room.SubmitAnswer(ctx, "alice", "a")
	room.SubmitAnswer(ctx, "bob", "b")

	snap := room.SnapshotFor("bob")
	if snap.Status != StatusPlaying || snap.Round == nil {
		t.Fatalf("snapshot should carry playing state, got %+v", snap)
	}
	if !snap.YouAnswered {
		t.Fatal("bob already answered, snapshot should say so")
	}
	if snap.Answers != nil {
		t.Fatal("answers must stay hidden during answering")
	}
	if snap.SubmittedCount != 2 {
		t.Fatalf("expected submitted count 2, got %d", snap.SubmittedCount)
	}

	room.StartVoting(ctx, "alice")
	room.SubmitVote(ctx, "bob", aliceAns)

	snap = room.SnapshotFor("bob")
	if len(snap.Answers) != 2 {
		t.Fatalf("voting snapshot should carry the frozen answers, got %d", len(snap.Answers))
	}
	if !snap.YouVoted {
		t.Fatal("bob already voted, snapshot should say so")
	}
	if snap.VoteCounts[aliceAns] != 1 {
		t.Fatalf("expected vote count 1 for alice's answer, got %d", snap.VoteCounts[aliceAns])
	}
	for _, a := range snap.Answers {
		if a.ID == "" || a.Content == "" {
			t.Fatalf("frozen answers should be anonymized but complete, got %+v", a)
		}
	}
}

func TestRoundAnswersProjection(t *testing.T) {
	ctx := context.Background()
	m := testManager(clockwork.NewFakeClock(), &sinkRecorder{}, RoomConfig{})

	room, _ := m.CreateRoom(ctx, "alice", "Alice", RoomConfig{})
	room.Join(ctx, "bob", "Bob")
	room.StartGame(ctx, "alice")
	roundID := room.CurrentRound().ID

	aliceAns, _, _ := room.SubmitAnswer(ctx, "alice", "a")
	room.SubmitAnswer(ctx, "bob", "b")

	if _, err := room.RoundAnswers(roundID, "alice"); err != ErrInvalidPhase {
		t.Fatalf("answers must be hidden during answering, got %v", err)
	}

	room.StartVoting(ctx, "alice")
	room.SubmitVote(ctx, "bob", aliceAns)

	views, err := room.RoundAnswers(roundID, "alice")
	if err != nil {
		t.Fatalf("should project answers during voting: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(views))
	}
	for _, v := range views {
		if v.ID == aliceAns {
			if !v.IsOwn {
				t.Fatal("alice's own answer should be flagged")
			}
			if v.VoteCount != 1 {
				t.Fatalf("expected 1 vote on alice's answer, got %d", v.VoteCount)
			}
		} else if v.IsOwn {
			t.Fatal("bob's answer must not be flagged as alice's own")
		}
	}

	if _, err := room.RoundAnswers("no-such-round", "alice"); err != ErrRoundNotFound {
		t.Fatalf("expected ErrRoundNotFound, got %v", err)
	}
}

func TestStartNeedsTwoPlayers(t *testing.T) {
	ctx := context.Background()
	m := testManager(clockwork.NewFakeClock(), &sinkRecorder{}, RoomConfig{})

	room, _ := m.CreateRoom(ctx, "alice", "Alice", RoomConfig{})
	if err := room.StartGame(ctx, "alice"); err != ErrNotEnoughPlayers {
		t.Fatalf("expected ErrNotEnoughPlayers, got %v", err)
	}
}
