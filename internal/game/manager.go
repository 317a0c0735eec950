package game

import (
	"context"
	"math/rand"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Manager owns the set of live rooms. Rooms proceed fully independently;
// the manager only guards the room map itself.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	sched     *Scheduler
	store     Store
	sink      EventSink
	questions QuestionSource
	scoring   ScoreFunc
	defaults  RoomConfig
	log       zerolog.Logger
}

type ManagerConfig struct {
	Clock     clockwork.Clock
	Store     Store
	Sink      EventSink
	Questions QuestionSource
	Scoring   ScoreFunc
	Defaults  RoomConfig
	Logger    zerolog.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Sink == nil {
		cfg.Sink = NopSink{}
	}
	if cfg.Questions == nil {
		cfg.Questions = DefaultDeck()
	}
	if cfg.Scoring == nil {
		cfg.Scoring = VotesAsPoints
	}
	if cfg.Defaults.MaxPlayers <= 0 {
		cfg.Defaults.MaxPlayers = 8
	}
	if cfg.Defaults.TotalRounds <= 0 {
		cfg.Defaults.TotalRounds = 5
	}
	return &Manager{
		rooms:     make(map[string]*Room),
		sched:     NewScheduler(cfg.Clock),
		store:     cfg.Store,
		sink:      cfg.Sink,
		questions: cfg.Questions,
		scoring:   cfg.Scoring,
		defaults:  cfg.Defaults,
		log:       cfg.Logger,
	}
}

// SetSink swaps the event sink. Called once during wiring, before any
// room exists.
func (m *Manager) SetSink(sink EventSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sink
}

// CreateRoom allocates a room with a fresh unique code and seats the
// creator as host and first participant.
func (m *Manager) CreateRoom(ctx context.Context, hostID, hostName string, cfg RoomConfig) (*Room, error) {
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = m.defaults.MaxPlayers
	}
	if cfg.TotalRounds <= 0 {
		cfg.TotalRounds = m.defaults.TotalRounds
	}
	// negative time limits mean "no deadline"; zero picks the default
	if cfg.AnswerTime == 0 {
		cfg.AnswerTime = m.defaults.AnswerTime
	}
	if cfg.VoteTime == 0 {
		cfg.VoteTime = m.defaults.VoteTime
	}
	if cfg.AnswerTime < 0 {
		cfg.AnswerTime = 0
	}
	if cfg.VoteTime < 0 {
		cfg.VoteTime = 0
	}

	m.mu.Lock()
	code := randomCode(6)
	for m.rooms[code] != nil {
		code = randomCode(6)
	}
	now := m.sched.Now()
	host := &Participant{ID: hostID, Username: hostName, JoinedAt: now}
	r := &Room{
		Code:      code,
		CreatedAt: now,
		Config:    cfg,
		sched:     m.sched,
		store:     m.store,
		sink:      m.sink,
		scoring:   m.scoring,
		log:       m.log,
		status:    StatusWaiting,
		hostID:    hostID,
		roster:    []*Participant{host},
		questions: m.questions.Questions(cfg.TotalRounds),
		scores:    make(map[string]int),
	}
	roomRec := r.roomRecordLocked()
	m.rooms[code] = r
	m.mu.Unlock()

	m.log.Info().Str("room", code).Str("host", hostID).Msg("room created")
	r.save(ctx, roomRec, ParticipantRecord{
		RoomCode: code, UserID: hostID, Username: hostName, JoinedAt: now,
	})
	return r, nil
}

func (m *Manager) Get(code string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.rooms[code]
	if r == nil {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// RoomByRound resolves the room whose active round has the given id.
func (m *Manager) RoomByRound(roundID string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rooms {
		if rd := r.CurrentRound(); rd != nil && rd.ID == roundID {
			return r, nil
		}
	}
	return nil, ErrRoundNotFound
}

// Leave removes the participant from the room and tears the room down if
// the roster became empty.
func (m *Manager) Leave(ctx context.Context, code, userID string) error {
	r, err := m.Get(code)
	if err != nil {
		return err
	}
	empty, err := r.Leave(ctx, userID)
	if err != nil {
		return err
	}
	if empty {
		m.Remove(ctx, code)
	}
	return nil
}

// Remove drops a room from the live set, cancels its deadline and deletes
// its durable records.
func (m *Manager) Remove(ctx context.Context, code string) {
	m.mu.Lock()
	r := m.rooms[code]
	delete(m.rooms, code)
	m.mu.Unlock()
	if r == nil {
		return
	}
	m.sched.Cancel(code)
	m.sink.RoomClosed(code)
	if m.store != nil {
		dctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()
		if err := m.store.DeleteRoom(dctx, code); err != nil {
			m.log.Error().Err(err).Str("room", code).Msg("store delete failed")
		}
	}
	m.log.Info().Str("room", code).Msg("room removed")
}

func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

func randomCode(n int) string {
	letters := []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
