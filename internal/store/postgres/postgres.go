// Package postgres persists game records to PostgreSQL via pgx. All writes
// are upserts keyed on the record's natural identity so replays after a
// reconnect or retry are harmless.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quipround/quipround/internal/game"
)

// schema deliberately carries no foreign keys. Records are written
// asynchronously relative to each other, so a child row may land before
// its parent on a slow pool.
const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	code          TEXT PRIMARY KEY,
	host_id       TEXT NOT NULL,
	max_players   INT NOT NULL,
	total_rounds  INT NOT NULL,
	current_round INT NOT NULL,
	status        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS participants (
	room_code TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	username  TEXT NOT NULL,
	joined_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (room_code, user_id)
);

CREATE TABLE IF NOT EXISTS rounds (
	id        TEXT PRIMARY KEY,
	room_code TEXT NOT NULL,
	number    INT NOT NULL,
	question  TEXT NOT NULL,
	phase     TEXT NOT NULL,
	deadline  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS answers (
	id           TEXT PRIMARY KEY,
	round_id     TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	content      TEXT NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS votes (
	round_id  TEXT NOT NULL,
	voter_id  TEXT NOT NULL,
	answer_id TEXT NOT NULL,
	PRIMARY KEY (round_id, voter_id)
);

CREATE TABLE IF NOT EXISTS scores (
	room_code TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	points    INT NOT NULL,
	PRIMARY KEY (room_code, user_id)
);
`

type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against dsn and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) SaveRoom(ctx context.Context, rec game.RoomRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (code, host_id, max_players, total_rounds, current_round, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (code) DO UPDATE SET
			host_id = EXCLUDED.host_id,
			current_round = EXCLUDED.current_round,
			status = EXCLUDED.status`,
		rec.Code, rec.HostID, rec.MaxPlayers, rec.TotalRounds, rec.CurrentRound, rec.Status, rec.CreatedAt,
	)
	return err
}

func (s *Store) DeleteRoom(ctx context.Context, code string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE code = $1`, code)
	return err
}

func (s *Store) SaveParticipant(ctx context.Context, rec game.ParticipantRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO participants (room_code, user_id, username, joined_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (room_code, user_id) DO UPDATE SET username = EXCLUDED.username`,
		rec.RoomCode, rec.UserID, rec.Username, rec.JoinedAt,
	)
	return err
}

func (s *Store) DeleteParticipant(ctx context.Context, roomCode, userID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM participants WHERE room_code = $1 AND user_id = $2`,
		roomCode, userID,
	)
	return err
}

func (s *Store) SaveRound(ctx context.Context, rec game.RoundRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rounds (id, room_code, number, question, phase, deadline)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			deadline = EXCLUDED.deadline`,
		rec.ID, rec.RoomCode, rec.Number, rec.Question, rec.Phase, rec.Deadline,
	)
	return err
}

func (s *Store) SaveAnswer(ctx context.Context, rec game.AnswerRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO answers (id, round_id, user_id, content, submitted_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.RoundID, rec.UserID, rec.Content, rec.SubmittedAt,
	)
	return err
}

func (s *Store) SaveVote(ctx context.Context, rec game.VoteRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO votes (round_id, voter_id, answer_id)
		VALUES ($1,$2,$3)
		ON CONFLICT (round_id, voter_id) DO NOTHING`,
		rec.RoundID, rec.VoterID, rec.AnswerID,
	)
	return err
}

func (s *Store) SaveScore(ctx context.Context, rec game.ScoreRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scores (room_code, user_id, points)
		VALUES ($1,$2,$3)
		ON CONFLICT (room_code, user_id) DO UPDATE SET points = EXCLUDED.points`,
		rec.RoomCode, rec.UserID, rec.Points,
	)
	return err
}
