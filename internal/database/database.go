package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scythe504/coral-backend/internal"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS game_results (
	id           TEXT PRIMARY KEY,
	room_code    TEXT        NOT NULL,
	winning_team TEXT        NOT NULL,
	reason       TEXT        NOT NULL,
	plot         JSONB       NOT NULL,
	players      JSONB       NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	ended_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS game_results_ended_at_idx ON game_results (ended_at DESC);
`

// Service archives finished games. Live rooms are never written here.
type Service struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New connects to url, verifies the connection and applies the schema.
func New(ctx context.Context, url string, logger *zap.Logger) (*Service, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Service{pool: pool, log: logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("[database.New] connected", zap.String("database", pool.Config().ConnConfig.Database))
	return s, nil
}

func (s *Service) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SaveResult stores one finished game. Saving the same id twice is a no-op.
func (s *Service) SaveResult(ctx context.Context, result internal.GameResult) error {
	plot, err := json.Marshal(result.Plot)
	if err != nil {
		return fmt.Errorf("encode plot: %w", err)
	}
	players, err := json.Marshal(result.Players)
	if err != nil {
		return fmt.Errorf("encode players: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO game_results (id, room_code, winning_team, reason, plot, players, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		result.ID, result.RoomCode, string(result.WinningTeam), result.Reason,
		plot, players, result.StartedAt, result.EndedAt)
	if err != nil {
		return fmt.Errorf("insert result %s: %w", result.ID, err)
	}

	s.log.Debug("[SaveResult] archived game",
		zap.String("id", result.ID),
		zap.String("room", result.RoomCode),
		zap.String("winner", string(result.WinningTeam)))
	return nil
}

// RecentResults returns up to limit games, newest first.
func (s *Service) RecentResults(ctx context.Context, limit int) ([]internal.GameResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_code, winning_team, reason, plot, players, started_at, ended_at
		FROM game_results
		ORDER BY ended_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := make([]internal.GameResult, 0, limit)
	for rows.Next() {
		var (
			r             internal.GameResult
			team          string
			plot, players []byte
		)
		if err := rows.Scan(&r.ID, &r.RoomCode, &team, &r.Reason, &plot, &players, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.WinningTeam = internal.Team(team)
		if err := json.Unmarshal(plot, &r.Plot); err != nil {
			return nil, fmt.Errorf("decode plot of %s: %w", r.ID, err)
		}
		if err := json.Unmarshal(players, &r.Players); err != nil {
			return nil, fmt.Errorf("decode players of %s: %w", r.ID, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Health reports pool statistics for the health endpoint.
func (s *Service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	stats := make(map[string]string)
	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		return stats
	}

	st := s.pool.Stat()
	stats["status"] = "up"
	stats["total_conns"] = fmt.Sprint(st.TotalConns())
	stats["idle_conns"] = fmt.Sprint(st.IdleConns())
	stats["acquired_conns"] = fmt.Sprint(st.AcquiredConns())
	return stats
}

func (s *Service) Close() {
	s.pool.Close()
}
