package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/quizduel/internal/models"
)

// InsertMatchEvents bulk-loads a batch of history events. Events already
// present (same game and index) make the whole batch fail, so callers retry
// with InsertMatchEventsIdempotent.
func (s *Store) InsertMatchEvents(ctx context.Context, events []models.MatchEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}
	rows := make([][]interface{}, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return 0, fmt.Errorf("marshal payload of event %d: %w", ev.EventIndex, err)
		}
		rows = append(rows, []interface{}{
			ev.GameID, ev.EventIndex, ev.ActorUserID, ev.EventType, payload, time.UnixMilli(ev.Timestamp),
		})
	}
	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"match_events"},
		[]string{"game_id", "event_index", "actor_user_id", "event_type", "payload", "event_time"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("copy match events: %w", err)
	}
	return n, nil
}

// InsertMatchEventsIdempotent writes events one by one in a transaction,
// skipping those already stored.
func (s *Store) InsertMatchEventsIdempotent(ctx context.Context, events []models.MatchEvent) (int64, error) {
	var n int64
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO match_events (game_id, event_index, actor_user_id, event_type, payload, event_time)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (game_id, event_index) DO NOTHING
		`
		for _, ev := range events {
			payload, err := json.Marshal(ev.Payload)
			if err != nil {
				return fmt.Errorf("marshal payload of event %d: %w", ev.EventIndex, err)
			}
			tag, err := tx.Exec(ctx, q, ev.GameID, ev.EventIndex, ev.ActorUserID, ev.EventType, payload, time.UnixMilli(ev.Timestamp))
			if err != nil {
				return err
			}
			n += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("tx insert match events: %w", err)
	}
	return n, nil
}

// MatchEvents returns a game's history in index order.
func (s *Store) MatchEvents(ctx context.Context, gameID uuid.UUID) ([]models.MatchEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT game_id, event_index, actor_user_id, event_type, payload, event_time
		FROM match_events
		WHERE game_id = $1
		ORDER BY event_index
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("select match events: %w", err)
	}
	defer rows.Close()

	var out []models.MatchEvent
	for rows.Next() {
		var (
			ev  models.MatchEvent
			raw []byte
			at  time.Time
		)
		if err := rows.Scan(&ev.GameID, &ev.EventIndex, &ev.ActorUserID, &ev.EventType, &raw, &at); err != nil {
			return nil, fmt.Errorf("scan match event: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &ev.Payload); err != nil {
				return nil, fmt.Errorf("decode payload of event %d: %w", ev.EventIndex, err)
			}
		}
		ev.Timestamp = at.UnixMilli()
		out = append(out, ev)
	}
	return out, rows.Err()
}
